// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

package api

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/kmoyo/raceday/internal/models"
	"github.com/kmoyo/raceday/internal/validation"
)

// ListRoutes fetches all routes for the event.
func (c *Client) ListRoutes(ctx context.Context) ([]models.Route, error) {
	var routes []models.Route
	_, err := c.decodeData(ctx, "routes.list", http.MethodGet, "/routes", nil, nil, &routes)
	return routes, err
}

// GetRoute fetches a single route by id.
func (c *Client) GetRoute(ctx context.Context, id string) (models.Route, error) {
	var route models.Route
	_, err := c.decodeData(ctx, "routes.get", http.MethodGet, "/routes/"+id, nil, nil, &route)
	return route, err
}

// RouteRequest carries the writable route fields for create and update.
type RouteRequest struct {
	Name        string              `json:"name" validate:"required,max=200"`
	Description string              `json:"description,omitempty"`
	Category    string              `json:"category" validate:"required"`
	DistanceKM  float64             `json:"distanceKm" validate:"gt=0"`
	Checkpoints []models.Checkpoint `json:"checkpoints,omitempty"`
}

// CreateRoute creates a route and returns the server's copy.
func (c *Client) CreateRoute(ctx context.Context, req RouteRequest) (models.Route, error) {
	var route models.Route
	if err := validation.ValidateStruct(&req); err != nil {
		return route, &Error{Kind: KindBusiness, Message: err.Error(), Err: err}
	}
	_, err := c.decodeData(ctx, "routes.create", http.MethodPost, "/routes", nil, req, &route)
	return route, err
}

// UpdateRoute updates a route's writable fields.
func (c *Client) UpdateRoute(ctx context.Context, id string, req RouteRequest) (models.Route, error) {
	var route models.Route
	if err := validation.ValidateStruct(&req); err != nil {
		return route, &Error{Kind: KindBusiness, Message: err.Error(), Err: err}
	}
	_, err := c.decodeData(ctx, "routes.update", http.MethodPut, "/routes/"+id, nil, req, &route)
	return route, err
}

// DeleteRoute removes a route.
func (c *Client) DeleteRoute(ctx context.Context, id string) error {
	_, err := c.doEnvelope(ctx, "routes.delete", http.MethodDelete, "/routes/"+id, nil, nil)
	return err
}

// ActivateRoute toggles whether a route is live for race assignment.
func (c *Client) ActivateRoute(ctx context.Context, id string, active bool) error {
	body := map[string]bool{"isActive": active}
	_, err := c.doEnvelope(ctx, "routes.activate", http.MethodPut, "/routes/"+id+"/activate", nil, body)
	return err
}

// UploadRouteGPX attaches a GPX track file to a route. The file is sent
// as a multipart part named "file"; anything without a .gpx extension
// is rejected before the request is made.
func (c *Client) UploadRouteGPX(ctx context.Context, routeID, filename string, content []byte) error {
	if !strings.EqualFold(filepath.Ext(filename), ".gpx") {
		return &Error{Kind: KindBusiness, Message: "only .gpx files are accepted"}
	}

	_, err := c.uploadFile(ctx, "routes.upload_gpx", http.MethodPut, "/routes/"+routeID+"/upload", filename, content, nil)
	return err
}

// RouteGeometry fetches the decoded GPX geometry for a route. Results
// are cached since published geometry does not change.
func (c *Client) RouteGeometry(ctx context.Context, routeID string) (models.RouteGeometry, error) {
	if cached, ok := c.geomCache.Get(routeID); ok {
		if geom, ok := cached.(models.RouteGeometry); ok {
			return geom, nil
		}
	}

	var geom models.RouteGeometry
	_, err := c.decodeData(ctx, "routes.geometry", http.MethodGet, "/routes/"+routeID+"/gpx", nil, nil, &geom)
	if err != nil {
		return models.RouteGeometry{}, err
	}

	c.geomCache.Add(routeID, geom)
	return geom, nil
}
