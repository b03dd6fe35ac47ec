// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

package api

import (
	"context"
	"net/http"

	"github.com/kmoyo/raceday/internal/models"
	"github.com/kmoyo/raceday/internal/store"
)

// ListRunners fetches one page of runners. Filters pass through as
// query parameters (status, category, search). Returns the page and
// the server-reported total count.
//
// The signature matches store.FetchFunc so a runner collection can be
// bound to it directly.
func (c *Client) ListRunners(ctx context.Context, q store.Query) ([]models.Runner, int, error) {
	var runners []models.Runner
	count, err := c.decodeData(ctx, "runners.list", http.MethodGet, "/runners", q.Values(), nil, &runners)
	if err != nil {
		return nil, 0, err
	}
	if count < 0 {
		count = len(runners)
	}
	return runners, count, nil
}

// GetRunner fetches a single runner by id.
func (c *Client) GetRunner(ctx context.Context, id string) (models.Runner, error) {
	var runner models.Runner
	_, err := c.decodeData(ctx, "runners.get", http.MethodGet, "/runners/"+id, nil, nil, &runner)
	return runner, err
}

// RunnerUpdate carries the editable runner fields for UpdateRunner.
// Nil fields are omitted from the request.
type RunnerUpdate struct {
	Name                 *string   `json:"name,omitempty"`
	Email                *string   `json:"email,omitempty" validate:"omitempty,email"`
	Phone                *string   `json:"phone,omitempty"`
	RegisteredCategories *[]string `json:"registeredCategories,omitempty"`
	Status               *string   `json:"status,omitempty" validate:"omitempty,oneof=registered active completed inactive"`

	// LastKnownLocation lets staff correct a runner's position manually.
	LastKnownLocation *models.GeoPoint `json:"lastKnownLocation,omitempty"`
}

// UpdateRunner updates a runner's editable fields and returns the
// server's view of the runner.
func (c *Client) UpdateRunner(ctx context.Context, id string, update RunnerUpdate) (models.Runner, error) {
	var runner models.Runner
	_, err := c.decodeData(ctx, "runners.update", http.MethodPut, "/runners/"+id, nil, update, &runner)
	return runner, err
}

// DeleteRunner removes a runner.
func (c *Client) DeleteRunner(ctx context.Context, id string) error {
	_, err := c.doEnvelope(ctx, "runners.delete", http.MethodDelete, "/runners/"+id, nil, nil)
	return err
}

// ExportRunnersCSV downloads the runner roster as a CSV blob.
func (c *Client) ExportRunnersCSV(ctx context.Context) ([]byte, error) {
	body, _, err := c.doBlob(ctx, "runners.export", http.MethodGet, "/runners/export", nil)
	return body, err
}
