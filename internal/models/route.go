// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

package models

// Checkpoint is a named point along a route at a distance from the start.
type Checkpoint struct {
	Name       string  `json:"name"`
	DistanceKM float64 `json:"distance"`
}

// Route is a race course with ordered checkpoints and an optional
// uploaded GPX resource.
type Route struct {
	ID          string       `json:"_id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Category    string       `json:"category"`
	DistanceKM  float64      `json:"distance"`
	IsActive    bool         `json:"isActive"`
	Checkpoints []Checkpoint `json:"checkpoints,omitempty"`
	GPXFile     string       `json:"gpxFile,omitempty"`
}

// Key returns the store identity of the route.
func (r Route) Key() string { return r.ID }

// GeometryPoint is one vertex of a route's parsed GPX geometry.
type GeometryPoint struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Elevation float64 `json:"elevation,omitempty"`
}

// RouteGeometry is the server-parsed geometry of a route's GPX file.
type RouteGeometry struct {
	RouteID    string          `json:"routeId"`
	Points     []GeometryPoint `json:"points"`
	DistanceKM float64         `json:"distance"`
}
