// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

package models

import "time"

// Runner lifecycle statuses. Transitions are caller-driven; the console
// only ever requests active→completed or the reverse.
const (
	RunnerStatusRegistered = "registered"
	RunnerStatusActive     = "active"
	RunnerStatusCompleted  = "completed"
	RunnerStatusInactive   = "inactive"
)

// GeoPoint is a GeoJSON Point as the API serializes locations.
// Coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// NewGeoPoint constructs a GeoJSON Point from a longitude/latitude pair.
func NewGeoPoint(lng, lat float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{lng, lat}}
}

// Runner is a registered marathon participant.
type Runner struct {
	ID                   string     `json:"_id"`
	RunnerNumber         string     `json:"runnerNumber"`
	Name                 string     `json:"name"`
	Email                string     `json:"email"`
	Phone                string     `json:"phone,omitempty"`
	RegisteredCategories []string   `json:"registeredCategories"`
	Status               string     `json:"status"`
	LastKnownLocation    *GeoPoint  `json:"lastKnownLocation,omitempty"`
	LocationTimestamp    *time.Time `json:"locationTimestamp,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
}

// Key returns the store identity of the runner.
func (r Runner) Key() string { return r.ID }

// RunnerPatch is a partial update to a Runner. Nil fields are left
// untouched; non-nil fields overwrite (last write per field wins).
type RunnerPatch struct {
	Status            *string
	LastKnownLocation *GeoPoint
	LocationTimestamp *time.Time
}

// Apply merges the patch into a copy of the runner and returns it.
func (p RunnerPatch) Apply(r Runner) Runner {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.LastKnownLocation != nil {
		loc := *p.LastKnownLocation
		loc.Coordinates = append([]float64(nil), p.LastKnownLocation.Coordinates...)
		r.LastKnownLocation = &loc
	}
	if p.LocationTimestamp != nil {
		ts := *p.LocationTimestamp
		r.LocationTimestamp = &ts
	}
	return r
}
