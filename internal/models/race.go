// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

package models

import "time"

// Race lifecycle statuses. A race becomes completed exactly once; after
// that finishTime/completionTime/averagePace are immutable from the
// client's perspective.
const (
	RaceStatusStarted    = "started"
	RaceStatusInProgress = "in-progress"
	RaceStatusCompleted  = "completed"
)

// TrackPoint is one sample of a race's tracking sequence. Appends are
// strictly non-decreasing in Timestamp; the transport guarantees order.
type TrackPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Location  GeoPoint  `json:"location"`
	Elevation float64   `json:"elevation"`
	Speed     float64   `json:"speed"`
}

// CheckpointCrossing records a runner passing a route checkpoint.
type CheckpointCrossing struct {
	Checkpoint string    `json:"checkpoint"`
	Timestamp  time.Time `json:"timestamp"`
}

// RaceRunner is the runner summary embedded in a race document.
type RaceRunner struct {
	ID           string `json:"_id"`
	Name         string `json:"name"`
	RunnerNumber string `json:"runnerNumber"`
}

// Race is one runner's attempt at a route in a given category.
type Race struct {
	ID              string               `json:"_id"`
	Runner          RaceRunner           `json:"runner"`
	RouteID         string               `json:"route"`
	Category        string               `json:"category"`
	Status          string               `json:"status"`
	StartTime       time.Time            `json:"startTime"`
	FinishTime      *time.Time           `json:"finishTime,omitempty"`
	CompletionTime  *float64             `json:"completionTime,omitempty"` // seconds
	AveragePace     *float64             `json:"averagePace,omitempty"`    // min/km
	CheckpointTimes []CheckpointCrossing `json:"checkpointTimes,omitempty"`
	TrackingData    []TrackPoint         `json:"trackingData,omitempty"`
}

// Key returns the store identity of the race.
func (r Race) Key() string { return r.ID }

// RacePatch is a partial update to a Race. Nil fields are left untouched.
// TrackingData replaces the tracking sequence wholesale; AppendTracking
// appends to it. The two are mutually exclusive by construction of the
// reconciliation policy (replace wins if both are set).
type RacePatch struct {
	Status         *string
	FinishTime     *time.Time
	CompletionTime *float64
	AveragePace    *float64
	TrackingData   *[]TrackPoint
	AppendTracking []TrackPoint
}

// Apply merges the patch into a copy of the race and returns it.
func (p RacePatch) Apply(r Race) Race {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.FinishTime != nil {
		ft := *p.FinishTime
		r.FinishTime = &ft
	}
	if p.CompletionTime != nil {
		ct := *p.CompletionTime
		r.CompletionTime = &ct
	}
	if p.AveragePace != nil {
		ap := *p.AveragePace
		r.AveragePace = &ap
	}
	switch {
	case p.TrackingData != nil:
		r.TrackingData = append([]TrackPoint(nil), (*p.TrackingData)...)
	case len(p.AppendTracking) > 0:
		merged := make([]TrackPoint, 0, len(r.TrackingData)+len(p.AppendTracking))
		merged = append(merged, r.TrackingData...)
		merged = append(merged, p.AppendTracking...)
		r.TrackingData = merged
	}
	return r
}
