// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

package models

import "time"

// RunnerLocationEvent is the push payload for the runnerLocation event.
// A runner-scoped event carries RunnerID (RunnerNumber as fallback
// matching key); a race-scoped event carries RaceID. Timestamp defaults
// to receipt time when absent on the wire.
type RunnerLocationEvent struct {
	RunnerID     string     `json:"runnerId,omitempty"`
	RunnerNumber string     `json:"runnerNumber,omitempty"`
	RaceID       string     `json:"raceId,omitempty"`
	Location     *GeoPoint  `json:"location,omitempty"`
	Elevation    *float64   `json:"elevation,omitempty"`
	Speed        *float64   `json:"speed,omitempty"`
	Status       string     `json:"status,omitempty"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
}

// RaceCompletedEvent is the push payload for the raceCompleted event.
// FinishTime defaults to receipt time when absent on the wire.
type RaceCompletedEvent struct {
	RaceID         string     `json:"raceId"`
	FinishTime     *time.Time `json:"finishTime,omitempty"`
	CompletionTime float64    `json:"completionTime"`
	AveragePace    float64    `json:"averagePace"`
}
