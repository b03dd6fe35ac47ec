// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

// Package reconcile routes each inbound push event to the collection
// stores and the detail projection with the correct field semantics per
// event kind.
//
// Handlers never propagate errors: a malformed event (missing id) is a
// silent no-op, counted in metrics. Replaying a raceCompleted event is
// safe; the merge is a field overwrite, not an accumulation, and the
// completion notification is deduplicated.
package reconcile

import (
	"fmt"
	"time"

	"github.com/kmoyo/raceday/internal/cache"
	"github.com/kmoyo/raceday/internal/channel"
	"github.com/kmoyo/raceday/internal/logging"
	"github.com/kmoyo/raceday/internal/metrics"
	"github.com/kmoyo/raceday/internal/models"
	"github.com/kmoyo/raceday/internal/notify"
	"github.com/kmoyo/raceday/internal/store"
)

// RunnerStore is the collection of runners the reconciler patches.
type RunnerStore = store.Collection[models.Runner, models.RunnerPatch]

// RaceStore is the collection of races the reconciler patches.
type RaceStore = store.Collection[models.Race, models.RacePatch]

// RaceDetail is the optional open-race projection.
type RaceDetail = store.Detail[models.Race, models.RacePatch]

// Reconciler applies push events to the live mirrors.
type Reconciler struct {
	runners    *RunnerStore
	races      *RaceStore
	raceDetail *RaceDetail
	notifier   notify.Notifier

	// notified deduplicates completion notifications across replayed
	// raceCompleted events.
	notified *cache.LRU

	// now is the receipt-time source, replaceable in tests.
	now func() time.Time
}

// New creates a reconciler over the given stores. notifier receives the
// one-time race-completion notifications.
func New(runners *RunnerStore, races *RaceStore, raceDetail *RaceDetail, notifier notify.Notifier) *Reconciler {
	return &Reconciler{
		runners:    runners,
		races:      races,
		raceDetail: raceDetail,
		notifier:   notifier,
		notified:   cache.NewLRU(4096, 24*time.Hour),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Bind subscribes the reconciler's handlers on the channel and returns
// the subscription tokens for later removal.
func (r *Reconciler) Bind(ch *channel.Channel) []channel.Token {
	return []channel.Token{
		ch.OnLocationUpdate(r.HandleRunnerLocation),
		ch.OnRaceCompleted(r.HandleRaceCompleted),
	}
}

// HandleRunnerLocation applies a runnerLocation event.
//
// For the runner collection: patch {lastKnownLocation, status?} on the
// runner matched by id, falling back to runner number. The status is
// only overwritten when the event explicitly carries one.
//
// For the race collection and open detail: append one tracking point
// built from position/elevation/speed/timestamp, defaulting missing
// numeric fields to zero and a missing timestamp to receipt time.
func (r *Reconciler) HandleRunnerLocation(ev models.RunnerLocationEvent) {
	if ev.RunnerID == "" && ev.RunnerNumber == "" && ev.RaceID == "" {
		metrics.ReconcileMalformedTotal.Inc()
		return
	}
	metrics.ReconcileEventsTotal.WithLabelValues(string(channel.KindRunnerLocation)).Inc()

	ts := r.eventTime(ev.Timestamp)

	if (ev.RunnerID != "" || ev.RunnerNumber != "") && ev.Location != nil {
		patch := models.RunnerPatch{
			LastKnownLocation: ev.Location,
			LocationTimestamp: &ts,
		}
		if ev.Status != "" {
			status := ev.Status
			patch.Status = &status
		}
		r.runners.PatchMatching(func(run models.Runner) bool {
			if ev.RunnerID != "" && run.ID == ev.RunnerID {
				return true
			}
			return ev.RunnerNumber != "" && run.RunnerNumber == ev.RunnerNumber
		}, patch)
	}

	if ev.RaceID != "" {
		if ev.Location == nil {
			metrics.ReconcileMalformedTotal.Inc()
			return
		}
		point := models.TrackPoint{
			Timestamp: ts,
			Location:  *ev.Location,
			Elevation: deref(ev.Elevation),
			Speed:     deref(ev.Speed),
		}
		patch := models.RacePatch{AppendTracking: []models.TrackPoint{point}}
		r.races.Patch(ev.RaceID, patch)
		r.raceDetail.Patch(ev.RaceID, patch)
	}
}

// HandleRaceCompleted applies a raceCompleted event to both the race
// collection and, if open on that race, the detail projection. Only
// when the detail is open on the completed race is a one-time
// notification naming the runner and the formatted completion time
// emitted.
func (r *Reconciler) HandleRaceCompleted(ev models.RaceCompletedEvent) {
	if ev.RaceID == "" {
		metrics.ReconcileMalformedTotal.Inc()
		return
	}
	metrics.ReconcileEventsTotal.WithLabelValues(string(channel.KindRaceCompleted)).Inc()

	finish := r.eventTime(ev.FinishTime)
	status := models.RaceStatusCompleted
	completion := ev.CompletionTime
	pace := ev.AveragePace

	patch := models.RacePatch{
		Status:         &status,
		FinishTime:     &finish,
		CompletionTime: &completion,
		AveragePace:    &pace,
	}

	r.races.Patch(ev.RaceID, patch)
	r.raceDetail.Patch(ev.RaceID, patch)

	// The notification belongs to the open detail view only. Completions
	// for races that are merely on the current page, or not loaded at
	// all, patch silently.
	if !r.raceDetail.IsOpen(ev.RaceID) {
		return
	}
	race, known := r.raceDetail.Current()
	if !known {
		return
	}

	if r.notified.IsDuplicate(ev.RaceID) {
		return
	}

	r.notifier.Success(fmt.Sprintf(
		"Race completed by %s in %s",
		race.Runner.Name,
		notify.FormatCompletionTime(ev.CompletionTime),
	))
	logging.Info().
		Str("race_id", ev.RaceID).
		Str("runner", race.Runner.Name).
		Str("average_pace", notify.FormatPace(ev.AveragePace)).
		Float64("completion_seconds", ev.CompletionTime).
		Msg("race completion notified")
}

// eventTime returns the wire timestamp or the receipt time when absent.
func (r *Reconciler) eventTime(ts *time.Time) time.Time {
	if ts != nil {
		return *ts
	}
	return r.now()
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
