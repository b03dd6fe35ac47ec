// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

// Package ops serves the local operational HTTP surface: liveness,
// readiness, Prometheus metrics, and a JSON snapshot of the mirrored
// state. It binds to localhost by default and carries no data-plane
// traffic.
package ops

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kmoyo/raceday/internal/logging"
)

// ReadyCheck is one named readiness probe. All checks must pass for
// /readyz to return 200.
type ReadyCheck struct {
	Name  string
	Check func() bool
}

// Snapshot produces the current view of one mirrored store for /state.
type Snapshot func() any

// Config carries the server construction parameters.
type Config struct {
	ListenAddr        string
	RequestsPerMinute int

	ReadyChecks []ReadyCheck

	// Snapshots maps a store name to its state producer.
	Snapshots map[string]Snapshot
}

// NewServer builds the operational HTTP server. The caller owns its
// lifecycle.
func NewServer(cfg Config) *http.Server {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.RequestsPerMinute > 0 {
		r.Use(httprate.LimitByIP(cfg.RequestsPerMinute, time.Minute))
	}

	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(cfg.ReadyChecks))
	r.Get("/state", handleState(cfg.Snapshots))
	r.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// handleHealthz reports process liveness only.
func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz runs every readiness check and reports per-check
// results. Any failing check turns the response into a 503.
func handleReadyz(checks []ReadyCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		results := make(map[string]bool, len(checks))
		ready := true
		for _, check := range checks {
			ok := check.Check()
			results[check.Name] = ok
			if !ok {
				ready = false
			}
		}

		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]any{
			"ready":  ready,
			"checks": results,
		})
	}
}

// handleState dumps the mirrored stores as one JSON document.
func handleState(snapshots map[string]Snapshot) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		state := make(map[string]any, len(snapshots))
		for name, snap := range snapshots {
			state[name] = snap()
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("failed to encode ops response")
	}
}
