// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

// Package metrics provides Prometheus metrics collection for Raceday.
//
// Collectors are package-level variables registered with the default
// registry via promauto; the ops HTTP surface exposes them at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Marathon API client metrics

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "raceday_api_request_duration_seconds",
			Help:    "Marathon API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raceday_api_requests_total",
			Help: "Total marathon API requests",
		},
		[]string{"endpoint", "outcome"}, // outcome: success, transport, auth, business, malformed
	)

	// Circuit breaker metrics

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "raceday_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raceday_circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Event channel metrics

	ChannelConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "raceday_channel_connected",
			Help: "Whether the push channel is connected (1) or not (0)",
		},
	)

	ChannelEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raceday_channel_events_total",
			Help: "Total push events received by kind",
		},
		[]string{"kind"},
	)

	ChannelDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raceday_channel_dropped_total",
			Help: "Total push events dropped before dispatch",
		},
		[]string{"reason"}, // "decode", "unknown_event"
	)

	ChannelReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "raceday_channel_reconnects_total",
			Help: "Total channel reconnection attempts",
		},
	)

	// Store metrics

	StoreLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raceday_store_loads_total",
			Help: "Total collection store loads by outcome",
		},
		[]string{"store", "outcome"}, // outcome: success, error, stale
	)

	StorePatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raceday_store_patches_total",
			Help: "Total store patch applications by result",
		},
		[]string{"store", "result"}, // result: applied, miss
	)

	StoreRefetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raceday_store_refetches_total",
			Help: "Total background reconciliation refetches",
		},
		[]string{"store"},
	)

	// Reconciliation metrics

	ReconcileEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raceday_reconcile_events_total",
			Help: "Total push events processed by the reconciler",
		},
		[]string{"kind"},
	)

	ReconcileMalformedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "raceday_reconcile_malformed_total",
			Help: "Total malformed push events dropped by the reconciler",
		},
	)

	NotificationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "raceday_notifications_total",
			Help: "Total user-facing notifications emitted",
		},
	)
)
