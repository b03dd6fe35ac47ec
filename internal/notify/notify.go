// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

// Package notify delivers transient, non-blocking user-facing
// notifications and formats completion times and paces for display.
package notify

import (
	"fmt"
	"math"

	"github.com/kmoyo/raceday/internal/logging"
	"github.com/kmoyo/raceday/internal/metrics"
)

// Notifier receives transient user-facing notifications. Implementations
// must not block; delivery is fire-and-forget.
type Notifier interface {
	Success(msg string)
	Info(msg string)
	Error(msg string)
}

// LogNotifier writes notifications to the structured log. It is the
// default sink for the headless console.
type LogNotifier struct{}

// Success logs a success notification.
func (LogNotifier) Success(msg string) {
	metrics.NotificationsTotal.Inc()
	logging.Info().Str("notification", "success").Msg(msg)
}

// Info logs an informational notification.
func (LogNotifier) Info(msg string) {
	metrics.NotificationsTotal.Inc()
	logging.Info().Str("notification", "info").Msg(msg)
}

// Error logs an error notification.
func (LogNotifier) Error(msg string) {
	metrics.NotificationsTotal.Inc()
	logging.Warn().Str("notification", "error").Msg(msg)
}

// FormatCompletionTime renders a duration in seconds as hh:mm:ss.
//
//	FormatCompletionTime(5400) == "01:30:00"
func FormatCompletionTime(seconds float64) string {
	total := int(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
}

// FormatPace renders a pace in minutes-per-kilometer as m:ss/km.
//
//	FormatPace(5.1) == "5:06/km"
func FormatPace(pace float64) string {
	minutes := int(pace)
	seconds := int(math.Round((pace - float64(minutes)) * 60))
	if seconds == 60 {
		minutes++
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d/km", minutes, seconds)
}
