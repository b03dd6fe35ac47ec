// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

package services

import (
	"context"
	"time"

	"github.com/kmoyo/raceday/internal/logging"
)

// RefreshFunc reloads one store from the API. A failed refresh is
// logged and retried on the next tick; the mirrored state keeps
// serving the last good snapshot in between.
type RefreshFunc func(ctx context.Context) error

// RefreshService periodically re-fetches every registered store so the
// mirror converges even if individual push events were missed.
type RefreshService struct {
	interval time.Duration
	refresh  map[string]RefreshFunc
}

// NewRefreshService creates the periodic refresher. interval must be
// positive; the map key is the store name used in logs.
func NewRefreshService(interval time.Duration, refresh map[string]RefreshFunc) *RefreshService {
	return &RefreshService{
		interval: interval,
		refresh:  refresh,
	}
}

// Serve implements suture.Service. It ticks until the context ends.
func (s *RefreshService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.refreshAll(ctx)
		}
	}
}

func (s *RefreshService) refreshAll(ctx context.Context) {
	for name, refresh := range s.refresh {
		if err := refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Warn().Str("store", name).Err(err).Msg("periodic refresh failed")
			continue
		}
		logging.Debug().Str("store", name).Msg("periodic refresh complete")
	}
}

// String implements fmt.Stringer; suture uses it in log messages.
func (s *RefreshService) String() string {
	return "store-refresher"
}
