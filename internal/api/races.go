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

// ListRaces fetches races, optionally filtered by status and category
// through the query filters. Returns the list and the server count.
//
// The signature matches store.FetchFunc so a race collection can be
// bound to it directly.
func (c *Client) ListRaces(ctx context.Context, q store.Query) ([]models.Race, int, error) {
	var races []models.Race
	count, err := c.decodeData(ctx, "races.list", http.MethodGet, "/races", q.Values(), nil, &races)
	if err != nil {
		return nil, 0, err
	}
	if count < 0 {
		count = len(races)
	}
	return races, count, nil
}

// GetRace fetches a single race with its full tracking data.
func (c *Client) GetRace(ctx context.Context, id string) (models.Race, error) {
	var race models.Race
	_, err := c.decodeData(ctx, "races.get", http.MethodGet, "/races/"+id, nil, nil, &race)
	return race, err
}

// RaceCertificate downloads the finisher certificate PDF for a
// completed race. Returns the blob and its content type.
func (c *Client) RaceCertificate(ctx context.Context, id string) ([]byte, string, error) {
	return c.doBlob(ctx, "races.certificate", http.MethodGet, "/races/"+id+"/certificate", nil)
}
