// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

// Package models defines the domain entities mirrored from the marathon
// platform API (runners, races, routes, admin users, message templates),
// the JSON envelope the API wraps every response in, the push-event
// payloads delivered over the real-time channel, and the typed patch
// structs the stores apply to entities in place.
//
// All entities are owned by the remote API; the structs here are
// disposable, refreshable copies. JSON tags match the wire shapes the
// API produces (Mongo-style "_id", GeoJSON Point locations).
package models
