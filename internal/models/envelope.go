// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

package models

import "github.com/goccy/go-json"

// Envelope is the JSON wrapper every REST response arrives in:
//
//	{"success": true, "data": ..., "count": 248}
//	{"success": false, "error": "route not found"}
//
// Count is only present on paginated collection responses.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Count   *int            `json:"count,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

// ErrorText returns whichever of the error/message fields is populated.
func (e Envelope) ErrorText() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// TokenData is the data payload of a successful login response.
type TokenData struct {
	Token string `json:"token"`
}
