// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

package api

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an upstream API failure.
type ErrorKind string

const (
	// KindTransport covers network failures, timeouts, and an open
	// circuit breaker. Retrying later may succeed.
	KindTransport ErrorKind = "transport"

	// KindAuth covers 401/403 responses. The session is no longer
	// valid upstream.
	KindAuth ErrorKind = "auth"

	// KindBusiness covers well-formed rejections: 4xx/5xx with an
	// envelope, or a 2xx envelope with success=false.
	KindBusiness ErrorKind = "business"

	// KindMalformed covers responses whose body could not be decoded.
	KindMalformed ErrorKind = "malformed"
)

// Error is the typed error returned by every Client method.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("api: %s (%s, status %d)", e.Message, e.Kind, e.Status)
	}
	return fmt.Sprintf("api: %s (%s)", e.Message, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindAuth
}

// IsTransport reports whether err is a transport-level failure.
func IsTransport(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindTransport
}

func transportErr(err error) *Error {
	return &Error{Kind: KindTransport, Message: err.Error(), Err: err}
}

func malformedErr(status int, err error) *Error {
	return &Error{Kind: KindMalformed, Status: status, Message: "undecodable response body", Err: err}
}
