// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

package ops

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
)

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "127.0.0.1:51000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv := NewServer(Config{ListenAddr: "127.0.0.1:0"})

	rec := get(t, srv.Handler, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestReadyzAllPassing(t *testing.T) {
	srv := NewServer(Config{
		ListenAddr: "127.0.0.1:0",
		ReadyChecks: []ReadyCheck{
			{Name: "session", Check: func() bool { return true }},
			{Name: "channel", Check: func() bool { return true }},
		},
	})

	rec := get(t, srv.Handler, "/readyz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Ready  bool            `json:"ready"`
		Checks map[string]bool `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Ready {
		t.Error("ready = false, want true")
	}
	if !body.Checks["session"] || !body.Checks["channel"] {
		t.Errorf("checks = %v, want both true", body.Checks)
	}
}

func TestReadyzFailingCheck(t *testing.T) {
	srv := NewServer(Config{
		ListenAddr: "127.0.0.1:0",
		ReadyChecks: []ReadyCheck{
			{Name: "session", Check: func() bool { return true }},
			{Name: "channel", Check: func() bool { return false }},
		},
	})

	rec := get(t, srv.Handler, "/readyz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var body struct {
		Ready  bool            `json:"ready"`
		Checks map[string]bool `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Ready {
		t.Error("ready = true, want false")
	}
	if !body.Checks["session"] {
		t.Error("passing check reported as failed")
	}
	if body.Checks["channel"] {
		t.Error("failing check reported as passing")
	}
}

func TestStateSnapshot(t *testing.T) {
	srv := NewServer(Config{
		ListenAddr: "127.0.0.1:0",
		Snapshots: map[string]Snapshot{
			"runners": func() any { return map[string]int{"items": 12, "total": 45} },
			"races":   func() any { return map[string]int{"items": 3, "total": 3} },
		},
	})

	rec := get(t, srv.Handler, "/state")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["runners"]["total"] != 45 {
		t.Errorf("runners total = %d, want 45", body["runners"]["total"])
	}
	if body["races"]["items"] != 3 {
		t.Errorf("races items = %d, want 3", body["races"]["items"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := NewServer(Config{ListenAddr: "127.0.0.1:0"})

	rec := get(t, srv.Handler, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics output missing standard runtime collectors")
	}
}

func TestRateLimit(t *testing.T) {
	srv := NewServer(Config{ListenAddr: "127.0.0.1:0", RequestsPerMinute: 3})

	var limited bool
	for i := 0; i < 5; i++ {
		rec := get(t, srv.Handler, "/healthz")
		if rec.Code == http.StatusTooManyRequests {
			limited = true
		}
	}
	if !limited {
		t.Error("expected at least one request to be rate limited")
	}
}
