// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/kmoyo/raceday/internal/api"
)

// unsignedJWT builds a structurally valid token with the given exp
// claim. The signature is garbage; claim inspection never verifies it.
func unsignedJWT(exp time.Time) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf(`{"exp":%d}`, exp.Unix())))
	return header + "." + payload + ".x"
}

func newSession(t *testing.T) *Session {
	t.Helper()
	return NewSession(NewTokenStore(filepath.Join(t.TempDir(), "token")))
}

func bindTestClient(s *Session, baseURL string) {
	s.BindClient(api.NewClient(api.Config{
		BaseURL: baseURL,
		Timeout: 2 * time.Second,
		Tokens:  s,
	}))
}

func TestExpiresSoon(t *testing.T) {
	cases := []struct {
		name   string
		token  string
		within time.Duration
		want   bool
	}{
		{"inside window", unsignedJWT(time.Now().Add(2 * time.Minute)), 5 * time.Minute, true},
		{"outside window", unsignedJWT(time.Now().Add(time.Hour)), 5 * time.Minute, false},
		{"already expired", unsignedJWT(time.Now().Add(-time.Minute)), 5 * time.Minute, true},
		{"no exp claim", "e30.e30.x", 5 * time.Minute, false},
		{"not a jwt", "opaque-token", 5 * time.Minute, false},
		{"logged out", "", 5 * time.Minute, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newSession(t)
			s.mu.Lock()
			s.token = tc.token
			s.mu.Unlock()

			if got := s.ExpiresSoon(tc.within); got != tc.want {
				t.Errorf("ExpiresSoon = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestExpireDropsTokenAndNotifiesOnce(t *testing.T) {
	s := newSession(t)
	if err := s.store.Save("jwt"); err != nil {
		t.Fatalf("save: %v", err)
	}
	s.mu.Lock()
	s.token = "jwt"
	s.mu.Unlock()

	var calls int
	s.SetOnExpired(func() { calls++ })

	s.expire()
	s.expire() // already logged out, must be a no-op

	if calls != 1 {
		t.Errorf("onExpired calls = %d, want 1", calls)
	}
	if s.Authenticated() {
		t.Error("session still authenticated after expire")
	}
	if got, _ := s.store.Load(); got != "" {
		t.Errorf("persisted token = %q, want cleared", got)
	}
}

func TestResumeWithoutBoundClient(t *testing.T) {
	s := newSession(t)
	if _, err := s.Resume(context.Background()); err == nil {
		t.Error("expected error when no client is bound")
	}
}

func TestResumeNoPersistedToken(t *testing.T) {
	s := newSession(t)
	bindTestClient(s, "http://127.0.0.1:1")

	ok, err := s.Resume(context.Background())
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if ok {
		t.Error("resumed without a persisted token")
	}
}

func TestResumeRestoresSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/me" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer persisted-jwt" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":true,"data":{"_id":"a1","name":"Asha Mwangi","email":"asha@example.org","role":"admin"}}`)
	}))
	defer srv.Close()

	s := newSession(t)
	if err := s.store.Save("persisted-jwt"); err != nil {
		t.Fatalf("save: %v", err)
	}
	bindTestClient(s, srv.URL)

	ok, err := s.Resume(context.Background())
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !ok {
		t.Fatal("resume = false, want true")
	}
	if !s.Authenticated() {
		t.Error("session not authenticated after resume")
	}
	admin, found := s.Admin()
	if !found || admin.Email != "asha@example.org" {
		t.Errorf("admin = %+v found=%v", admin, found)
	}
}

func TestResumeRejectedTokenCleared(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"success":false,"message":"token expired"}`)
	}))
	defer srv.Close()

	s := newSession(t)
	if err := s.store.Save("stale-jwt"); err != nil {
		t.Fatalf("save: %v", err)
	}
	bindTestClient(s, srv.URL)

	ok, err := s.Resume(context.Background())
	if err != nil {
		t.Fatalf("rejected token must not be an error, got %v", err)
	}
	if ok {
		t.Error("resume = true for a rejected token")
	}
	if s.Authenticated() {
		t.Error("session still authenticated after rejection")
	}
	if got, _ := s.store.Load(); got != "" {
		t.Errorf("persisted token = %q, want cleared", got)
	}
}
