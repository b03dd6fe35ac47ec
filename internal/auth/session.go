// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kmoyo/raceday/internal/api"
	"github.com/kmoyo/raceday/internal/logging"
	"github.com/kmoyo/raceday/internal/models"
)

// Session holds the live bearer token and reacts to upstream 401s by
// dropping it. It implements api.TokenSource.
//
// Construction order: build the Session, build the api.Client with the
// session as its TokenSource, then call BindClient so the session can
// log in and install the 401 hook. This breaks the otherwise circular
// setup between the two.
type Session struct {
	store *TokenStore

	mu     sync.RWMutex
	token  string
	admin  *models.AdminUser
	client *api.Client

	onExpired func()
}

// NewSession creates a session backed by the given token store.
func NewSession(store *TokenStore) *Session {
	return &Session{store: store}
}

// Token returns the current bearer token, or "" when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Authenticated reports whether a token is currently held.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Admin returns the profile loaded at login or resume, if any.
func (s *Session) Admin() (models.AdminUser, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.admin == nil {
		return models.AdminUser{}, false
	}
	return *s.admin, true
}

// SetOnExpired installs the forced-logout hook, invoked whenever the
// server rejects the token with a 401.
func (s *Session) SetOnExpired(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpired = fn
}

// BindClient attaches the API client and installs the 401 hook on it.
func (s *Session) BindClient(client *api.Client) {
	s.mu.Lock()
	s.client = client
	s.mu.Unlock()
	client.SetOnUnauthorized(s.expire)
}

// Login exchanges credentials for a token and persists it.
func (s *Session) Login(ctx context.Context, email, password string) error {
	client := s.boundClient()
	if client == nil {
		return fmt.Errorf("session has no bound client")
	}

	token, err := client.Login(ctx, email, password)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	if err := s.store.Save(token); err != nil {
		logging.Warn().Err(err).Msg("failed to persist session token")
	}

	admin, err := client.Me(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("login succeeded but profile fetch failed")
		return nil
	}

	s.mu.Lock()
	s.admin = &admin
	s.mu.Unlock()

	logging.Info().Str("admin", admin.Email).Msg("logged in")
	return nil
}

// Resume tries to restore a persisted token, verifying it against the
// server. Returns true when a valid session was restored. A rejected
// token is cleared and reported as (false, nil); only transport-level
// failures surface as errors.
func (s *Session) Resume(ctx context.Context) (bool, error) {
	client := s.boundClient()
	if client == nil {
		return false, fmt.Errorf("session has no bound client")
	}

	token, err := s.store.Load()
	if err != nil {
		return false, err
	}
	if token == "" {
		return false, nil
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	admin, err := client.Me(ctx)
	if err != nil {
		if api.IsAuth(err) {
			// expire already ran via the 401 hook; make sure the
			// stale token is gone even on a 403.
			s.clearToken()
			return false, nil
		}
		s.mu.Lock()
		s.token = ""
		s.mu.Unlock()
		return false, err
	}

	s.mu.Lock()
	s.admin = &admin
	s.mu.Unlock()

	logging.Info().Str("admin", admin.Email).Msg("session resumed")
	return true, nil
}

// Logout drops the token locally and clears the persisted copy.
func (s *Session) Logout() {
	s.clearToken()
	logging.Info().Msg("logged out")
}

// ExpiresSoon reports whether the token's exp claim falls within the
// given window. The claim is read without signature verification; the
// server remains the authority on validity. Tokens without a readable
// exp claim report false.
func (s *Session) ExpiresSoon(within time.Duration) bool {
	token := s.Token()
	if token == "" {
		return false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}

	return time.Until(exp.Time) <= within
}

// expire is the 401 hook: drop the token and notify.
func (s *Session) expire() {
	s.mu.Lock()
	hadToken := s.token != ""
	s.token = ""
	s.admin = nil
	fn := s.onExpired
	s.mu.Unlock()

	if !hadToken {
		return
	}

	if err := s.store.Clear(); err != nil {
		logging.Warn().Err(err).Msg("failed to clear persisted token")
	}
	logging.Warn().Msg("session rejected by server, forcing logout")

	if fn != nil {
		fn()
	}
}

func (s *Session) clearToken() {
	s.mu.Lock()
	s.token = ""
	s.admin = nil
	s.mu.Unlock()

	if err := s.store.Clear(); err != nil {
		logging.Warn().Err(err).Msg("failed to clear persisted token")
	}
}

func (s *Session) boundClient() *api.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}
