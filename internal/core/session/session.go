// Package session owns the process-wide authentication context: the bearer
// credential, the cached user profile, and the redirect latch used by Guard.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Store persists the credential across process restarts.
// LoadCredential returns "" and a nil error when nothing is stored.
type Store interface {
	LoadCredential(ctx context.Context) (string, error)
	SaveCredential(ctx context.Context, token string) error
	ClearCredential(ctx context.Context) error
}

// Session is the single authentication context of the process. Construct
// one in main and pass it by reference; the persisted credential is loaded
// on first access.
type Session struct {
	store Store
	log   zerolog.Logger
	now   func() time.Time

	loadOnce sync.Once

	mu               sync.RWMutex
	credential       string
	user             *User
	redirectInFlight bool
}

// New creates a session backed by store. A nil store keeps the credential
// in memory only.
func New(store Store, logger zerolog.Logger) *Session {
	return &Session{
		store: store,
		log:   logger,
		now:   time.Now,
	}
}

// Credential returns the bearer token, if logged in.
func (s *Session) Credential() (string, bool) {
	s.loadOnce.Do(s.load)

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential, s.credential != ""
}

// IsAuthenticated reports whether a credential is present.
func (s *Session) IsAuthenticated() bool {
	_, ok := s.Credential()
	return ok
}

// SetCredential stores a new credential in memory and in the store. The
// in-memory value is updated even when persisting fails.
func (s *Session) SetCredential(ctx context.Context, token string) error {
	s.loadOnce.Do(func() {})

	s.mu.Lock()
	s.credential = token
	s.user = nil
	s.mu.Unlock()

	if s.store == nil {
		return nil
	}
	if err := s.store.SaveCredential(ctx, token); err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}
	return nil
}

// Clear drops the credential and cached profile. Persistence failures are
// logged; local state is always cleared.
func (s *Session) Clear(ctx context.Context) {
	s.loadOnce.Do(func() {})

	s.mu.Lock()
	had := s.credential != ""
	s.credential = ""
	s.user = nil
	s.mu.Unlock()

	if s.store == nil {
		return
	}
	if err := s.store.ClearCredential(ctx); err != nil {
		s.log.Warn().Err(err).Msg("failed to remove stored credential")
	}
	if had {
		s.log.Debug().Msg("session cleared")
	}
}

// User returns the cached profile from the last successful /auth/me call.
func (s *Session) User() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

// SetUser replaces the cached profile.
func (s *Session) SetUser(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
}

// ExpiresAt returns the credential's expiry when it is a JWT carrying exp.
func (s *Session) ExpiresAt() (time.Time, bool) {
	token, ok := s.Credential()
	if !ok {
		return time.Time{}, false
	}
	return Expiry(token)
}

// beginRedirect takes the redirect latch unless a redirect is already in
// flight or atLogin reports the login view is showing.
func (s *Session) beginRedirect(atLogin func() bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.redirectInFlight || atLogin() {
		return false
	}
	s.redirectInFlight = true
	return true
}

func (s *Session) endRedirect() {
	s.mu.Lock()
	s.redirectInFlight = false
	s.mu.Unlock()
}

func (s *Session) load() {
	if s.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	token, err := s.store.LoadCredential(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to load stored credential")
		return
	}
	if token == "" {
		return
	}

	if exp, ok := Expiry(token); ok && !exp.After(s.now()) {
		s.log.Info().Time("expired_at", exp).Msg("stored credential expired, clearing")
		if err := s.store.ClearCredential(ctx); err != nil {
			s.log.Warn().Err(err).Msg("failed to remove expired credential")
		}
		return
	}

	s.mu.Lock()
	s.credential = token
	s.mu.Unlock()
}
