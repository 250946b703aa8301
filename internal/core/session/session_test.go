package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore implements Store for testing.
type memStore struct {
	mu       sync.Mutex
	token    string
	loads    int
	clearErr error
}

func (m *memStore) LoadCredential(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	return m.token, nil
}

func (m *memStore) SaveCredential(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *memStore) ClearCredential(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clearErr != nil {
		return m.clearErr
	}
	m.token = ""
	return nil
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestSession_LazyLoad(t *testing.T) {
	store := &memStore{token: "opaque-token"}
	s := New(store, zerolog.Nop())

	assert.Equal(t, 0, store.loads, "store must not be read before first access")

	tok, ok := s.Credential()
	assert.True(t, ok)
	assert.Equal(t, "opaque-token", tok)

	_, _ = s.Credential()
	assert.Equal(t, 1, store.loads)
}

func TestSession_LoadDropsExpiredJWT(t *testing.T) {
	store := &memStore{token: signedToken(t, time.Now().Add(-time.Hour))}
	s := New(store, zerolog.Nop())

	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, store.token)
}

func TestSession_LoadKeepsValidJWT(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	store := &memStore{token: signedToken(t, exp)}
	s := New(store, zerolog.Nop())

	assert.True(t, s.IsAuthenticated())
	got, ok := s.ExpiresAt()
	require.True(t, ok)
	assert.True(t, got.Equal(exp))
}

func TestSession_SetCredentialPersists(t *testing.T) {
	store := &memStore{token: "stale"}
	s := New(store, zerolog.Nop())
	s.SetUser(&User{Username: "old"})

	require.NoError(t, s.SetCredential(context.Background(), "fresh"))

	tok, ok := s.Credential()
	assert.True(t, ok)
	assert.Equal(t, "fresh", tok)
	assert.Equal(t, "fresh", store.token)

	_, hasUser := s.User()
	assert.False(t, hasUser, "a new credential invalidates the cached profile")
}

func TestSession_ClearAlwaysClearsMemory(t *testing.T) {
	store := &memStore{token: "tok", clearErr: errors.New("disk full")}
	s := New(store, zerolog.Nop())
	require.True(t, s.IsAuthenticated())
	s.SetUser(&User{Username: "ann"})

	s.Clear(context.Background())

	assert.False(t, s.IsAuthenticated())
	_, hasUser := s.User()
	assert.False(t, hasUser)
}

func TestSession_NilStore(t *testing.T) {
	s := New(nil, zerolog.Nop())
	assert.False(t, s.IsAuthenticated())

	require.NoError(t, s.SetCredential(context.Background(), "tok"))
	assert.True(t, s.IsAuthenticated())

	s.Clear(context.Background())
	assert.False(t, s.IsAuthenticated())
}
