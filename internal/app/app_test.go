package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/resumepilot/internal/api"
	"github.com/colonyops/resumepilot/internal/core/config"
	"github.com/colonyops/resumepilot/internal/core/session"
	"github.com/colonyops/resumepilot/internal/data/db"
)

// syncBuffer guards a bytes.Buffer written from request goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestApp(t *testing.T, h http.HandlerFunc) (*App, *syncBuffer) {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.API.BaseURL = srv.URL

	database, err := db.Open(cfg.DataDir, db.DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	var notices syncBuffer
	return New(&cfg, database, &notices), &notices
}

func TestApp_RejectedCredentialClearsSessionAndNotifies(t *testing.T) {
	var gotAuth atomic.Value
	a, notices := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 401, "message": "token expired"})
	})
	ctx := context.Background()
	a.Navigator.SetView("ls")

	require.NoError(t, a.Session.SetCredential(ctx, "opaque-token"))

	_, err := a.Resumes.List(ctx)
	require.Error(t, err)
	assert.True(t, api.IsUnauthorized(err))

	assert.Equal(t, "Bearer opaque-token", gotAuth.Load())
	assert.False(t, a.Session.IsAuthenticated())
	assert.Contains(t, notices.String(), "resumepilot login")
	assert.Equal(t, session.ViewLogin, a.Navigator.CurrentView())

	stored, err := a.Credentials.LoadCredential(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestApp_ProbeDoesNotTouchSession(t *testing.T) {
	a, notices := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
	})
	ctx := context.Background()
	require.NoError(t, a.Session.SetCredential(ctx, "opaque-token"))

	_, err := a.Probe.Do(ctx, api.Request{Path: "/auth/me"})
	require.Error(t, err)

	assert.True(t, a.Session.IsAuthenticated())
	assert.Empty(t, notices.String())
}

func TestApp_DoctorChecks(t *testing.T) {
	a, _ := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	checks := a.DoctorChecks("")
	names := make([]string, 0, len(checks))
	for _, c := range checks {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"Configuration", "Local Store", "Session", "Backend"}, names)
}

func TestNavigator(t *testing.T) {
	var buf bytes.Buffer
	nav := NewNavigator(&buf)

	nav.SetView("status")
	require.NoError(t, nav.Navigate(context.Background(), "status"))
	assert.Empty(t, buf.String())

	require.NoError(t, nav.Navigate(context.Background(), session.ViewLogin))
	assert.Contains(t, buf.String(), "resumepilot login")
	assert.Equal(t, session.ViewLogin, nav.CurrentView())
}

type countingSweeper struct {
	calls atomic.Int32
}

func (c *countingSweeper) SweepExpired(context.Context) (int64, error) {
	c.calls.Add(1)
	return 1, nil
}

func TestStartSweep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &countingSweeper{}

	done := make(chan struct{})
	go func() {
		StartSweep(ctx, s, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return s.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep did not stop after cancel")
	}
}
