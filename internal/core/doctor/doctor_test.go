package doctor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/resumepilot/internal/api"
	"github.com/colonyops/resumepilot/internal/core/config"
)

type fakeCheck struct {
	name  string
	items []CheckItem
	fixed []CheckItem
}

func (f *fakeCheck) Name() string { return f.name }

func (f *fakeCheck) Run(context.Context) Result {
	return Result{Name: f.name, Items: append([]CheckItem(nil), f.items...)}
}

func (f *fakeCheck) Fix(context.Context) Result {
	return Result{Name: f.name, Items: append([]CheckItem(nil), f.fixed...)}
}

func TestRunAll_SummaryAndFix(t *testing.T) {
	check := &fakeCheck{
		name: "fake",
		items: []CheckItem{
			{Label: "a", Status: StatusPass},
			{Label: "b", Status: StatusWarn, Fixable: true},
			{Label: "c", Status: StatusFail},
		},
		fixed: []CheckItem{{Label: "b", Status: StatusPass}},
	}

	results := RunAll(context.Background(), []Check{check}, Options{})
	require.Len(t, results, 1)
	assert.Equal(t, "warn", results[0].Items[1].StatusStr)

	passed, warned, failed := Summary(results)
	assert.Equal(t, []int{1, 1, 1}, []int{passed, warned, failed})
	assert.Equal(t, 1, CountFixable(results))

	fixed := RunAll(context.Background(), []Check{check}, Options{AutoFix: true})
	require.Len(t, fixed[0].Items, 1)
	assert.Equal(t, StatusPass, fixed[0].Items[0].Status)
	assert.Equal(t, 0, CountFixable(fixed))
}

func TestConfigCheck(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	result := NewConfigCheck(&cfg, "").Run(context.Background())
	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusPass, result.Items[0].Status)
	assert.Equal(t, "defaults", result.Items[0].Detail)

	cfg.Render.Style = "no-such-style"
	cfg.Stream.KeepAliveWhenBackgrounded = false

	result = NewConfigCheck(&cfg, "").Run(context.Background())
	require.Len(t, result.Items, 2)
	assert.Equal(t, "render.style", result.Items[0].Label)
	assert.Equal(t, StatusFail, result.Items[0].Status)
	assert.Equal(t, "Stream.keep_alive_when_backgrounded", result.Items[1].Label)
	assert.Equal(t, StatusWarn, result.Items[1].Status)
}

func TestConfigCheck_DataDirIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	cfg := config.DefaultConfig()
	cfg.DataDir = file

	result := NewConfigCheck(&cfg, "").Run(context.Background())
	require.NotEmpty(t, result.Items)
	assert.Equal(t, "data_dir", result.Items[0].Label)
	assert.Equal(t, StatusFail, result.Items[0].Status)
}

type fakeStore struct {
	integrityErr error
	expired      int64
	swept        bool
}

func (f *fakeStore) Integrity(context.Context) error { return f.integrityErr }

func (f *fakeStore) CountExpired(context.Context) (int64, error) {
	if f.swept {
		return 0, nil
	}
	return f.expired, nil
}

func (f *fakeStore) SweepExpired(context.Context) (int64, error) {
	f.swept = true
	return f.expired, nil
}

func TestStoreCheck(t *testing.T) {
	store := &fakeStore{expired: 3}
	check := NewStoreCheck(store, store)

	result := check.Run(context.Background())
	require.Len(t, result.Items, 2)
	assert.Equal(t, StatusPass, result.Items[0].Status)
	assert.Equal(t, StatusWarn, result.Items[1].Status)
	assert.True(t, result.Items[1].Fixable)

	results := RunAll(context.Background(), []Check{check}, Options{AutoFix: true})
	assert.True(t, store.swept)
	assert.Equal(t, "swept 3", results[0].Items[1].Detail)

	store.integrityErr = errors.New("quick check: page 4 corrupt")
	result = check.Run(context.Background())
	assert.Equal(t, StatusFail, result.Items[0].Status)
	assert.Equal(t, StatusPass, result.Items[1].Status)
}

type fakeCreds struct {
	authed bool
	exp    time.Time
}

func (f fakeCreds) IsAuthenticated() bool { return f.authed }

func (f fakeCreds) ExpiresAt() (time.Time, bool) { return f.exp, !f.exp.IsZero() }

func TestSessionCheck(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		creds    fakeCreds
		statuses []Status
	}{
		{name: "logged out", creds: fakeCreds{}, statuses: []Status{StatusWarn}},
		{name: "opaque token", creds: fakeCreds{authed: true}, statuses: []Status{StatusPass, StatusPass}},
		{name: "long lived", creds: fakeCreds{authed: true, exp: now.Add(72 * time.Hour)}, statuses: []Status{StatusPass, StatusPass}},
		{name: "expiring", creds: fakeCreds{authed: true, exp: now.Add(time.Hour)}, statuses: []Status{StatusPass, StatusWarn}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := NewSessionCheck(tt.creds)
			check.now = func() time.Time { return now }

			result := check.Run(context.Background())
			require.Len(t, result.Items, len(tt.statuses))
			for i, want := range tt.statuses {
				assert.Equal(t, want, result.Items[i].Status, result.Items[i].Label)
			}
		})
	}
}

func TestBackendCheck(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		want   Status
	}{
		{name: "ok", status: http.StatusOK, body: map[string]any{"code": 200, "data": map[string]any{"username": "ada"}}, want: StatusPass},
		{name: "unauthorized", status: http.StatusUnauthorized, body: map[string]any{"code": 401, "message": "login"}, want: StatusPass},
		{name: "server error", status: http.StatusInternalServerError, body: map[string]any{"code": 500, "message": "boom"}, want: StatusWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/auth/me", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(tt.body)
			}))
			defer srv.Close()

			check := NewBackendCheck(api.New(api.Config{BaseURL: srv.URL}), srv.URL)
			result := check.Run(context.Background())
			require.Len(t, result.Items, 1)
			assert.Equal(t, tt.want, result.Items[0].Status)
		})
	}
}

func TestBackendCheck_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	check := NewBackendCheck(api.New(api.Config{BaseURL: url, Timeout: time.Second}), url)
	result := check.Run(context.Background())
	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusFail, result.Items[0].Status)
}
