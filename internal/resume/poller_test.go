package resume

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/resumepilot/internal/api"
	"github.com/colonyops/resumepilot/internal/core/task"
)

type step struct {
	snap task.Task
	err  error
}

// scriptedFetcher replays steps in order and repeats the last one.
type scriptedFetcher struct {
	mu    sync.Mutex
	steps []step
	calls int
}

func (f *scriptedFetcher) FetchStatus(_ context.Context, taskID string) (task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := f.steps[min(f.calls, len(f.steps)-1)]
	f.calls++
	if s.err != nil {
		return task.Task{}, s.err
	}
	s.snap.TaskID = taskID
	return s.snap, nil
}

func (f *scriptedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var fastPoll = PollConfig{
	InitialInterval: time.Millisecond,
	MaxInterval:     2 * time.Millisecond,
	MaxElapsed:      time.Second,
}

func TestPoller_StopsAtTerminal(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []step{
		{snap: task.Task{Status: task.StatusPending}},
		{snap: task.Task{Status: task.StatusProcessing, Progress: 30}},
		{snap: task.Task{Status: task.StatusProcessing, Progress: 70}},
		{snap: task.Task{Status: task.StatusCompleted, ResultRef: "r-1"}},
	}}
	poller := NewPoller(fetcher, task.NewTracker(time.Minute), fastPoll, zerolog.Nop())

	var seen []task.Task
	final, err := poller.Wait(context.Background(), "t-1", func(tk task.Task) {
		seen = append(seen, tk)
	})

	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, final.Status)
	assert.Equal(t, "r-1", final.ResultRef)
	assert.Equal(t, 4, fetcher.Calls())
	require.Len(t, seen, 4)
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i].Progress, seen[i-1].Progress, "progress must not decrease")
	}
}

func TestPoller_IgnoresStaleSnapshots(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []step{
		{snap: task.Task{Status: task.StatusProcessing, Progress: 60}},
		{snap: task.Task{Status: task.StatusProcessing, Progress: 20}},
		{snap: task.Task{Status: task.StatusPending}},
		{snap: task.Task{Status: task.StatusFailed, ErrorDetail: "bad pdf"}},
	}}
	poller := NewPoller(fetcher, nil, fastPoll, zerolog.Nop())

	var progress []int
	final, err := poller.Wait(context.Background(), "t-1", func(tk task.Task) {
		progress = append(progress, tk.Progress)
	})

	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, final.Status)
	assert.Equal(t, "bad pdf", final.ErrorDetail)
	assert.Equal(t, []int{60, 60}, progress)
}

func TestPoller_RetriesTransportErrors(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []step{
		{err: &api.TransportError{Op: "GET status", Timeout: true, Err: context.DeadlineExceeded}},
		{snap: task.Task{Status: task.StatusCompleted, ResultRef: "r-2"}},
	}}
	poller := NewPoller(fetcher, nil, fastPoll, zerolog.Nop())

	final, err := poller.Wait(context.Background(), "t-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "r-2", final.ResultRef)
	assert.Equal(t, 2, fetcher.Calls())
}

func TestPoller_StopsOnPermanentErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "not found", err: &api.NotFoundError{Resource: "task", Message: "gone"}},
		{name: "unauthorized", err: &api.AuthorizationError{Message: "expired"}},
		{name: "application", err: &api.ApplicationError{Code: 5001, Message: "boom"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &scriptedFetcher{steps: []step{{err: tt.err}}}
			poller := NewPoller(fetcher, nil, fastPoll, zerolog.Nop())

			_, err := poller.Wait(context.Background(), "t-1", nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, 1, fetcher.Calls())
		})
	}
}

func TestPoller_TimesOut(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []step{
		{snap: task.Task{Status: task.StatusProcessing, Progress: 10}},
	}}
	cfg := fastPoll
	cfg.MaxElapsed = 20 * time.Millisecond
	poller := NewPoller(fetcher, nil, cfg, zerolog.Nop())

	last, err := poller.Wait(context.Background(), "t-1", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPollTimeout))
	assert.Equal(t, 10, last.Progress)
}

func TestPoller_HonorsContext(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []step{
		{snap: task.Task{Status: task.StatusProcessing}},
	}}
	cfg := fastPoll
	cfg.InitialInterval = time.Hour
	cfg.MaxInterval = time.Hour
	poller := NewPoller(fetcher, nil, cfg, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := poller.Wait(ctx, "t-1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoller_TimeoutWaitsFullBudget(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []step{
		{snap: task.Task{Status: task.StatusProcessing, Progress: 40}},
	}}
	cfg := fastPoll
	cfg.InitialInterval = time.Hour
	cfg.MaxInterval = time.Hour
	cfg.MaxElapsed = 30 * time.Millisecond
	poller := NewPoller(fetcher, nil, cfg, zerolog.Nop())

	start := time.Now()
	last, err := poller.Wait(context.Background(), "t-1", nil)
	require.ErrorIs(t, err, ErrPollTimeout)
	assert.GreaterOrEqual(t, time.Since(start), cfg.MaxElapsed)
	assert.Equal(t, 40, last.Progress)
	assert.Equal(t, 1, fetcher.Calls())
}

func TestPoller_ParentCancelNotReportedAsTimeout(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []step{
		{snap: task.Task{Status: task.StatusProcessing}},
	}}
	poller := NewPoller(fetcher, nil, fastPoll, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := poller.Wait(ctx, "t-1", nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrPollTimeout)
}
