package resume

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/colonyops/resumepilot/internal/api"
	"github.com/colonyops/resumepilot/internal/core/task"
)

// ErrPollTimeout is returned when a task is still running once the poller's
// maximum elapsed time has passed.
var ErrPollTimeout = errors.New("task did not finish in time")

// errStillRunning signals the retry loop to poll again.
var errStillRunning = errors.New("task still running")

// StatusFetcher performs a single status lookup.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, taskID string) (task.Task, error)
}

// PollConfig controls the interval between status lookups.
type PollConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
}

// DefaultPollConfig mirrors the config file defaults.
var DefaultPollConfig = PollConfig{
	InitialInterval: time.Second,
	MaxInterval:     10 * time.Second,
	MaxElapsed:      15 * time.Minute,
}

// UpdateFunc receives every snapshot accepted as authoritative.
type UpdateFunc func(task.Task)

// Poller repeats FetchStatus with exponential back-off until the task is
// terminal. Snapshots are filtered through a Tracker so a late reply never
// replaces a newer one.
type Poller struct {
	fetcher StatusFetcher
	tracker *task.Tracker
	cfg     PollConfig
	log     zerolog.Logger
}

// NewPoller creates a poller. Zero config fields take DefaultPollConfig values.
func NewPoller(fetcher StatusFetcher, tracker *task.Tracker, cfg PollConfig, logger zerolog.Logger) *Poller {
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = DefaultPollConfig.InitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = DefaultPollConfig.MaxInterval
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = DefaultPollConfig.MaxElapsed
	}
	if tracker == nil {
		tracker = task.NewTracker(time.Hour)
	}
	return &Poller{
		fetcher: fetcher,
		tracker: tracker,
		cfg:     cfg,
		log:     logger.With().Str("component", "poller").Logger(),
	}
}

// Wait polls taskID until it reaches a terminal status and returns the final
// snapshot. onUpdate may be nil. Not-found, validation, authorization, and
// application errors stop polling immediately; transport errors are retried.
func (p *Poller) Wait(ctx context.Context, taskID string, onUpdate UpdateFunc) (task.Task, error) {
	pollCtx, cancel := context.WithTimeout(ctx, p.cfg.MaxElapsed)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.InitialInterval
	b.MaxInterval = p.cfg.MaxInterval

	var last task.Task
	op := func() (task.Task, error) {
		snap, err := p.fetcher.FetchStatus(pollCtx, taskID)
		if err != nil {
			if api.IsRetryable(err) {
				return task.Task{}, err
			}
			return task.Task{}, backoff.Permanent(err)
		}

		current, accepted := p.tracker.Observe(snap)
		if !accepted {
			p.log.Debug().
				Str("task_id", taskID).
				Str("status", string(snap.Status)).
				Int("progress", snap.Progress).
				Msg("ignoring stale snapshot")
		} else {
			if current.Progress > last.Progress || current.Status != last.Status {
				b.Reset()
			}
			last = current
			if onUpdate != nil {
				onUpdate(current)
			}
		}

		if current.Status.IsTerminal() {
			return current, nil
		}
		return task.Task{}, errStillRunning
	}

	// the deadline lives on pollCtx; Retry's own elapsed limit stays off
	final, err := backoff.Retry(pollCtx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			if errors.Is(err, errStillRunning) {
				return
			}
			p.log.Warn().Err(err).Str("task_id", taskID).Dur("retry_in", next).Msg("status lookup failed")
		}),
	)
	switch {
	case err == nil:
		return final, nil
	case ctx.Err() != nil:
		return last, context.Cause(ctx)
	case pollCtx.Err() != nil, errors.Is(err, errStillRunning):
		return last, fmt.Errorf("task %s: %w", taskID, ErrPollTimeout)
	default:
		return last, err
	}
}
