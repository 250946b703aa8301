// Package stream consumes the server-push optimization channel and delivers
// its events to a Sink.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/openai/openai-go/packages/ssestream"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/colonyops/resumepilot/internal/api"
	"github.com/colonyops/resumepilot/internal/core/task"
	"github.com/colonyops/resumepilot/internal/resume"
)

const streamPath = "/resumes/optimize/stream"

// ErrSuspended is delivered when the stream is dropped because the process
// was backgrounded and the keep-alive policy is off.
var ErrSuspended = errors.New("stream suspended while backgrounded")

// State is the lifecycle of one stream session.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// IsFinal reports whether the session has ended.
func (s State) IsFinal() bool {
	return s == StateClosed || s == StateFailed
}

// Streamer opens the raw event stream response.
type Streamer interface {
	OpenStream(ctx context.Context, req api.Request) (*http.Response, error)
}

// Config holds the stream policy.
type Config struct {
	// KeepAliveWhenBackgrounded keeps the connection open while the process
	// is backgrounded. When false, backgrounding suspends the session.
	KeepAliveWhenBackgrounded bool
}

// Consumer opens optimization streams.
type Consumer struct {
	api Streamer
	cfg Config
	log zerolog.Logger
}

// NewConsumer creates a stream consumer.
func NewConsumer(s Streamer, cfg Config, logger zerolog.Logger) *Consumer {
	return &Consumer{
		api: s,
		cfg: cfg,
		log: logger.With().Str("component", "stream").Logger(),
	}
}

// Open starts a stream session for req and returns immediately. Events are
// delivered to sink from one goroutine in arrival order; exactly one of
// OnResult or OnError ends a session unless it is cancelled first. There is
// no automatic reconnect: after a failure the caller may Open again.
func (c *Consumer) Open(ctx context.Context, req resume.OptimizeRequest, sink Sink) (*Subscription, error) {
	if sink == nil {
		return nil, &api.ValidationError{Message: "sink is required"}
	}
	if err := api.Validate(req); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		cancel:    cancel,
		done:      make(chan struct{}),
		keepAlive: c.cfg.KeepAliveWhenBackgrounded,
	}
	sub.state.Store(int32(StateConnecting))

	go c.run(ctx, sub, req, sink)
	return sub, nil
}

func (c *Consumer) run(ctx context.Context, sub *Subscription, req resume.OptimizeRequest, sink Sink) {
	defer close(sub.done)
	defer sub.cancel()

	log := c.log.With().Str("resume_id", req.ResumeID).Logger()
	log.Debug().Msg("opening stream")

	resp, err := c.api.OpenStream(ctx, api.Request{
		Method: http.MethodPost,
		Path:   streamPath,
		Body:   req,
	})
	if err != nil {
		c.end(ctx, sub, sink, log, err)
		return
	}

	resp.Body = &firstByteBody{
		ReadCloser: resp.Body,
		onFirst:    func() { sub.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen)) },
	}
	dec := ssestream.NewDecoder(resp)
	defer func() {
		if err := dec.Close(); err != nil {
			log.Debug().Err(err).Msg("close stream body")
		}
	}()

	var seq int64
	for dec.Next() {
		if sub.suspended.Load() {
			break
		}

		frame := dec.Event()
		payload := strings.TrimSuffix(string(frame.Data), "\n")
		if frame.Type == "" && payload == "" {
			continue
		}

		seq++
		ev := task.StreamEvent{Seq: seq, Kind: task.KindFromTag(frame.Type), Payload: payload}

		switch ev.Kind {
		case task.EventProgress:
			sub.dispatch(func() { sink.OnProgress(ev) })
		case task.EventChunk:
			sub.dispatch(func() { sink.OnChunk(ev) })
		case task.EventResult:
			sub.dispatch(func() { sink.OnResult(ev) })
			sub.settle(StateClosed, nil)
			log.Debug().Int64("events", seq).Msg("stream completed")
			return
		case task.EventError:
			ferr := frameError(payload)
			sub.dispatch(func() { sink.OnError(ferr) })
			sub.settle(StateClosed, ferr)
			log.Debug().Int64("events", seq).Str("error", ferr.Message).Msg("stream reported error")
			return
		}

		if sub.cancelled.Load() {
			return
		}
	}

	err = dec.Err()
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	c.end(ctx, sub, sink, log, &api.TransportError{Op: http.MethodPost + " " + streamPath, Err: err})
}

// end settles a session that stopped without a terminal frame.
func (c *Consumer) end(ctx context.Context, sub *Subscription, sink Sink, log zerolog.Logger, err error) {
	switch {
	case sub.suspended.Load():
		log.Info().Msg("stream suspended")
		sub.dispatch(func() { sink.OnError(ErrSuspended) })
		sub.settle(StateFailed, ErrSuspended)
	case sub.cancelled.Load():
		// Cancel already settled the session; no callbacks after it.
	case ctx.Err() != nil:
		log.Debug().Err(ctx.Err()).Msg("stream context done")
		sub.settle(StateClosed, ctx.Err())
	default:
		log.Warn().Err(err).Msg("stream failed")
		sub.dispatch(func() { sink.OnError(err) })
		sub.settle(StateFailed, err)
	}
}

// frameError converts an error frame payload, which may be plain text or a
// JSON object with code/message, into an ApplicationError.
func frameError(payload string) *api.ApplicationError {
	e := &api.ApplicationError{Code: http.StatusInternalServerError, Message: payload}

	if res := gjson.Parse(payload); gjson.Valid(payload) && res.IsObject() {
		if code := res.Get("code"); code.Exists() {
			e.Code = int(code.Int())
		}
		for _, path := range []string{"message", "msg", "error"} {
			if v := res.Get(path); v.Exists() && v.String() != "" {
				e.Message = v.String()
				break
			}
		}
	}
	if e.Message == "" {
		e.Message = "stream reported an error"
	}
	return e
}

// Subscription is the handle of one stream session.
type Subscription struct {
	cancel    context.CancelFunc
	done      chan struct{}
	keepAlive bool

	state     atomic.Int32
	cancelled atomic.Bool
	suspended atomic.Bool

	errMu sync.Mutex
	err   error
}

// Cancel ends the session. It is idempotent, never blocks, and may be called
// from inside a sink callback. No callback is dispatched after Cancel
// returns; one already running on the dispatch goroutine may still finish.
// Done is closed once no callback can run.
func (s *Subscription) Cancel() {
	if !s.cancelled.CompareAndSwap(false, true) {
		return
	}
	s.settle(StateClosed, nil)
	s.cancel()
}

// SetBackgrounded reports a foreground/background change. With the
// keep-alive policy off, backgrounding drops the connection and the session
// fails with ErrSuspended. Returning to the foreground does not reconnect.
func (s *Subscription) SetBackgrounded(background bool) {
	if !background || s.keepAlive || s.State().IsFinal() {
		return
	}
	if s.suspended.CompareAndSwap(false, true) {
		s.cancel()
	}
}

// Done is closed once the session's goroutine has exited, after its last
// callback returned.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// State returns the current lifecycle state.
func (s *Subscription) State() State { return State(s.state.Load()) }

// Err returns the error that ended the session, if any.
func (s *Subscription) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// dispatch runs fn unless the session was cancelled. Only the session
// goroutine calls it.
func (s *Subscription) dispatch(fn func()) {
	if s.cancelled.Load() {
		return
	}
	fn()
}

// settle moves the session to a final state once.
func (s *Subscription) settle(st State, err error) {
	for {
		cur := s.state.Load()
		if State(cur).IsFinal() {
			return
		}
		if s.state.CompareAndSwap(cur, int32(st)) {
			break
		}
	}

	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
}

// firstByteBody reports the first successful read of the response body.
type firstByteBody struct {
	io.ReadCloser
	once    sync.Once
	onFirst func()
}

func (b *firstByteBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if n > 0 {
		b.once.Do(b.onFirst)
	}
	return n, err
}
