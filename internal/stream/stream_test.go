package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/resumepilot/internal/api"
	"github.com/colonyops/resumepilot/internal/core/task"
	"github.com/colonyops/resumepilot/internal/resume"
)

var optimizeReq = resume.OptimizeRequest{ResumeID: "r-1", JobDescription: "Go engineer"}

// recorder is a Sink that remembers everything it receives.
type recorder struct {
	mu     sync.Mutex
	events []task.StreamEvent
	errs   []error

	onEvent func(task.StreamEvent)
	onError func(error)
}

func (r *recorder) record(ev task.StreamEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	if r.onEvent != nil {
		r.onEvent(ev)
	}
}

func (r *recorder) OnProgress(ev task.StreamEvent) { r.record(ev) }
func (r *recorder) OnChunk(ev task.StreamEvent)    { r.record(ev) }
func (r *recorder) OnResult(ev task.StreamEvent)   { r.record(ev) }

func (r *recorder) OnError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	if r.onError != nil {
		r.onError(err)
	}
}

func (r *recorder) Events() []task.StreamEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]task.StreamEvent(nil), r.events...)
}

func (r *recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func (r *recorder) Terminals() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.errs)
	for _, ev := range r.events {
		if ev.Kind == task.EventResult {
			n++
		}
	}
	return n
}

func writeFrames(t *testing.T, w http.ResponseWriter, frames ...string) {
	t.Helper()
	for _, f := range frames {
		_, _ = io.WriteString(w, f)
		w.(http.Flusher).Flush()
	}
}

func newConsumer(t *testing.T, cfg Config, h http.HandlerFunc) *Consumer {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, streamPath, r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewConsumer(api.New(api.Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}), cfg, zerolog.Nop())
}

func waitDone(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case <-sub.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not finish")
	}
}

func TestConsumer_DeliversInOrder(t *testing.T) {
	consumer := newConsumer(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		writeFrames(t, w,
			": keep-alive\n\n",
			"event: progress\ndata: 10\n\n",
			"data: 优势亮点 1. A\n\n",
			"event: message\ndata: line one\ndata: line two\n\n",
			"event: progress\ndata: {\"progress\":90}\n\n",
			// the stream ignores anything after the terminal frame
			"event: result\ndata: done\n\nevent: chunk\ndata: late\n\n",
		)
	})

	rec := &recorder{}
	sub, err := consumer.Open(context.Background(), optimizeReq, rec)
	require.NoError(t, err)
	waitDone(t, sub)

	events := rec.Events()
	require.Len(t, events, 5)

	kinds := make([]task.EventKind, 0, len(events))
	for i, ev := range events {
		assert.Equal(t, int64(i+1), ev.Seq)
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []task.EventKind{
		task.EventProgress, task.EventChunk, task.EventChunk, task.EventProgress, task.EventResult,
	}, kinds)

	assert.Equal(t, "优势亮点 1. A", events[1].Payload)
	assert.Equal(t, "line one\nline two", events[2].Payload)
	p, ok := events[3].Percent()
	assert.True(t, ok)
	assert.Equal(t, 90, p)
	assert.Equal(t, "done", events[4].Payload)

	assert.Empty(t, rec.Errors())
	assert.Equal(t, 1, rec.Terminals())
	assert.Equal(t, StateClosed, sub.State())
	assert.NoError(t, sub.Err())
}

func TestConsumer_ErrorFrameIsTerminal(t *testing.T) {
	consumer := newConsumer(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		writeFrames(t, w,
			"data: partial\n\n",
			"event: error\ndata: {\"code\":5002,\"message\":\"model overloaded\"}\n\n",
			"event: result\ndata: never\n\n",
		)
	})

	rec := &recorder{}
	sub, err := consumer.Open(context.Background(), optimizeReq, rec)
	require.NoError(t, err)
	waitDone(t, sub)

	require.Len(t, rec.Errors(), 1)
	var ap *api.ApplicationError
	require.True(t, errors.As(rec.Errors()[0], &ap))
	assert.Equal(t, 5002, ap.Code)
	assert.Equal(t, "model overloaded", ap.Message)

	assert.Len(t, rec.Events(), 1)
	assert.Equal(t, 1, rec.Terminals())
	assert.Equal(t, StateClosed, sub.State())
}

func TestConsumer_DisconnectBeforeTerminalFails(t *testing.T) {
	consumer := newConsumer(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		writeFrames(t, w, "event: progress\ndata: 40\n\n")
	})

	rec := &recorder{}
	sub, err := consumer.Open(context.Background(), optimizeReq, rec)
	require.NoError(t, err)
	waitDone(t, sub)

	require.Len(t, rec.Errors(), 1)
	var te *api.TransportError
	require.True(t, errors.As(rec.Errors()[0], &te))
	assert.ErrorIs(t, te, io.ErrUnexpectedEOF)
	assert.True(t, api.IsRetryable(sub.Err()))
	assert.Equal(t, StateFailed, sub.State())
}

func TestConsumer_RejectedBeforeOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"code":401,"message":"token expired"}`)
	}))
	t.Cleanup(srv.Close)

	var authFailures atomic.Int32
	client := api.New(api.Config{BaseURL: srv.URL}, api.WithAuthFailureHandler(func(context.Context) {
		authFailures.Add(1)
	}))
	consumer := NewConsumer(client, Config{}, zerolog.Nop())

	rec := &recorder{}
	sub, err := consumer.Open(context.Background(), optimizeReq, rec)
	require.NoError(t, err)
	waitDone(t, sub)

	require.Len(t, rec.Errors(), 1)
	assert.True(t, api.IsUnauthorized(rec.Errors()[0]))
	assert.Equal(t, int32(1), authFailures.Load())
	assert.Equal(t, StateFailed, sub.State())
	assert.Empty(t, rec.Events())
}

func TestConsumer_ReopenAfterFailure(t *testing.T) {
	var attempt atomic.Int32
	consumer := newConsumer(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		if attempt.Add(1) == 1 {
			writeFrames(t, w, "event: progress\ndata: 50\n\n")
			return
		}
		writeFrames(t, w, "event: progress\ndata: 50\n\n", "event: result\ndata: final text\n\n")
	})

	first := &recorder{}
	sub, err := consumer.Open(context.Background(), optimizeReq, first)
	require.NoError(t, err)
	waitDone(t, sub)
	require.Equal(t, StateFailed, sub.State())

	second := &recorder{}
	sub, err = consumer.Open(context.Background(), optimizeReq, second)
	require.NoError(t, err)
	waitDone(t, sub)

	assert.Equal(t, StateClosed, sub.State())
	events := second.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, task.EventResult, events[len(events)-1].Kind)
	assert.Equal(t, "final text", events[len(events)-1].Payload)
	assert.Equal(t, int64(1), events[0].Seq)
}

func TestSubscription_CancelInsideCallback(t *testing.T) {
	release := make(chan struct{})
	consumer := newConsumer(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		<-release
		writeFrames(t, w,
			"data: one\n\n",
			"data: two\n\n",
			"event: result\ndata: done\n\n",
		)
	})

	var current atomic.Pointer[Subscription]
	rec := &recorder{}
	rec.onEvent = func(task.StreamEvent) {
		current.Load().Cancel()
		current.Load().Cancel()
	}

	sub, err := consumer.Open(context.Background(), optimizeReq, rec)
	require.NoError(t, err)
	current.Store(sub)
	close(release)
	waitDone(t, sub)

	assert.Len(t, rec.Events(), 1)
	assert.Empty(t, rec.Errors())
	assert.Equal(t, StateClosed, sub.State())
}

func TestSubscription_CancelFromOutside(t *testing.T) {
	consumer := newConsumer(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		writeFrames(t, w, "data: first\n\n")
		<-r.Context().Done()
	})

	got := make(chan struct{}, 1)
	rec := &recorder{onEvent: func(task.StreamEvent) { got <- struct{}{} }}

	sub, err := consumer.Open(context.Background(), optimizeReq, rec)
	require.NoError(t, err)
	<-got

	sub.Cancel()
	sub.Cancel()
	waitDone(t, sub)

	assert.Len(t, rec.Events(), 1)
	assert.Empty(t, rec.Errors())
	assert.Equal(t, StateClosed, sub.State())
	assert.NoError(t, sub.Err())
}

func TestSubscription_CancelWhileCallbackRuns(t *testing.T) {
	consumer := newConsumer(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		writeFrames(t, w,
			"data: first\n\n",
			"data: second\n\n",
			"event: result\ndata: done\n\n",
		)
		<-r.Context().Done()
	})

	entered := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	rec := &recorder{onEvent: func(task.StreamEvent) {
		close(entered)
		<-release
		finished.Store(true)
	}}

	sub, err := consumer.Open(context.Background(), optimizeReq, rec)
	require.NoError(t, err)
	<-entered

	cancelled := make(chan struct{})
	go func() {
		sub.Cancel()
		close(cancelled)
	}()

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("Cancel blocked on a running callback")
	}
	assert.Equal(t, StateClosed, sub.State())

	select {
	case <-sub.Done():
		t.Fatal("Done closed while a callback was still running")
	default:
	}

	close(release)
	waitDone(t, sub)

	assert.True(t, finished.Load())
	assert.Len(t, rec.Events(), 1)
	assert.Empty(t, rec.Errors())
}

func TestSubscription_StateOpensOnFirstByte(t *testing.T) {
	proceed := make(chan struct{})
	consumer := newConsumer(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-proceed
		writeFrames(t, w, "event: result\ndata: ok\n\n")
	})

	states := make(chan State, 1)
	var current atomic.Pointer[Subscription]
	rec := &recorder{onEvent: func(task.StreamEvent) { states <- current.Load().State() }}

	sub, err := consumer.Open(context.Background(), optimizeReq, rec)
	require.NoError(t, err)
	current.Store(sub)

	assert.Never(t, func() bool { return sub.State() == StateOpen }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, StateConnecting, sub.State())

	close(proceed)
	waitDone(t, sub)
	assert.Equal(t, StateOpen, <-states)
	assert.Equal(t, StateClosed, sub.State())
}

func TestSubscription_Backgrounded(t *testing.T) {
	tests := []struct {
		name      string
		keepAlive bool
		wantState State
		wantErr   error
	}{
		{name: "policy off suspends", keepAlive: false, wantState: StateFailed, wantErr: ErrSuspended},
		{name: "policy on keeps streaming", keepAlive: true, wantState: StateClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			finish := make(chan struct{})
			consumer := newConsumer(t, Config{KeepAliveWhenBackgrounded: tt.keepAlive}, func(w http.ResponseWriter, r *http.Request) {
				writeFrames(t, w, "data: first\n\n")
				select {
				case <-finish:
					writeFrames(t, w, "event: result\ndata: done\n\n")
				case <-r.Context().Done():
				}
			})

			got := make(chan struct{}, 1)
			rec := &recorder{onEvent: func(ev task.StreamEvent) {
				if ev.Kind == task.EventChunk {
					got <- struct{}{}
				}
			}}

			sub, err := consumer.Open(context.Background(), optimizeReq, rec)
			require.NoError(t, err)
			<-got

			sub.SetBackgrounded(true)
			close(finish)
			waitDone(t, sub)

			assert.Equal(t, tt.wantState, sub.State())
			assert.Equal(t, 1, rec.Terminals())
			if tt.wantErr != nil {
				require.Len(t, rec.Errors(), 1)
				assert.ErrorIs(t, rec.Errors()[0], tt.wantErr)
				assert.ErrorIs(t, sub.Err(), tt.wantErr)
			} else {
				assert.Empty(t, rec.Errors())
			}
		})
	}
}

func TestConsumer_OpenValidatesRequest(t *testing.T) {
	consumer := NewConsumer(api.New(api.Config{BaseURL: "http://127.0.0.1:0"}), Config{}, zerolog.Nop())

	_, err := consumer.Open(context.Background(), resume.OptimizeRequest{ResumeID: "r-1"}, Funcs{})
	var ve *api.ValidationError
	require.True(t, errors.As(err, &ve))

	_, err = consumer.Open(context.Background(), optimizeReq, nil)
	require.Error(t, err)
}

func TestFuncs_IgnoresNilHandlers(t *testing.T) {
	var chunks []string
	f := Funcs{Chunk: func(ev task.StreamEvent) { chunks = append(chunks, ev.Payload) }}

	f.OnProgress(task.StreamEvent{Kind: task.EventProgress})
	f.OnChunk(task.StreamEvent{Kind: task.EventChunk, Payload: "x"})
	f.OnResult(task.StreamEvent{Kind: task.EventResult})
	f.OnError(fmt.Errorf("boom"))

	assert.Equal(t, []string{"x"}, chunks)
}
