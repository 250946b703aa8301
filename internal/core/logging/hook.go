package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// ContextHook copies task_id, request_id and resume_id from the event context
// into the log event.
type ContextHook struct{}

// Run adds contextual fields to the zerolog event.
func (h ContextHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == context.Background() || ctx == nil {
		return
	}

	if id := RequestID(ctx); id != "" {
		e.Str("request_id", id)
	}

	if id := TaskID(ctx); id != "" {
		e.Str("task_id", id)
	}

	if id, ok := ResumeID(ctx); ok {
		e.Int64("resume_id", id)
	}
}
