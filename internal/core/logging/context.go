package logging

import "context"

type contextKey string

const (
	taskIDKey    contextKey = "task_id"
	requestIDKey contextKey = "request_id"
	resumeIDKey  contextKey = "resume_id"
)

// WithTaskID tags the context with an upload task identifier.
func WithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, taskIDKey, taskID)
}

// WithRequestID tags the context with a per-command request identifier.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithResumeID tags the context with a resume identifier.
func WithResumeID(ctx context.Context, resumeID int64) context.Context {
	return context.WithValue(ctx, resumeIDKey, resumeID)
}

// TaskID returns the task ID from ctx, or "" if absent.
func TaskID(ctx context.Context) string {
	id, _ := ctx.Value(taskIDKey).(string)
	return id
}

// RequestID returns the request ID from ctx, or "" if absent.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ResumeID returns the resume ID from ctx and whether one was set.
func ResumeID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(resumeIDKey).(int64)
	return id, ok
}
