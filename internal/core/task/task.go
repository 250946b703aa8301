// Package task defines the analysis task lifecycle and the stream event
// types shared by the polling and streaming transports.
package task

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of an analysis task.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// ParseStatus decodes a wire status, ignoring case and surrounding space.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return st, nil
	default:
		return "", fmt.Errorf("unknown task status %q", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	st, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// IsTerminal reports whether no further progress follows this status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition enforces the task state machine. Repeating a status is
// always allowed; terminal states are absorbing.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusPending:
		return to == StatusProcessing || to.IsTerminal()
	case StatusProcessing:
		return to.IsTerminal()
	default:
		return false
	}
}

// Task is one snapshot of an analysis job.
type Task struct {
	TaskID      string `json:"taskId"`
	Status      Status `json:"status"`
	Progress    int    `json:"progress"`
	ResultRef   string `json:"resultRef,omitempty"`
	ErrorDetail string `json:"errorDetail,omitempty"`

	StatusMessage      string        `json:"statusMessage,omitempty"`
	FileName           string        `json:"fileName,omitempty"`
	OriginalFileName   string        `json:"originalFileName,omitempty"`
	StartTime          time.Time     `json:"startTime,omitzero"`
	CompleteTime       time.Time     `json:"completeTime,omitzero"`
	EstimatedRemaining time.Duration `json:"estimatedRemaining,omitempty"`

	// Seq orders snapshots when the backend provides one. Zero means unknown.
	Seq int64 `json:"seq,omitempty"`
}

// Normalize enforces the snapshot invariants: progress within 0..100,
// ResultRef only when completed, ErrorDetail only when failed.
func Normalize(t Task) Task {
	t.Progress = min(max(t.Progress, 0), 100)

	switch t.Status {
	case StatusCompleted:
		t.ErrorDetail = ""
		t.Progress = 100
	case StatusFailed:
		t.ResultRef = ""
	default:
		t.ResultRef = ""
		t.ErrorDetail = ""
	}
	return t
}
