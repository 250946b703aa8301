package task

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// EventKind tags one push notification.
type EventKind string

const (
	EventProgress EventKind = "progress"
	EventChunk    EventKind = "chunk"
	EventResult   EventKind = "result"
	EventError    EventKind = "error"
)

// KindFromTag maps a wire event name to a kind. Unnamed and unknown events
// carry incremental content.
func KindFromTag(tag string) EventKind {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "progress":
		return EventProgress
	case "result":
		return EventResult
	case "error":
		return EventError
	default:
		return EventChunk
	}
}

// IsTerminal reports whether no events follow this kind.
func (k EventKind) IsTerminal() bool {
	return k == EventResult || k == EventError
}

// StreamEvent is one decoded frame of a push stream.
type StreamEvent struct {
	Seq     int64     `json:"seq"`
	Kind    EventKind `json:"kind"`
	Payload string    `json:"payload"`
}

// Percent extracts a progress percentage from a progress payload, which is
// either a bare integer or a JSON object with a "progress" field.
func (e StreamEvent) Percent() (int, bool) {
	raw := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(e.Payload), "%"))
	if n, err := strconv.Atoi(raw); err == nil {
		return n, true
	}
	if gjson.Valid(raw) {
		if v := gjson.Get(raw, "progress"); v.Exists() {
			return int(v.Int()), true
		}
	}
	return 0, false
}
