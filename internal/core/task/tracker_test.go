package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTracker_Observe(t *testing.T) {
	tests := []struct {
		name     string
		first    Task
		next     Task
		accepted bool
	}{
		{
			name:     "progress advances",
			first:    Task{TaskID: "t", Status: StatusProcessing, Progress: 20},
			next:     Task{TaskID: "t", Status: StatusProcessing, Progress: 40},
			accepted: true,
		},
		{
			name:     "progress regression is stale",
			first:    Task{TaskID: "t", Status: StatusProcessing, Progress: 40},
			next:     Task{TaskID: "t", Status: StatusProcessing, Progress: 20},
			accepted: false,
		},
		{
			name:     "terminal cannot move back",
			first:    Task{TaskID: "t", Status: StatusCompleted, ResultRef: "r"},
			next:     Task{TaskID: "t", Status: StatusProcessing, Progress: 99},
			accepted: false,
		},
		{
			name:     "older sequence is stale",
			first:    Task{TaskID: "t", Status: StatusProcessing, Progress: 10, Seq: 5},
			next:     Task{TaskID: "t", Status: StatusProcessing, Progress: 50, Seq: 4},
			accepted: false,
		},
		{
			name:     "newer sequence wins",
			first:    Task{TaskID: "t", Status: StatusPending, Seq: 1},
			next:     Task{TaskID: "t", Status: StatusFailed, ErrorDetail: "bad pdf", Seq: 2},
			accepted: true,
		},
		{
			name:     "identical snapshot is accepted",
			first:    Task{TaskID: "t", Status: StatusProcessing, Progress: 30},
			next:     Task{TaskID: "t", Status: StatusProcessing, Progress: 30},
			accepted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(time.Minute)
			_, ok := tr.Observe(tt.first)
			assert.True(t, ok)

			got, ok := tr.Observe(tt.next)
			assert.Equal(t, tt.accepted, ok)
			if tt.accepted {
				assert.Equal(t, Normalize(tt.next), got)
			} else {
				assert.Equal(t, Normalize(tt.first), got)
			}
		})
	}
}

func TestTracker_FailureKeepsProgress(t *testing.T) {
	tr := NewTracker(time.Minute)
	tr.Observe(Task{TaskID: "t", Status: StatusProcessing, Progress: 60})

	got, ok := tr.Observe(Task{TaskID: "t", Status: StatusFailed, ErrorDetail: "bad pdf"})
	assert.True(t, ok)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, 60, got.Progress)
}

func TestTracker_Forget(t *testing.T) {
	tr := NewTracker(time.Minute)
	tr.Observe(Task{TaskID: "t", Status: StatusCompleted, ResultRef: "r"})

	tr.Forget("t")
	_, ok := tr.Latest("t")
	assert.False(t, ok)

	_, ok = tr.Observe(Task{TaskID: "t", Status: StatusPending})
	assert.True(t, ok)
}
