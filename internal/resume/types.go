package resume

import (
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/colonyops/resumepilot/internal/core/task"
)

// Document is a résumé file to submit for analysis. The content is opaque.
type Document struct {
	FileName string    `json:"fileName" validate:"required"`
	Content  io.Reader `json:"-" validate:"required"`
	UserID   int64     `json:"userId,omitempty"`
}

// UploadResponse is the backend's acknowledgement of a submitted document.
type UploadResponse struct {
	Success          *bool  `json:"success"`
	TaskID           string `json:"taskId"`
	FileName         string `json:"fileName"`
	OriginalFileName string `json:"originalFileName"`
	ErrorMessage     string `json:"errorMessage"`
	Message          string `json:"message"`
	Timestamp        int64  `json:"timestamp"`
}

// TaskStatusResponse is the wire form of a task snapshot.
type TaskStatusResponse struct {
	TaskID                    string      `json:"taskId"`
	Status                    task.Status `json:"status"`
	StatusMessage             string      `json:"statusMessage"`
	Progress                  int         `json:"progress"`
	StartTime                 string      `json:"startTime"`
	CompleteTime              string      `json:"completeTime"`
	ResumeID                  string      `json:"resumeId"`
	ErrorMessage              string      `json:"errorMessage"`
	FileName                  string      `json:"fileName"`
	OriginalFileName          string      `json:"originalFileName"`
	EstimatedRemainingSeconds int64       `json:"estimatedRemainingSeconds"`
	Seq                       int64       `json:"seq"`
}

// Task converts the response into a normalized snapshot.
func (r TaskStatusResponse) Task() task.Task {
	return task.Normalize(task.Task{
		TaskID:             r.TaskID,
		Status:             r.Status,
		Progress:           r.Progress,
		ResultRef:          r.ResumeID,
		ErrorDetail:        r.ErrorMessage,
		StatusMessage:      r.StatusMessage,
		FileName:           r.FileName,
		OriginalFileName:   r.OriginalFileName,
		StartTime:          parseTime(r.StartTime),
		CompleteTime:       parseTime(r.CompleteTime),
		EstimatedRemaining: time.Duration(r.EstimatedRemainingSeconds) * time.Second,
		Seq:                r.Seq,
	})
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// parseTime accepts zoned and zone-less timestamps. Unparseable values are
// treated as unknown.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// OptimizeRequest asks the backend to tailor a résumé to a job description.
type OptimizeRequest struct {
	UserID         int64  `json:"userId,omitempty"`
	ResumeID       string `json:"resumeId" validate:"required"`
	JobDescription string `json:"jobDescription" validate:"required"`
}

// OptimizationRecord is one entry of a résumé's optimization history.
type OptimizationRecord struct {
	Feedback string  `json:"feedback"`
	Score    float64 `json:"score"`
}

// OptimizeResult carries the free-form suggestion text and the id of the
// optimized résumé.
type OptimizeResult struct {
	SuggestionText    string               `json:"suggestionText"`
	OptimizedResumeID int64                `json:"optimizedResumeId"`
	History           []OptimizationRecord `json:"optimizationHistory"`
}

// DownloadRequest selects an optimized résumé and output format.
type DownloadRequest struct {
	UserID            int64  `json:"userId,omitempty"`
	OptimizedResumeID int64  `json:"optimizedResumeId" validate:"required"`
	FileType          string `json:"downloadFileType" validate:"required"`
}

// EmbeddingResponse acknowledges an embedding request.
type EmbeddingResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Summary is one entry of the résumé list. Fields the client does not model
// are kept in Raw.
type Summary struct {
	ResumeID         string          `json:"resumeId"`
	FileName         string          `json:"fileName,omitempty"`
	OriginalFileName string          `json:"originalFileName,omitempty"`
	Status           string          `json:"status,omitempty"`
	CreatedAt        string          `json:"createTime,omitempty"`
	Raw              json.RawMessage `json:"raw,omitempty"`
}
