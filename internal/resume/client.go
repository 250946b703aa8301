// Package resume implements the résumé task endpoints: submission, status
// lookup, optimization, and the artifact endpoints around them.
package resume

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/colonyops/resumepilot/internal/api"
	"github.com/colonyops/resumepilot/internal/core/task"
)

// DefaultOptimizeTimeout bounds a blocking optimization call.
const DefaultOptimizeTimeout = 5 * time.Minute

// ErrNoCurrentTask is returned when a command needs a task id and none was
// given or remembered.
var ErrNoCurrentTask = errors.New("no current task; pass a task id or upload a résumé first")

// Doer is the subset of *api.Client used by the résumé client.
type Doer interface {
	Do(ctx context.Context, req api.Request) (json.RawMessage, error)
	DoJSON(ctx context.Context, req api.Request, out any) error
	Download(ctx context.Context, req api.Request) (api.Blob, error)
}

// Client calls the résumé endpoints.
type Client struct {
	api             Doer
	optimizeTimeout time.Duration
	log             zerolog.Logger
}

// NewClient creates a résumé client. A non-positive optimizeTimeout uses
// DefaultOptimizeTimeout.
func NewClient(doer Doer, optimizeTimeout time.Duration, logger zerolog.Logger) *Client {
	if optimizeTimeout <= 0 {
		optimizeTimeout = DefaultOptimizeTimeout
	}
	return &Client{
		api:             doer,
		optimizeTimeout: optimizeTimeout,
		log:             logger.With().Str("component", "resume").Logger(),
	}
}

// Submit uploads a document and returns the pending task created for it.
func (c *Client) Submit(ctx context.Context, doc Document) (task.Task, error) {
	if err := api.Validate(doc); err != nil {
		return task.Task{}, err
	}

	form := &api.Multipart{
		Field:    "file",
		FileName: doc.FileName,
		Content:  doc.Content,
	}
	if doc.UserID != 0 {
		form.Fields = map[string]string{"userId": fmt.Sprint(doc.UserID)}
	}

	var resp UploadResponse
	err := c.api.DoJSON(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/resumes/upload",
		Form:   form,
	}, &resp)
	if err != nil {
		return task.Task{}, fmt.Errorf("submit %s: %w", doc.FileName, err)
	}

	if resp.Success != nil && !*resp.Success {
		return task.Task{}, &api.ValidationError{Message: firstNonEmpty(resp.ErrorMessage, resp.Message, "upload rejected")}
	}
	if resp.TaskID == "" {
		return task.Task{}, &api.ApplicationError{Code: api.SuccessCode, Message: "upload response carried no task id"}
	}

	c.log.Info().Str("task_id", resp.TaskID).Str("file", doc.FileName).Msg("résumé submitted")

	return task.Task{
		TaskID:           resp.TaskID,
		Status:           task.StatusPending,
		FileName:         resp.FileName,
		OriginalFileName: firstNonEmpty(resp.OriginalFileName, doc.FileName),
	}, nil
}

// FetchStatus returns the current snapshot of a task. It performs exactly
// one request; repetition is the caller's concern (see Poller).
func (c *Client) FetchStatus(ctx context.Context, taskID string) (task.Task, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return task.Task{}, &api.ValidationError{Message: "task id is required"}
	}

	var resp TaskStatusResponse
	err := c.api.DoJSON(ctx, api.Request{
		Method: http.MethodGet,
		Path:   "/resumes/task/" + url.PathEscape(taskID) + "/status",
	}, &resp)
	if err != nil {
		var nf *api.NotFoundError
		if errors.As(err, &nf) && nf.Resource == "" {
			nf.Resource = "task " + taskID
		}
		return task.Task{}, fmt.Errorf("fetch status: %w", err)
	}

	if resp.TaskID == "" {
		resp.TaskID = taskID
	}
	return resp.Task(), nil
}

// RequestOptimization runs a blocking optimization. It uses the extended
// optimization timeout instead of the client default.
func (c *Client) RequestOptimization(ctx context.Context, req OptimizeRequest) (OptimizeResult, error) {
	if err := api.Validate(req); err != nil {
		return OptimizeResult{}, err
	}

	var result OptimizeResult
	err := c.api.DoJSON(ctx, api.Request{
		Method:  http.MethodPost,
		Path:    "/resumes/optimize",
		Body:    req,
		Timeout: c.optimizeTimeout,
	}, &result)
	if err != nil {
		return OptimizeResult{}, fmt.Errorf("optimize %s: %w", req.ResumeID, err)
	}
	return result, nil
}

// StoreEmbedding asks the backend to index a résumé for retrieval. The
// backend may answer with a bare boolean or an acknowledgement object.
func (c *Client) StoreEmbedding(ctx context.Context, resumeID string) error {
	resumeID = strings.TrimSpace(resumeID)
	if resumeID == "" {
		return &api.ValidationError{Message: "resume id is required"}
	}

	payload, err := c.api.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/resumes/" + url.PathEscape(resumeID) + "/embedding",
	})
	if err != nil {
		return fmt.Errorf("store embedding: %w", err)
	}

	ack := EmbeddingResponse{Success: true}
	res := gjson.ParseBytes(payload)
	switch {
	case res.Type == gjson.True || res.Type == gjson.False:
		ack.Success = res.Bool()
	case res.IsObject():
		if v := res.Get("success"); v.Exists() {
			ack.Success = v.Bool()
		}
		ack.Message = res.Get("message").String()
	}

	if !ack.Success {
		return &api.ApplicationError{Code: api.SuccessCode, Message: firstNonEmpty(ack.Message, "embedding was not stored")}
	}
	return nil
}

// GenerateOptimizedFile downloads an optimized résumé in the requested format.
func (c *Client) GenerateOptimizedFile(ctx context.Context, req DownloadRequest) (api.Blob, error) {
	req.FileType = strings.ToLower(strings.TrimSpace(req.FileType))
	if err := api.Validate(req); err != nil {
		return api.Blob{}, err
	}

	blob, err := c.api.Download(ctx, api.Request{
		Method:  http.MethodPost,
		Path:    "/resumes/generateOptimizedFile",
		Body:    req,
		Timeout: c.optimizeTimeout,
	})
	if err != nil {
		return api.Blob{}, fmt.Errorf("generate optimized file: %w", err)
	}
	if blob.FileName == "" {
		blob.FileName = fmt.Sprintf("resume-%d.%s", req.OptimizedResumeID, req.FileType)
	}
	return blob, nil
}

var listPaths = []string{"list", "records", "items", "rows"}

// List returns the user's résumés. Both a bare array and a paged object are
// accepted.
func (c *Client) List(ctx context.Context) ([]Summary, error) {
	payload, err := c.api.Do(ctx, api.Request{
		Method: http.MethodGet,
		Path:   "/resumes/list",
	})
	if err != nil {
		return nil, fmt.Errorf("list resumes: %w", err)
	}

	arr := gjson.ParseBytes(payload)
	if !arr.IsArray() {
		for _, path := range listPaths {
			if v := arr.Get(path); v.IsArray() {
				arr = v
				break
			}
		}
	}
	if !arr.IsArray() {
		return nil, &api.ApplicationError{Code: api.SuccessCode, Message: "list response is not an array"}
	}

	items := arr.Array()
	out := make([]Summary, 0, len(items))
	for _, item := range items {
		out = append(out, Summary{
			ResumeID:         firstNonEmpty(item.Get("resumeId").String(), item.Get("id").String()),
			FileName:         item.Get("fileName").String(),
			OriginalFileName: item.Get("originalFileName").String(),
			Status:           item.Get("status").String(),
			CreatedAt:        firstNonEmpty(item.Get("createTime").String(), item.Get("createdAt").String()),
			Raw:              json.RawMessage(item.Raw),
		})
	}
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
