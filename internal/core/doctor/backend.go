package doctor

import (
	"context"
	"encoding/json"

	"github.com/colonyops/resumepilot/internal/api"
)

// Requester sends a backend request.
type Requester interface {
	Do(ctx context.Context, req api.Request) (json.RawMessage, error)
}

// BackendCheck verifies the backend answers HTTP requests. Any HTTP response,
// including an error status, counts as reachable.
type BackendCheck struct {
	api     Requester
	baseURL string
}

// NewBackendCheck creates a backend check. The requester must not be wired to
// the session guard, since an unauthenticated probe would log the user out.
func NewBackendCheck(r Requester, baseURL string) *BackendCheck {
	return &BackendCheck{api: r, baseURL: baseURL}
}

func (c *BackendCheck) Name() string {
	return "Backend"
}

func (c *BackendCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	_, err := c.api.Do(ctx, api.Request{Method: "GET", Path: "/auth/me"})
	switch {
	case err == nil, api.IsUnauthorized(err):
		result.Items = append(result.Items, CheckItem{
			Label:  "reachable",
			Status: StatusPass,
			Detail: c.baseURL,
		})
	case api.IsRetryable(err):
		result.Items = append(result.Items, CheckItem{
			Label:  "reachable",
			Status: StatusFail,
			Detail: err.Error(),
		})
	default:
		result.Items = append(result.Items, CheckItem{
			Label:  "reachable",
			Status: StatusWarn,
			Detail: api.Message(err),
		})
	}

	return result
}
