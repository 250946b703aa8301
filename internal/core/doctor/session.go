package doctor

import (
	"context"
	"fmt"
	"time"
)

// expiringSoon is the window in which a credential expiry is flagged.
const expiringSoon = 24 * time.Hour

// Credentials exposes the stored login state.
type Credentials interface {
	IsAuthenticated() bool
	ExpiresAt() (time.Time, bool)
}

// SessionCheck reports whether a usable credential is stored.
type SessionCheck struct {
	creds Credentials
	now   func() time.Time
}

// NewSessionCheck creates a session check.
func NewSessionCheck(creds Credentials) *SessionCheck {
	return &SessionCheck{creds: creds, now: time.Now}
}

func (c *SessionCheck) Name() string {
	return "Session"
}

func (c *SessionCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	if !c.creds.IsAuthenticated() {
		result.Items = append(result.Items, CheckItem{
			Label:  "credential",
			Status: StatusWarn,
			Detail: "not logged in",
		})
		return result
	}

	result.Items = append(result.Items, CheckItem{
		Label:  "credential",
		Status: StatusPass,
		Detail: "stored",
	})

	exp, ok := c.creds.ExpiresAt()
	if !ok {
		result.Items = append(result.Items, CheckItem{
			Label:  "expiry",
			Status: StatusPass,
			Detail: "not advertised by token",
		})
		return result
	}

	remaining := exp.Sub(c.now())
	item := CheckItem{Label: "expiry", Status: StatusPass, Detail: fmt.Sprintf("in %s", remaining.Round(time.Minute))}
	if remaining < expiringSoon {
		item.Status = StatusWarn
		item.Detail = fmt.Sprintf("expires in %s; log in again soon", remaining.Round(time.Minute))
	}
	result.Items = append(result.Items, item)

	return result
}
