package app

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/colonyops/resumepilot/internal/core/session"
)

// Navigator is the command-line stand-in for view navigation. The current
// view is the running command; navigating to the login view prints a notice.
type Navigator struct {
	mu   sync.Mutex
	view string
	w    io.Writer
}

var _ session.Navigator = (*Navigator)(nil)

// NewNavigator creates a navigator writing notices to w.
func NewNavigator(w io.Writer) *Navigator {
	return &Navigator{w: w}
}

// SetView records the running command.
func (n *Navigator) SetView(view string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.view = view
}

// CurrentView returns the running command.
func (n *Navigator) CurrentView() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.view
}

// Navigate switches to view. Only the login view has a visible effect.
func (n *Navigator) Navigate(_ context.Context, view string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.view = view
	if view != session.ViewLogin || n.w == nil {
		return nil
	}

	_, err := fmt.Fprintln(n.w, "Your session has expired or is invalid. Run 'resumepilot login' to sign in again.")
	return err
}
