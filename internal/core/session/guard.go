package session

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
)

// ViewLogin is the view users are sent to when their session expires.
const ViewLogin = "login"

// Navigator moves the user between views.
type Navigator interface {
	CurrentView() string
	Navigate(ctx context.Context, view string) error
}

// Guard decorates outgoing requests with the session credential and reacts
// to authorization failures.
type Guard struct {
	session *Session
	nav     Navigator
	log     zerolog.Logger
}

// NewGuard creates a guard for session s.
func NewGuard(s *Session, nav Navigator, logger zerolog.Logger) *Guard {
	return &Guard{session: s, nav: nav, log: logger}
}

// AttachCredential sets the bearer header when a credential is present.
func (g *Guard) AttachCredential(r *http.Request) {
	if token, ok := g.session.Credential(); ok {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

// HandleAuthFailure clears the credential and sends the user to the login
// view. Concurrent failures produce a single navigation.
func (g *Guard) HandleAuthFailure(ctx context.Context) {
	g.session.Clear(ctx)

	if g.nav == nil {
		return
	}

	atLogin := func() bool { return g.nav.CurrentView() == ViewLogin }
	if !g.session.beginRedirect(atLogin) {
		return
	}
	defer g.session.endRedirect()

	g.log.Info().Msg("authorization failed, redirecting to login")
	if err := g.nav.Navigate(ctx, ViewLogin); err != nil {
		g.log.Warn().Err(err).Msg("login redirect failed")
	}
}
