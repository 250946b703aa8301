// Package auth implements the account endpoints and keeps the Session in
// step with them.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/colonyops/resumepilot/internal/api"
	"github.com/colonyops/resumepilot/internal/core/session"
)

// Doer is the subset of *api.Client used by the auth service.
type Doer interface {
	Do(ctx context.Context, req api.Request) (json.RawMessage, error)
	DoJSON(ctx context.Context, req api.Request, out any) error
}

// LoginRequest carries password credentials.
type LoginRequest struct {
	Username  string `json:"username" validate:"required"`
	Password  string `json:"password" validate:"required"`
	LoginType string `json:"loginType,omitempty"`
}

// RegisterRequest creates an account.
type RegisterRequest struct {
	Username        string `json:"username" validate:"required"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword,omitempty" validate:"omitempty,eqfield=Password"`
	Email           string `json:"email,omitempty" validate:"omitempty,email"`
	Phone           string `json:"phone,omitempty"`
	Nickname        string `json:"nickname,omitempty"`
}

// ForgotPasswordRequest asks the backend to mail a reset link.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest sets a new password using a mailed reset token.
type ResetPasswordRequest struct {
	Token           string `json:"token" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword,omitempty" validate:"omitempty,eqfield=NewPassword"`
}

// Service performs account operations against the backend.
type Service struct {
	api     Doer
	session *session.Session
	log     zerolog.Logger
	now     func() time.Time
}

// NewService creates an auth service bound to s.
func NewService(doer Doer, s *session.Session, logger zerolog.Logger) *Service {
	return &Service{
		api:     doer,
		session: s,
		log:     logger.With().Str("component", "auth").Logger(),
		now:     time.Now,
	}
}

// Login exchanges credentials for a bearer token, stores it, and refreshes
// the cached profile.
func (s *Service) Login(ctx context.Context, req LoginRequest) error {
	if req.LoginType == "" {
		req.LoginType = "password"
	}
	if err := api.Validate(req); err != nil {
		return err
	}

	payload, err := s.api.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   req,
	})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	token, err := session.ExtractToken(payload)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := s.session.SetCredential(ctx, token); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	s.log.Info().Str("username", req.Username).Msg("logged in")
	s.FetchUserInfo(ctx)
	return nil
}

// Register creates an account. When the backend answers with a token the
// user is logged in immediately and the result is true.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (bool, error) {
	if err := api.Validate(req); err != nil {
		return false, err
	}

	payload, err := s.api.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/auth/register",
		Body:   req,
	})
	if err != nil {
		return false, fmt.Errorf("register: %w", err)
	}

	token, err := session.ExtractToken(payload)
	if errors.Is(err, session.ErrTokenNotFound) {
		s.log.Info().Str("username", req.Username).Msg("registered, login required")
		return false, nil
	}
	if err := s.session.SetCredential(ctx, token); err != nil {
		return false, fmt.Errorf("register: %w", err)
	}

	s.log.Info().Str("username", req.Username).Msg("registered and logged in")
	s.FetchUserInfo(ctx)
	return true, nil
}

// Logout tells the backend the session is over and clears local state. The
// remote call is best-effort: its failure is logged and the local session is
// cleared regardless.
func (s *Service) Logout(ctx context.Context) {
	defer s.session.Clear(ctx)

	if !s.session.IsAuthenticated() {
		return
	}

	_, err := s.api.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/auth/logout",
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("remote logout failed")
	}
}

// FetchUserInfo loads /auth/me into the session cache. Failures are logged
// and leave the previous profile in place; the bool reports success.
func (s *Service) FetchUserInfo(ctx context.Context) (session.User, bool) {
	var user session.User
	err := s.api.DoJSON(ctx, api.Request{
		Method: http.MethodGet,
		Path:   "/auth/me",
	}, &user)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to fetch user info")
		return s.session.User()
	}

	s.session.SetUser(&user)
	return user, true
}

// Validate checks that the stored credential is still usable. An expired
// JWT or a negative answer from the backend clears the session; transport
// failures are returned without touching it.
func (s *Service) Validate(ctx context.Context) (bool, error) {
	if !s.session.IsAuthenticated() {
		return false, nil
	}

	if exp, ok := s.session.ExpiresAt(); ok && !exp.After(s.now()) {
		s.log.Info().Time("expired_at", exp).Msg("credential expired")
		s.session.Clear(ctx)
		return false, nil
	}

	payload, err := s.api.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/auth/validate",
	})
	if err != nil {
		if api.IsUnauthorized(err) {
			return false, nil
		}
		return false, fmt.Errorf("validate session: %w", err)
	}

	valid := true
	if res := gjson.ParseBytes(payload); res.Type == gjson.False {
		valid = false
	} else if v := res.Get("valid"); res.IsObject() && v.Exists() {
		valid = v.Bool()
	}

	if !valid {
		s.session.Clear(ctx)
	}
	return valid, nil
}

// ForgotPassword requests a password reset email.
func (s *Service) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error {
	if err := api.Validate(req); err != nil {
		return err
	}
	if _, err := s.api.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/auth/forgot-password",
		Body:   req,
	}); err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}
	return nil
}

// ResetPassword sets a new password using a reset token.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if err := api.Validate(req); err != nil {
		return err
	}
	if _, err := s.api.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/auth/reset-password",
		Body:   req,
	}); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}
