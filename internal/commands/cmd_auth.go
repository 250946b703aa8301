package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/resumepilot/internal/api"
	"github.com/colonyops/resumepilot/internal/app"
	"github.com/colonyops/resumepilot/internal/auth"
	"github.com/colonyops/resumepilot/internal/core/validate"
	"github.com/colonyops/resumepilot/internal/printer"
	"github.com/colonyops/resumepilot/pkg/iojson"
)

type AuthCmd struct {
	flags *Flags
	app   *app.App

	// flags
	username      string
	password      string
	passwordStdin bool
	email         string
	nickname      string
	phone         string
	validate      bool
	jsonOutput    bool
	token         string
}

// NewAuthCmd creates the account commands.
func NewAuthCmd(flags *Flags, a *app.App) *AuthCmd {
	return &AuthCmd{flags: flags, app: a}
}

// Register adds login, register, logout, whoami and password to the application.
func (cmd *AuthCmd) Register(app *cli.Command) *cli.Command {
	passwordStdin := &cli.BoolFlag{
		Name:        "password-stdin",
		Usage:       "read the password from the first line of stdin",
		Destination: &cmd.passwordStdin,
	}
	username := &cli.StringFlag{
		Name:        "username",
		Aliases:     []string{"u"},
		Usage:       "account name (prompted when omitted)",
		Destination: &cmd.username,
	}

	app.Commands = append(app.Commands,
		&cli.Command{
			Name:      "login",
			Usage:     "Sign in and store the credential",
			UsageText: "resumepilot login [-u name] [--password-stdin]",
			Flags:     []cli.Flag{username, passwordStdin},
			Action:    withView(cmd.app, cmd.runLogin),
		},
		&cli.Command{
			Name:      "register",
			Usage:     "Create an account",
			UsageText: "resumepilot register [-u name] [--email addr] [--password-stdin]",
			Description: `Creates an account. When the backend returns a credential the new
account is signed in immediately; otherwise run 'resumepilot login'.`,
			Flags: []cli.Flag{
				username,
				passwordStdin,
				&cli.StringFlag{Name: "email", Usage: "email address", Destination: &cmd.email},
				&cli.StringFlag{Name: "nickname", Usage: "display name", Destination: &cmd.nickname},
				&cli.StringFlag{Name: "phone", Usage: "phone number", Destination: &cmd.phone},
			},
			Action: withView(cmd.app, cmd.runRegister),
		},
		&cli.Command{
			Name:   "logout",
			Usage:  "Sign out and forget the stored credential",
			Action: withView(cmd.app, cmd.runLogout),
		},
		&cli.Command{
			Name:  "whoami",
			Usage: "Show the signed-in account",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:        "validate",
					Usage:       "ask the backend whether the credential is still valid",
					Destination: &cmd.validate,
				},
				&cli.BoolFlag{Name: "json", Usage: "output as JSON", Destination: &cmd.jsonOutput},
			},
			Action: withView(cmd.app, cmd.runWhoami),
		},
		&cli.Command{
			Name:  "password",
			Usage: "Password recovery commands",
			Commands: []*cli.Command{
				{
					Name:      "forgot",
					Usage:     "Mail a password reset link",
					UsageText: "resumepilot password forgot --email addr",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "email", Usage: "account email", Destination: &cmd.email},
					},
					Action: withView(cmd.app, cmd.runForgot),
				},
				{
					Name:      "reset",
					Usage:     "Set a new password with a reset token",
					UsageText: "resumepilot password reset --token tok [--password-stdin]",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "token", Usage: "reset token from the email", Destination: &cmd.token},
						passwordStdin,
					},
					Action: withView(cmd.app, cmd.runReset),
				},
			},
		},
	)

	return app
}

func (cmd *AuthCmd) readPassword(title string) error {
	if cmd.passwordStdin {
		pw, err := readSecretLine(os.Stdin)
		if err != nil {
			return err
		}
		cmd.password = pw
		return nil
	}
	return promptInput(title, &cmd.password, true, validate.Required)
}

func (cmd *AuthCmd) runLogin(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	if err := promptInput("Username", &cmd.username, false, validate.Required); err != nil {
		return abortOK(err)
	}
	if err := cmd.readPassword("Password"); err != nil {
		return abortOK(err)
	}

	err := cmd.app.Auth.Login(ctx, auth.LoginRequest{
		Username: cmd.username,
		Password: cmd.password,
	})
	if err != nil {
		return err
	}

	name := cmd.username
	if u, ok := cmd.app.Session.User(); ok {
		name = u.DisplayName()
	}
	p.Successf("Logged in as %s", name)
	return nil
}

func (cmd *AuthCmd) runRegister(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	if err := promptInput("Username", &cmd.username, false, validate.Required); err != nil {
		return abortOK(err)
	}
	if err := cmd.readPassword("Password"); err != nil {
		return abortOK(err)
	}

	confirm := cmd.password
	if !cmd.passwordStdin {
		confirm = ""
		if err := promptInput("Confirm password", &confirm, true, validate.Required); err != nil {
			return abortOK(err)
		}
	}

	err := criterio.ValidateStruct(
		validate.RequiredField("username", cmd.username),
		validate.RequiredField("password", cmd.password),
		validate.EmailField("email", cmd.email),
	)
	if err != nil {
		return err
	}

	signedIn, err := cmd.app.Auth.Register(ctx, auth.RegisterRequest{
		Username:        cmd.username,
		Password:        cmd.password,
		ConfirmPassword: confirm,
		Email:           cmd.email,
		Phone:           cmd.phone,
		Nickname:        cmd.nickname,
	})
	if err != nil {
		return err
	}

	if signedIn {
		p.Successf("Account %s created and signed in", cmd.username)
		return nil
	}
	p.Successf("Account %s created", cmd.username)
	p.Printf("Run 'resumepilot login' to sign in.")
	return nil
}

func (cmd *AuthCmd) runLogout(ctx context.Context, c *cli.Command) error {
	if !cmd.app.Session.IsAuthenticated() {
		printer.Ctx(ctx).Infof("Not logged in")
		return nil
	}
	cmd.app.Auth.Logout(ctx)
	printer.Ctx(ctx).Successf("Logged out")
	return nil
}

type whoamiOutput struct {
	Authenticated bool   `json:"authenticated"`
	Valid         *bool  `json:"valid,omitempty"`
	ID            string `json:"id,omitempty"`
	Username      string `json:"username,omitempty"`
	Nickname      string `json:"nickname,omitempty"`
	Email         string `json:"email,omitempty"`
	ExpiresAt     string `json:"expiresAt,omitempty"`
}

func (cmd *AuthCmd) runWhoami(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)
	out := whoamiOutput{Authenticated: cmd.app.Session.IsAuthenticated()}

	if out.Authenticated && cmd.validate {
		valid, err := cmd.app.Auth.Validate(ctx)
		if err != nil {
			return err
		}
		out.Valid = &valid
		out.Authenticated = cmd.app.Session.IsAuthenticated()
	}

	if out.Authenticated {
		if u, ok := cmd.app.Auth.FetchUserInfo(ctx); ok {
			out.ID = string(u.ID)
			out.Username = u.Username
			out.Nickname = u.Nickname
			out.Email = u.Email
		}
		if exp, ok := cmd.app.Session.ExpiresAt(); ok {
			out.ExpiresAt = exp.Format("2006-01-02 15:04:05 MST")
		}
	}

	if cmd.jsonOutput {
		return iojson.WriteWith(c.Root().Writer, os.Stderr, out)
	}

	if !out.Authenticated {
		if out.Valid != nil {
			p.Errorf("Stored credential is no longer valid")
		}
		p.Infof("Not logged in")
		return nil
	}

	p.Field("User", firstNonEmpty(out.Nickname, out.Username, "(unknown)"))
	if out.Email != "" {
		p.Field("Email", out.Email)
	}
	if out.ExpiresAt != "" {
		p.Field("Expires", out.ExpiresAt)
	}
	if out.Valid != nil {
		p.Field("Valid", *out.Valid)
	}
	return nil
}

func (cmd *AuthCmd) runForgot(ctx context.Context, c *cli.Command) error {
	if err := promptInput("Email", &cmd.email, false, validate.Email); err != nil {
		return abortOK(err)
	}
	err := criterio.ValidateStruct(
		validate.RequiredField("email", cmd.email),
		validate.EmailField("email", cmd.email),
	)
	if err != nil {
		return err
	}
	if err := cmd.app.Auth.ForgotPassword(ctx, auth.ForgotPasswordRequest{Email: cmd.email}); err != nil {
		return err
	}
	printer.Ctx(ctx).Successf("If %s has an account, a reset link is on its way", cmd.email)
	return nil
}

func (cmd *AuthCmd) runReset(ctx context.Context, c *cli.Command) error {
	if err := promptInput("Reset token", &cmd.token, false, validate.Required); err != nil {
		return abortOK(err)
	}
	if err := cmd.readPassword("New password"); err != nil {
		return abortOK(err)
	}

	err := cmd.app.Auth.ResetPassword(ctx, auth.ResetPasswordRequest{
		Token:       cmd.token,
		NewPassword: cmd.password,
	})
	if err != nil {
		var ve *api.ValidationError
		if errors.As(err, &ve) {
			return fmt.Errorf("reset rejected: %s", api.Message(err))
		}
		return err
	}
	printer.Ctx(ctx).Successf("Password updated. Run 'resumepilot login' to sign in.")
	return nil
}

// abortOK turns a cancelled prompt into a clean exit.
func abortOK(err error) error {
	if errors.Is(err, errAborted) {
		return nil
	}
	return err
}
