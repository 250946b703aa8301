// Package app wires the resumepilot services from explicit dependencies.
package app

import (
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/colonyops/resumepilot/internal/api"
	"github.com/colonyops/resumepilot/internal/auth"
	"github.com/colonyops/resumepilot/internal/core/config"
	"github.com/colonyops/resumepilot/internal/core/doctor"
	"github.com/colonyops/resumepilot/internal/core/session"
	"github.com/colonyops/resumepilot/internal/core/suggest"
	"github.com/colonyops/resumepilot/internal/core/task"
	"github.com/colonyops/resumepilot/internal/data/db"
	"github.com/colonyops/resumepilot/internal/data/stores"
	"github.com/colonyops/resumepilot/internal/resume"
	"github.com/colonyops/resumepilot/internal/stream"
)

// trackerTTL bounds how long a finished task's snapshot is remembered.
const trackerTTL = time.Hour

// App holds every service a command may need.
type App struct {
	Config *config.Config
	DB     *db.DB

	KV          *stores.KVStore
	Credentials *stores.CredentialStore
	Workspace   *stores.WorkspaceStore

	Session   *session.Session
	Guard     *session.Guard
	Navigator *Navigator

	// API carries the session credential and reacts to 401s. Probe does
	// neither and is only used for reachability checks.
	API   *api.Client
	Probe *api.Client

	Auth    *auth.Service
	Resumes *resume.Client
	Tracker *task.Tracker
	Poller  *resume.Poller
	Stream  *stream.Consumer
	Parser  *suggest.MarkerParser
}

// New constructs an App. Notices for the user (such as the login prompt
// after a rejected credential) are written to notices.
func New(cfg *config.Config, database *db.DB, notices io.Writer) *App {
	logger := log.Logger

	kvStore := stores.NewKVStore(database)
	creds := stores.NewCredentialStore(kvStore)
	sess := session.New(creds, component(logger, "session"))
	nav := NewNavigator(notices)
	guard := session.NewGuard(sess, nav, component(logger, "guard"))

	apiCfg := api.Config{BaseURL: cfg.API.BaseURL, Timeout: cfg.API.Timeout}
	client := api.New(apiCfg,
		api.WithDecorator(guard.AttachCredential),
		api.WithAuthFailureHandler(guard.HandleAuthFailure),
		api.WithLogger(component(logger, "api")),
	)
	probe := api.New(apiCfg, api.WithLogger(component(logger, "probe")))

	resumes := resume.NewClient(client, cfg.API.OptimizeTimeout, component(logger, "resume"))
	tracker := task.NewTracker(trackerTTL)

	return &App{
		Config:      cfg,
		DB:          database,
		KV:          kvStore,
		Credentials: creds,
		Workspace:   stores.NewWorkspaceStore(kvStore),
		Session:     sess,
		Guard:       guard,
		Navigator:   nav,
		API:         client,
		Probe:       probe,
		Auth:        auth.NewService(client, sess, component(logger, "auth")),
		Resumes:     resumes,
		Tracker:     tracker,
		Poller: resume.NewPoller(resumes, tracker, resume.PollConfig{
			InitialInterval: cfg.Poll.InitialInterval,
			MaxInterval:     cfg.Poll.MaxInterval,
			MaxElapsed:      cfg.Poll.MaxElapsed,
		}, component(logger, "poller")),
		Stream: stream.NewConsumer(client, stream.Config{
			KeepAliveWhenBackgrounded: cfg.Stream.KeepAliveWhenBackgrounded,
		}, logger),
		Parser: suggest.NewMarkerParser(cfg.Suggestions.Markers),
	}
}

// DoctorChecks returns the health checks for this App.
func (a *App) DoctorChecks(configPath string) []doctor.Check {
	return []doctor.Check{
		doctor.NewConfigCheck(a.Config, configPath),
		doctor.NewStoreCheck(a.DB, a.KV),
		doctor.NewSessionCheck(a.Session),
		doctor.NewBackendCheck(a.Probe, a.Config.API.BaseURL),
	}
}

func component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}
