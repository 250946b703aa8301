// Package profiler serves the runtime pprof endpoints on the loopback
// interface while a command runs.
package profiler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/rs/zerolog"
)

// startGrace is how long Start waits for an immediate serve failure.
const startGrace = 100 * time.Millisecond

type Server struct {
	httpServer *http.Server
	listener   net.Listener
	port       int
	log        zerolog.Logger
}

// New creates a server for port. Port 0 picks a free port.
func New(port int, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return &Server{
		httpServer: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		port: port,
		log:  logger.With().Str("component", "profiler").Logger(),
	}
}

// Start listens on 127.0.0.1 and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("127.0.0.1:%d", s.port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = listener

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("profiler server failed to start: %w", err)
	case <-time.After(startGrace):
	}

	s.log.Info().Str("url", s.URL()).Msg("profiler endpoint available")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// URL returns the pprof index URL.
func (s *Server) URL() string {
	return "http://" + s.Addr() + "/debug/pprof/"
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Debug().Msg("shutting down profiler server")
	return s.httpServer.Shutdown(ctx)
}
