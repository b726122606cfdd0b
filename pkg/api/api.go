package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ethpandaops/reportoor/pkg/config"
	"github.com/ethpandaops/reportoor/pkg/report"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the API HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log      logrus.FieldLogger
	cfg      *config.Config
	report   *report.Report
	upgrader websocket.Upgrader

	handoffInterval time.Duration
	handoffTimeout  time.Duration

	httpServer *http.Server
	wg         sync.WaitGroup
	done       chan struct{}
}

// NewServer creates the API server of an opened report.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.Config,
	rep *report.Report,
) (Server, error) {
	return newServer(log, cfg, rep)
}

func newServer(
	log logrus.FieldLogger,
	cfg *config.Config,
	rep *report.Report,
) (*server, error) {
	interval, timeout, err := cfg.HandoffTimings()
	if err != nil {
		return nil, err
	}

	s := &server{
		log:             log.WithField("component", "api"),
		cfg:             cfg,
		report:          rep,
		handoffInterval: interval,
		handoffTimeout:  timeout,
		done:            make(chan struct{}),
	}

	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}

	return s, nil
}

// Start binds the listener and serves the API in the background.
func (s *server) Start(_ context.Context) error {
	router := s.buildRouter()

	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Bind the listener synchronously so we fail fast on port conflicts.
	ln, err := net.Listen("tcp", s.cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Server.Listen, err)
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.WithField("listen", ln.Addr().String()).
			Info("API server starting")

		if err := s.httpServer.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *server) Stop() error {
	close(s.done)

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("HTTP server shutdown error")
		}
	}

	s.wg.Wait()

	s.log.Info("API server stopped")

	return nil
}
