package api

import (
	"context"
	"net/http"
	"time"

	"codeberg.org/mutker/ecodanctl/internal/ecodan"
	"codeberg.org/mutker/ecodanctl/internal/errors"
	"codeberg.org/mutker/ecodanctl/internal/logger"
	"codeberg.org/mutker/ecodanctl/internal/poller"
	"codeberg.org/mutker/ecodanctl/internal/telemetry"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

const (
	DefaultUsername = "admin"
	shutdownTimeout = 5 * time.Second
	readTimeout     = 10 * time.Second
)

type Config struct {
	Listen   string
	Username string
	// Password protects the setpoint endpoints. When empty they refuse
	// every request.
	Password string
}

func (c Config) Validate() error {
	if c.Listen == "" {
		return errors.New().New(ErrInvalidAddr)
	}
	return nil
}

// ReportSource provides the latest poll report.
type ReportSource interface {
	Latest() (*poller.Report, error)
}

// Server is the HTTP control surface.
type Server struct {
	cfg      Config
	device   ecodan.TargetWriter
	reports  ReportSource
	recorder telemetry.Recorder
	metrics  http.Handler
	logger   logger.Logger
	handler  http.Handler
}

type Option func(*Server)

func WithRecorder(r telemetry.Recorder) Option {
	return func(s *Server) { s.recorder = r }
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

func WithLogger(log logger.Logger) Option {
	return func(s *Server) { s.logger = log }
}

func New(cfg Config, device ecodan.TargetWriter, reports ReportSource, opts ...Option) *Server {
	if cfg.Username == "" {
		cfg.Username = DefaultUsername
	}

	s := &Server{
		cfg:      cfg,
		device:   device,
		reports:  reports,
		recorder: telemetry.Nop{},
		logger:   logger.With("api"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	r.HandleFunc("/status", s.status).Methods(http.MethodGet)
	r.HandleFunc("/api/status", s.status).Methods(http.MethodGet)
	r.Handle("/api/tank/target_temp", s.basicAuth(s.setTarget(ecodan.TankTarget))).Methods(http.MethodPut)
	r.Handle("/api/house/target_temp", s.basicAuth(s.setTarget(ecodan.HouseTarget))).Methods(http.MethodPut)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found.")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
	})

	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.logger}),
		handlers.PrintRecoveryStack(false),
	)

	return s.logRequests(recovery(r))
}

// Handler returns the fully wired HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errFactory := errors.New()
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.handler,
		ReadHeaderTimeout: readTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Listen).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return errFactory.Wrap(ErrServeFailed, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errFactory.Wrap(ErrShutdown, err)
	}
	s.logger.Info().Msg("HTTP server stopped")

	return nil
}
