package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/voltbridge/voltbridge/internal/audit"
	"github.com/voltbridge/voltbridge/internal/auth"
	"github.com/voltbridge/voltbridge/internal/bridge"
	"github.com/voltbridge/voltbridge/internal/history"
	"github.com/voltbridge/voltbridge/internal/infrastructure/config"
	"github.com/voltbridge/voltbridge/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  *config.Config
	Logger  *logging.Logger
	Manager *bridge.Manager

	// History may be nil when the sample store is disabled; the history and
	// report endpoints then answer 503.
	History *history.Store

	// Audit may be nil; mutations then leave no trail and /api/audit
	// answers 503.
	Audit audit.Repository

	Version string
}

// Server is the HTTP facade over the bridge.
type Server struct {
	cfg      *config.Config
	logger   *logging.Logger
	manager  *bridge.Manager
	history  *history.Store
	audit    audit.Repository
	sessions *auth.Sessions
	version  string

	server *http.Server
	cancel context.CancelFunc
}

// New creates the API server. It is not listening until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Manager == nil {
		return nil, fmt.Errorf("bridge manager is required")
	}

	return &Server{
		cfg:      deps.Config,
		logger:   deps.Logger.With("component", "api"),
		manager:  deps.Manager,
		history:  deps.History,
		audit:    deps.Audit,
		sessions: auth.NewSessions(deps.Config.Security.JWT.Secret, deps.Config.SessionTTL()),
		version:  deps.Version,
	}, nil
}

// Start launches the HTTP listener in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	_, s.cancel = context.WithCancel(ctx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.HTTP.Host, s.cfg.HTTP.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts the server down, waiting up to ten seconds for
// in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
