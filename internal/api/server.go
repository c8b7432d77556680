package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/linepush/internal/audit"
	"github.com/nerrad567/linepush/internal/infrastructure/config"
	"github.com/nerrad567/linepush/internal/infrastructure/database"
	"github.com/nerrad567/linepush/internal/infrastructure/logging"
	"github.com/nerrad567/linepush/internal/infrastructure/mqtt"
	"github.com/nerrad567/linepush/internal/pipeline"
	"github.com/nerrad567/linepush/internal/scheduler"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
// Logger and Pipeline are required; the rest are optional.
type Deps struct {
	Config    config.APIConfig
	Logger    *logging.Logger
	Pipeline  *pipeline.Pipeline
	Scheduler *scheduler.Scheduler
	Events    audit.Repository
	DB        *database.DB
	MQTT      *mqtt.Client
	Gatherer  prometheus.Gatherer
	// Registerer receives the API's own request metrics; usually the same
	// registry as Gatherer.
	Registerer prometheus.Registerer
	Version    string
}

// Server is the HTTP status API server.
//
// It manages the HTTP listener, routes and middleware.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	logger      *logging.Logger
	pipeline    *pipeline.Pipeline
	scheduler   *scheduler.Scheduler
	events      audit.Repository
	db          *database.DB
	mqtt        *mqtt.Client
	gatherer    prometheus.Gatherer
	httpMetrics *httpMetrics
	version     string
	startTime   time.Time
	server      *http.Server
	addr        net.Addr
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, pipeline) plus optional ones
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}

	s := &Server{
		cfg:       deps.Config,
		logger:    deps.Logger.With("component", "api"),
		pipeline:  deps.Pipeline,
		scheduler: deps.Scheduler,
		events:    deps.Events,
		db:        deps.DB,
		mqtt:      deps.MQTT,
		gatherer:  deps.Gatherer,
		version:   deps.Version,
		startTime: time.Now(),
	}
	if deps.Registerer != nil {
		s.httpMetrics = newHTTPMetrics(deps.Registerer)
	}
	return s, nil
}

// Start begins listening for HTTP connections.
//
// The listener is bound before Start returns, so a port already in use is
// reported here; requests are served on a background goroutine until Close.
//
// Parameters:
//   - ctx: Context for cancellation of the bind (not the listener lifetime)
//
// Returns:
//   - error: If the server fails to bind
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("binding API listener: %w", err)
	}
	s.addr = ln.Addr()

	s.logger.Info("API server starting", "address", s.addr.String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
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
