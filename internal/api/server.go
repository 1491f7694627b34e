// Package api provides the HTTP REST API and WebSocket server for Gray Logic Radio.
//
// It exposes transmitter state, control operations, broadcast program
// management, and audit/history queries to operator consoles.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-radio/internal/audit"
	"github.com/nerrad567/gray-logic-radio/internal/auth"
	"github.com/nerrad567/gray-logic-radio/internal/history"
	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/tsdb"
	"github.com/nerrad567/gray-logic-radio/internal/program"
	"github.com/nerrad567/gray-logic-radio/internal/transmitter"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger

	Supervisor *transmitter.Supervisor
	Operators  auth.OperatorRepository

	Programs      *program.Registry
	ProgramEngine *program.Engine
	ProgramRepo   program.Repository

	Audit     *audit.Recorder  // optional: control-plane audit trail
	AuditRepo audit.Repository // optional: persisted audit queries
	History   history.Repository
	TSDB      *tsdb.Client // optional: metrics history passthrough
	MQTT      *mqtt.Client // optional: reported in /metrics only
	DB        *database.DB

	ExternalHub *Hub // If set, the server uses this hub instead of creating its own
	Version     string
}

// Server is the HTTP API server for Gray Logic Radio.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg    config.APIConfig
	wsCfg  config.WebSocketConfig
	secCfg config.SecurityConfig
	logger *logging.Logger

	supervisor *transmitter.Supervisor
	operators  auth.OperatorRepository

	programs      *program.Registry
	programEngine *program.Engine
	programRepo   program.Repository

	audit     *audit.Recorder
	auditRepo audit.Repository
	history   history.Repository
	tsdb      *tsdb.Client
	mqtt      *mqtt.Client
	db        *database.DB

	version   string
	startTime time.Time

	server      *http.Server
	hub         *Hub
	externalHub bool // true if hub was injected externally
	tickets     *ticketStore
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Supervisor == nil {
		return nil, fmt.Errorf("transmitter supervisor is required")
	}
	if deps.Operators == nil {
		return nil, fmt.Errorf("operator repository is required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	s := &Server{
		cfg:           deps.Config,
		wsCfg:         deps.WS,
		secCfg:        deps.Security,
		logger:        deps.Logger,
		supervisor:    deps.Supervisor,
		operators:     deps.Operators,
		programs:      deps.Programs,
		programEngine: deps.ProgramEngine,
		programRepo:   deps.ProgramRepo,
		audit:         deps.Audit,
		auditRepo:     deps.AuditRepo,
		history:       deps.History,
		tsdb:          deps.TSDB,
		mqtt:          deps.MQTT,
		db:            deps.DB,
		version:       deps.Version,
		startTime:     time.Now(),
		tickets:       newTicketStore(),
	}

	// Use externally-provided hub if available (needed when the daemon
	// also pumps bus events into the hub for WebSocket broadcasting).
	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, and launches the
// HTTP listener in a background goroutine. The server can be stopped
// with Close().
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	// Create WebSocket hub (unless one was injected externally)
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	// Start periodic ticket cleanup to prevent memory leaks
	go s.tickets.cleanLoop(srvCtx)

	// Build router
	router := s.buildRouter()

	// Create HTTP server
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	// Start listening in background
	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub, ticket cleanup)
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

// HealthCheck verifies the API server is running and responsive.
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
