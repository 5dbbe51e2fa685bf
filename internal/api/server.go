package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/roomwatch-core/internal/audit"
	"github.com/nerrad567/roomwatch-core/internal/auth"
	"github.com/nerrad567/roomwatch-core/internal/command"
	"github.com/nerrad567/roomwatch-core/internal/device"
	"github.com/nerrad567/roomwatch-core/internal/fanout"
	"github.com/nerrad567/roomwatch-core/internal/infrastructure/config"
	"github.com/nerrad567/roomwatch-core/internal/infrastructure/logging"
	"github.com/nerrad567/roomwatch-core/internal/ingest"
	"github.com/nerrad567/roomwatch-core/internal/location"
	"github.com/nerrad567/roomwatch-core/internal/presence"
	"github.com/nerrad567/roomwatch-core/internal/telemetry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Ingester accepts device telemetry. *ingest.Gateway satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, sub ingest.Submission) (*telemetry.Record, error)
}

// Dispatcher sends operator commands. *command.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd command.Command) (*command.Receipt, error)
}

// TelemetryReader serves recent telemetry. *telemetry.Store satisfies it.
type TelemetryReader interface {
	Recent(ctx context.Context, deviceID string, limit int) ([]telemetry.Record, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Security  config.SecurityConfig
	Logger    *logging.Logger
	Registry  *device.Registry
	Gateway   Ingester
	Telemetry TelemetryReader
	Poller    *fanout.Poller
	Rooms     location.Repository
	Presence  *presence.Tracker
	Users     auth.UserRepository
	Commands  Dispatcher      // optional: command routes answer bus_unavailable without it
	Audit     audit.Repository // optional
	Version   string
}

// Server is the HTTP API server for RoomWatch Core.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	registry  *device.Registry
	gateway   Ingester
	telemetry TelemetryReader
	poller    *fanout.Poller
	rooms     location.Repository
	presence  *presence.Tracker
	users     auth.UserRepository
	commands  Dispatcher
	auditRepo audit.Repository
	auditCh   chan *audit.AuditLog
	version   string
	server    *http.Server
	cancel    context.CancelFunc
	auditDone chan struct{}
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	required := []struct {
		name string
		ok   bool
	}{
		{"logger", deps.Logger != nil},
		{"device registry", deps.Registry != nil},
		{"ingestion gateway", deps.Gateway != nil},
		{"telemetry store", deps.Telemetry != nil},
		{"fan-out poller", deps.Poller != nil},
		{"room repository", deps.Rooms != nil},
		{"presence tracker", deps.Presence != nil},
		{"user repository", deps.Users != nil},
	}
	for _, r := range required {
		if !r.ok {
			return nil, fmt.Errorf("%s is required", r.name)
		}
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		registry:  deps.Registry,
		gateway:   deps.Gateway,
		telemetry: deps.Telemetry,
		poller:    deps.Poller,
		rooms:     deps.Rooms,
		presence:  deps.Presence,
		users:     deps.Users,
		commands:  deps.Commands,
		auditRepo: deps.Audit,
		version:   deps.Version,
	}
	if s.auditRepo != nil {
		s.auditCh = make(chan *audit.AuditLog, auditChanSize)
	}
	return s, nil
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start launches the audit writer and the HTTP listener in the background.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.auditCh != nil {
		s.auditDone = make(chan struct{})
		go func() {
			defer close(s.auditDone)
			s.drainAuditLog(srvCtx)
		}()
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
		BaseContext:       func(_ net.Listener) context.Context { return srvCtx },
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS", "address", s.server.Addr, "cert", s.cfg.TLS.CertFile)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server. Live streams end when their
// request contexts are cancelled.
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
	err := s.server.Shutdown(ctx)
	if s.auditDone != nil {
		<-s.auditDone
	}
	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
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
