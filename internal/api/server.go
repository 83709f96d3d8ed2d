package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-upnp/internal/eventlog"
	"github.com/nerrad567/gray-logic-upnp/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-upnp/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/control"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/gena"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/localsvc"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/meta"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/soap"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is implemented by components whose liveness the health
// endpoint reports (database, MQTT, InfluxDB).
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EventRecorder receives every event notification accepted by a callback
// endpoint. The event log and the MQTT bridge both implement it.
type EventRecorder interface {
	RecordReceived(ctx context.Context, event *gena.IncomingEvent) error
}

// InvocationMetrics records the outcome of control requests.
type InvocationMetrics interface {
	WriteInvocation(source string, inv *control.Invocation, elapsed time.Duration)
}

// ConnectionStatus reports whether a client is connected.
type ConnectionStatus interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config config.APIConfig
	Logger *logging.Logger
	Host   *localsvc.Host // Required: services answering control requests
	SOAP   soap.Processor // Required
	GENA   gena.Processor // Required

	// Devices are additional device trees whose callback endpoints accept
	// event notifications, such as mirrors of remote devices.
	Devices []*meta.Device

	EventLog     eventlog.Repository // Optional: history endpoints and invocation records
	EventSinks   []EventRecorder     // Optional: receivers of accepted notifications
	Metrics      InvocationMetrics   // Optional
	MQTT         ConnectionStatus    // Optional: reported by the metrics endpoint
	DB           DBStats             // Optional: reported by the metrics endpoint
	HealthChecks map[string]HealthChecker
	Version      string
}

// Server is the HTTP server for local UPnP services.
//
// It answers SOAP control requests, accepts GENA event notifications on
// callback paths and exposes a JSON API for state and history.
type Server struct {
	cfg          config.APIConfig
	logger       *logging.Logger
	host         *localsvc.Host
	soap         soap.Processor
	gena         gena.Processor
	namespace    meta.Namespace
	devices      []*meta.Device
	eventLog     eventlog.Repository
	sinks        []EventRecorder
	metrics      InvocationMetrics
	mqtt         ConnectionStatus
	db           DBStats
	healthChecks map[string]HealthChecker
	version      string
	startTime    time.Time
	server       *http.Server
	cancel       context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, host, processors)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Host == nil {
		return nil, fmt.Errorf("service host is required")
	}
	if deps.SOAP == nil || deps.GENA == nil {
		return nil, fmt.Errorf("SOAP and GENA processors are required")
	}

	devices := append([]*meta.Device{}, deps.Host.Devices()...)
	devices = append(devices, deps.Devices...)

	return &Server{
		cfg:          deps.Config,
		logger:       deps.Logger.Component("api"),
		host:         deps.Host,
		soap:         deps.SOAP,
		gena:         deps.GENA,
		namespace:    meta.NewNamespace(deps.Config.PathPrefix),
		devices:      devices,
		eventLog:     deps.EventLog,
		sinks:        deps.EventSinks,
		metrics:      deps.Metrics,
		mqtt:         deps.MQTT,
		db:           deps.DB,
		healthChecks: deps.HealthChecks,
		version:      deps.Version,
		startTime:    time.Now(),
	}, nil
}

// Namespace returns the resource path layout served by s.
func (s *Server) Namespace() meta.Namespace { return s.namespace }

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// The listener runs in a background goroutine until Close() is called.
//
// Parameters:
//   - ctx: Parent context of request contexts
//
// Returns:
//   - error: If the server fails to start
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadTimeout(),
		WriteTimeout:      s.cfg.Timeouts.WriteTimeout(),
		IdleTimeout:       s.cfg.Timeouts.IdleTimeout(),
		BaseContext:       func(_ net.Listener) context.Context { return srvCtx },
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr, "prefix", s.namespace.Prefix())
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
	err := s.server.Shutdown(ctx)
	if s.cancel != nil {
		s.cancel()
	}
	if err != nil {
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
