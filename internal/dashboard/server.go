package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger checks a backing service. *bridge.Client satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server provides the dashboard HTTP endpoints:
//
//	/ws       websocket telemetry stream and command input
//	/healthz  health check
//	/metrics  Prometheus metrics
type Server struct {
	addr     string
	hub      *Hub
	pinger   Pinger
	gatherer prometheus.Gatherer
	log      logr.Logger

	server   *http.Server
	listener net.Listener
}

// NewServer creates a dashboard server. pinger and gatherer may be nil; without a pinger the
// health check reports Redis as disabled and without a gatherer /metrics is not served.
func NewServer(addr string, hub *Hub, pinger Pinger, gatherer prometheus.Gatherer, log logr.Logger) *Server {
	return &Server{
		addr:     addr,
		hub:      hub,
		pinger:   pinger,
		gatherer: gatherer,
		log:      log,
	}
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", s.hub)
	mux.HandleFunc("/healthz", s.healthCheckHandler)
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error(err, "dashboard server error")
		}
	}()

	s.log.Info("dashboard listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the address the server listens on, or the configured address before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Shutdown disconnects websocket clients and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status  string `json:"status"`
	Redis   string `json:"redis,omitempty"`
	Clients int    `json:"clients"`
	Error   string `json:"error,omitempty"`
}

// healthCheckHandler handles GET /healthz requests.
// Returns 200 OK if Redis is accessible or not in use, 503 Service Unavailable otherwise.
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Redis:   "disabled",
		Clients: s.hub.Clients(),
	}
	status := http.StatusOK

	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.pinger.Ping(ctx); err != nil {
			response.Status = "unhealthy"
			response.Redis = "disconnected"
			response.Error = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			response.Redis = "connected"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
