// Package serve exposes a running engine over HTTP for editor frontends:
// function and type catalogs, graph runs, Prometheus metrics, and a
// WebSocket stream of run events.
package serve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/csso/fngraph/appmodel"
	"github.com/csso/fngraph/internal/engine"
	"github.com/csso/fngraph/internal/run"
	"github.com/csso/fngraph/internal/workspace"
)

// DefaultAddr is used when the workspace does not pick a listen address.
const DefaultAddr = ":8686"

// ErrUnknownGraph marks run requests for graphs the workspace never declared.
var ErrUnknownGraph = errors.New("graph is not declared in the workspace")

// Config wires a Server to an initialized engine and its workspace. Model
// backs the function catalog endpoint; Engine drives runs.
type Config struct {
	Addr      string
	Engine    *engine.Engine
	Model     *appmodel.Model
	Workspace *workspace.Config
	Metrics   *run.Metrics
	Logger    *slog.Logger
}

// Server is the HTTP surface. One session is kept per graph name, so
// repeated runs of the same graph reuse cached node outputs exactly like an
// editor session would.
type Server struct {
	engine  *engine.Engine
	model   *appmodel.Model
	ws      *workspace.Config
	metrics *run.Metrics
	logger  *slog.Logger
	hub     *Hub
	httpSrv *http.Server

	mu       sync.Mutex
	sessions map[string]*engine.Session

	// runMu serializes graph runs. The runtime does not allow concurrent
	// Run calls, and the script console drained by Output is shared across
	// sessions.
	runMu sync.Mutex
}

// New builds the server and its router.
func New(cfg Config) *Server {
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		engine:   cfg.Engine,
		model:    cfg.Model,
		ws:       cfg.Workspace,
		metrics:  cfg.Metrics,
		logger:   logger,
		hub:      NewHub(),
		sessions: make(map[string]*engine.Session),
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Hub exposes the event hub so callers can broadcast events from runs they
// drive themselves (the watch loop does this).
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the configured router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/functions", s.handleFunctions).Methods(http.MethodGet)
	api.HandleFunc("/types", s.handleTypes).Methods(http.MethodGet)
	api.HandleFunc("/graphs", s.handleGraphs).Methods(http.MethodGet)
	api.HandleFunc("/graphs/{name}/run", s.handleRun).Methods(http.MethodPost)
	api.HandleFunc("/runs/ws", s.handleRunsWS).Methods(http.MethodGet)
	return r
}

// ListenAndServe blocks until Shutdown is called or the listener fails.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server starting.", "addr", s.httpSrv.Addr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and disconnects event subscribers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down.")
	err := s.httpSrv.Shutdown(ctx)
	s.hub.closeAll()
	return err
}

// session returns the persistent session for a workspace graph, creating and
// loading it on first use.
func (s *Server) session(ctx context.Context, name string) (*engine.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[name]; ok {
		return sess, nil
	}

	file, ok := s.ws.GraphFile(name)
	if !ok {
		return nil, fmt.Errorf("'%s': %w", name, ErrUnknownGraph)
	}
	sess, err := s.engine.NewSession()
	if err != nil {
		return nil, err
	}
	if err := sess.LoadGraph(ctx, file); err != nil {
		return nil, err
	}
	sess.Runtime().Notify = s.hub.Broadcast
	s.sessions[name] = sess
	return sess, nil
}
