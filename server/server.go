// Package server exposes the publishing engine over HTTP: on-demand
// publication, job status, topic intake, site health, the reconciliation
// report, a WebSocket job feed and Prometheus metrics.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/teranos/autoblog/ai/tracker"
	"github.com/teranos/autoblog/am"
	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/errors"
	"github.com/teranos/autoblog/logger"
	"github.com/teranos/autoblog/pipeline"
	"github.com/teranos/autoblog/pulse/async"
	"github.com/teranos/autoblog/pulse/schedule"
)

// shutdownTimeout bounds graceful HTTP shutdown
const shutdownTimeout = 10 * time.Second

// SiteChecker probes a publish target. *wordpress.Client satisfies it.
type SiteChecker interface {
	CheckHealth(ctx context.Context, site *blog.Site) blog.SiteHealth
}

// Deps are the components the API serves. Store, Trigger and Orchestrator
// are required; the rest switch their endpoints off when nil.
type Deps struct {
	Store        blog.Store
	Trigger      *pipeline.Trigger
	Orchestrator *pipeline.Orchestrator
	Sites        SiteChecker
	Runs         *schedule.RunStore
	Usage        *tracker.UsageTracker
	Pool         *async.WorkerPool
	Ticker       *schedule.Ticker
	Hub          *Hub
	Metrics      http.Handler
	Config       *am.Config
}

// Server is the HTTP API
type Server struct {
	deps          Deps
	hub           *Hub
	healthTimeout time.Duration
	originsMu     sync.RWMutex
	origins       []string
	logger        *zap.SugaredLogger
	startedAt     time.Time
	newID         func() string
}

// New creates the API server
func New(deps Deps, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = logger.Logger
	}
	log = log.Named("server")
	hub := deps.Hub
	if hub == nil {
		hub = NewHub(log)
	}
	s := &Server{
		deps:          deps,
		hub:           hub,
		healthTimeout: 10 * time.Second,
		logger:        log,
		startedAt:     time.Now(),
		newID:         uuid.NewString,
	}
	if deps.Config != nil {
		if deps.Config.Timeouts.HealthSeconds > 0 {
			s.healthTimeout = time.Duration(deps.Config.Timeouts.HealthSeconds) * time.Second
		}
		s.origins = deps.Config.Server.AllowedOrigins
	}
	return s
}

// Hub returns the job feed hub, for wiring as the orchestrator's observer.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the routed API
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/jobs", s.HandlePublishNow)
	mux.HandleFunc("GET /api/jobs", s.HandleListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", s.HandleGetJob)
	mux.HandleFunc("POST /api/topics", s.HandleCreateTopic)
	mux.HandleFunc("PUT /api/topics/{id}/status", s.HandleSetTopicStatus)
	mux.HandleFunc("GET /api/sites/{id}/health", s.HandleSiteHealth)
	mux.HandleFunc("GET /api/schedules", s.HandleListSchedules)
	mux.HandleFunc("GET /api/schedules/{id}/runs", s.HandleScheduleRuns)
	mux.HandleFunc("GET /api/schedules/{id}/preview", s.HandleSchedulePreview)
	mux.HandleFunc("GET /api/reconcile", s.HandleReconcile)
	mux.HandleFunc("GET /api/usage", s.HandleUsage)
	mux.HandleFunc("GET /ws/jobs", s.HandleJobFeed)
	mux.HandleFunc("GET /health", s.HandleHealth)
	if s.deps.Metrics != nil {
		mux.Handle("GET /metrics", s.deps.Metrics)
	}
	return s.logRequests(mux)
}

// logRequests logs each request at debug level with its duration
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debugw("HTTP request",
			logger.FieldMethod, r.Method,
			logger.FieldPath, r.URL.Path,
			logger.FieldDurationMS, time.Since(start).Milliseconds())
	})
}

// Serve runs the hub and the HTTP server on addr until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow(fmt.Sprintf("HTTP server listening on %s", addr), logger.FieldAddress, addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrapf(err, "HTTP server on %s failed", addr)
	case <-ctx.Done():
	}

	s.logger.Infow("Initiating server shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown failed")
	}
	s.logger.Infow("Server stopped")
	return nil
}

// SetAllowedOrigins replaces the WebSocket origin allow-list; used when the
// configuration is reloaded.
func (s *Server) SetAllowedOrigins(origins []string) {
	s.originsMu.Lock()
	defer s.originsMu.Unlock()
	s.origins = origins
}

// upgrader creates a WebSocket upgrader with origin checking from config
func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
}

// checkOrigin validates the WebSocket origin against the configured allowed
// origins, defaulting to localhost.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// Allow requests with no origin header (e.g., direct WebSocket clients, testing)
	if origin == "" {
		return true
	}
	s.originsMu.RLock()
	allowed := s.origins
	s.originsMu.RUnlock()
	if len(allowed) == 0 {
		allowed = []string{"http://localhost", "https://localhost"}
	}
	// prefix matching allows any port
	for _, prefix := range allowed {
		if strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	return false
}
