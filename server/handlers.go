package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/autoblog/logger"
	"github.com/teranos/autoblog/version"
)

// HandleReconcile serves the reconciliation report: topics marked published
// whose job failed or is missing.
func (s *Server) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Orchestrator.Reconcile(r.Context())
	if err != nil {
		writeWrappedError(w, s.logger, err, "failed to build reconciliation report")
		return
	}
	_ = writeJSON(w, http.StatusOK, report)
}

// HandleUsage serves AI usage statistics for the last ?hours= hours (default 24)
func (s *Server) HandleUsage(w http.ResponseWriter, r *http.Request) {
	if s.deps.Usage == nil {
		writeError(w, http.StatusServiceUnavailable, "Usage tracking is not configured")
		return
	}
	hours := queryInt(r, "hours", 24, 24*90)
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	stats, err := s.deps.Usage.GetUsageStats(r.Context(), since)
	if err != nil {
		writeWrappedError(w, s.logger, err, fmt.Sprintf("failed to get usage stats (hours=%d)", hours))
		return
	}
	breakdown, err := s.deps.Usage.GetModelBreakdown(r.Context(), since)
	if err != nil {
		writeWrappedError(w, s.logger, err, "failed to get model breakdown")
		return
	}
	_ = writeJSON(w, http.StatusOK, map[string]interface{}{
		"since":  since.UTC(),
		"stats":  stats,
		"models": breakdown,
	})
}

// HandleHealth serves the process health check with version and pool info
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	info := version.Get()
	health := map[string]interface{}{
		"status":     "ok",
		"version":    info.Version,
		"commit":     info.CommitHash,
		"build_time": info.BuildTime,
		"uptime":     time.Since(s.startedAt).Round(time.Second).String(),
		"clients":    s.hub.ClientCount(),
	}
	if s.deps.Pool != nil {
		health["pool"] = s.deps.Pool.GetSystemMetrics()
	}
	if s.deps.Ticker != nil {
		health["ticker"] = s.deps.Ticker.Stats()
	}
	_ = writeJSON(w, http.StatusOK, health)
}

// HandleJobFeed upgrades to a WebSocket that receives every job update
func (s *Server) HandleJobFeed(w http.ResponseWriter, r *http.Request) {
	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		s.logger.Warnw("WebSocket upgrade failed", logger.FieldError, err)
		return
	}

	client := newClient(s.hub, conn, uuid.NewString())
	if !s.hub.add(client) {
		conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}
