package server

import (
	"context"
	"net/http"
	"time"

	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/errors"
	"github.com/teranos/autoblog/logger"
	"github.com/teranos/autoblog/pulse/schedule"
)

// SiteHealthResponse is the body of GET /api/sites/{id}/health
type SiteHealthResponse struct {
	SiteID       string    `json:"siteId"`
	URL          string    `json:"url"`
	Healthy      bool      `json:"healthy"`
	StatusCode   int       `json:"statusCode"`
	ResponseTime int64     `json:"responseTime"` // milliseconds
	Error        string    `json:"error,omitempty"`
	LastChecked  time.Time `json:"lastChecked"`
}

// HandleSiteHealth probes a site and records the result. With ?cached=true
// the last recorded probe is returned instead.
func (s *Server) HandleSiteHealth(w http.ResponseWriter, r *http.Request) {
	siteID := r.PathValue("id")
	site, err := s.deps.Store.GetSite(r.Context(), siteID)
	if err != nil {
		if errors.Is(err, blog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Site not found")
			return
		}
		writeWrappedError(w, s.logger, err, "failed to load site")
		return
	}

	var health blog.SiteHealth
	if r.URL.Query().Get("cached") == "true" {
		last, err := s.deps.Store.LatestSiteHealth(r.Context(), siteID)
		if err != nil {
			writeWrappedError(w, s.logger, err, "failed to load site health")
			return
		}
		health = *last
	} else {
		if s.deps.Sites == nil {
			writeError(w, http.StatusServiceUnavailable, "Health checks are not configured")
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.healthTimeout)
		health = s.deps.Sites.CheckHealth(ctx, site)
		cancel()
		if err := s.deps.Store.RecordSiteHealth(r.Context(), health); err != nil {
			s.logger.Warnw("Failed to record site health", logger.FieldSiteID, siteID, logger.FieldError, err)
		}
		s.logger.Infow("Site health checked",
			logger.FieldSiteID, siteID,
			logger.FieldHealthy, health.Healthy,
			logger.FieldStatusCode, health.StatusCode)
	}

	_ = writeJSON(w, http.StatusOK, SiteHealthResponse{
		SiteID:       siteID,
		URL:          site.URL,
		Healthy:      health.Healthy,
		StatusCode:   health.StatusCode,
		ResponseTime: health.ResponseTimeMS(),
		Error:        health.Error,
		LastChecked:  health.CheckedAt,
	})
}

// ListSchedulesResponse is the body of GET /api/schedules
type ListSchedulesResponse struct {
	Schedules []*blog.Schedule `json:"schedules"`
	Count     int              `json:"count"`
}

// HandleListSchedules lists all schedules
func (s *Server) HandleListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := s.deps.Store.ListSchedules(r.Context())
	if err != nil {
		writeWrappedError(w, s.logger, err, "failed to list schedules")
		return
	}
	if schedules == nil {
		schedules = []*blog.Schedule{}
	}
	_ = writeJSON(w, http.StatusOK, ListSchedulesResponse{Schedules: schedules, Count: len(schedules)})
}

// HandleScheduleRuns returns a schedule's recent sweep history
func (s *Server) HandleScheduleRuns(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		writeError(w, http.StatusServiceUnavailable, "Run history is not configured")
		return
	}
	runs, err := s.deps.Runs.ListRuns(r.Context(), r.PathValue("id"), queryInt(r, "limit", 20, 200))
	if err != nil {
		writeWrappedError(w, s.logger, err, "failed to list schedule runs")
		return
	}
	if runs == nil {
		runs = []*schedule.Run{}
	}
	_ = writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs, "count": len(runs)})
}

// HandleSchedulePreview lists the next ?n= run times the schedule would
// produce. Times inside ranges are random draws, not commitments.
func (s *Server) HandleSchedulePreview(w http.ResponseWriter, r *http.Request) {
	sched, err := s.deps.Store.GetSchedule(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, blog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Schedule not found")
			return
		}
		writeWrappedError(w, s.logger, err, "failed to load schedule")
		return
	}
	runs := schedule.PreviewNextRuns(sched, time.Now().UTC(), queryInt(r, "n", 5, 50), schedule.NewRand())
	_ = writeJSON(w, http.StatusOK, map[string]interface{}{
		"scheduleId": sched.ID,
		"timezone":   sched.Timezone,
		"nextRuns":   runs,
	})
}
