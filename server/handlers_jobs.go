package server

import (
	"net/http"

	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/errors"
	"github.com/teranos/autoblog/logger"
	"github.com/teranos/autoblog/pipeline"
)

// PublishNowRequest is the body of POST /api/jobs
type PublishNowRequest struct {
	SiteID  string `json:"siteId"`
	TopicID string `json:"topicId"`
	UserID  string `json:"userId,omitempty"`
}

// PublishNowResponse acknowledges a queued job
type PublishNowResponse struct {
	Message       string `json:"message"`
	JobID         string `json:"jobId"`
	Status        string `json:"status"`
	EstimatedTime string `json:"estimatedTime"`
}

// ListJobsResponse is the body of GET /api/jobs
type ListJobsResponse struct {
	Jobs  []*blog.Job `json:"jobs"`
	Count int         `json:"count"`
}

// HandlePublishNow queues an on-demand job and returns without waiting for it
func (s *Server) HandlePublishNow(w http.ResponseWriter, r *http.Request) {
	var req PublishNowRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}
	if req.SiteID == "" || req.TopicID == "" {
		writeError(w, http.StatusBadRequest, "Missing required parameters: topicId and siteId are required")
		return
	}

	job, err := s.deps.Trigger.PublishNow(r.Context(), req.SiteID, req.TopicID, req.UserID)
	if err != nil {
		if job != nil {
			// the job exists but the pool refused it; recovery re-dispatches it
			s.logger.Warnw("Job queued but not dispatched", logger.FieldJobID, job.ID, logger.FieldError, err)
			_ = writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error":  "Job queued but the dispatcher is unavailable",
				"jobId":  job.ID,
				"status": string(job.Status),
			})
			return
		}
		writeWrappedError(w, s.logger, err, "failed to publish now")
		return
	}

	_ = writeJSON(w, http.StatusAccepted, PublishNowResponse{
		Message:       "Blog generation queued",
		JobID:         job.ID,
		Status:        string(job.Status),
		EstimatedTime: pipeline.EstimatedTime,
	})
}

// HandleGetJob returns a job's current state
func (s *Server) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	job, err := s.deps.Store.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, blog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Job not found")
			return
		}
		writeWrappedError(w, s.logger, err, "failed to get job")
		return
	}
	_ = writeJSON(w, http.StatusOK, job)
}

// HandleListJobs lists jobs, newest first, filtered by ?status= and ?siteId=
func (s *Server) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	filter := blog.JobFilter{
		SiteID: r.URL.Query().Get("siteId"),
		Limit:  queryInt(r, "limit", 50, 500),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := blog.ParseJobStatus(raw)
		if err != nil {
			writeWrappedError(w, s.logger, err, "invalid job status filter")
			return
		}
		filter.Status = status
	}

	jobs, err := s.deps.Store.ListJobs(r.Context(), filter)
	if err != nil {
		writeWrappedError(w, s.logger, err, "failed to list jobs")
		return
	}
	if jobs == nil {
		jobs = []*blog.Job{}
	}
	_ = writeJSON(w, http.StatusOK, ListJobsResponse{Jobs: jobs, Count: len(jobs)})
}
