package server

import (
	"net/http"
	"strings"

	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/errors"
	"github.com/teranos/autoblog/logger"
)

// CreateTopicRequest is the body of POST /api/topics
type CreateTopicRequest struct {
	Title       string   `json:"title"`
	SiteID      string   `json:"siteId"`
	UserID      string   `json:"userId"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Priority    int      `json:"priority,omitempty"`
}

// SetTopicStatusRequest is the body of PUT /api/topics/{id}/status
type SetTopicStatusRequest struct {
	SiteID string `json:"siteId"`
	Status string `json:"status"`
}

// HandleCreateTopic stores a new topic as pending; it must be approved before
// it can be published.
func (s *Server) HandleCreateTopic(w http.ResponseWriter, r *http.Request) {
	var req CreateTopicRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || req.SiteID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields: title, siteId, userId")
		return
	}

	if _, err := s.deps.Store.GetSite(r.Context(), req.SiteID); err != nil {
		if errors.Is(err, blog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Site not found")
			return
		}
		writeWrappedError(w, s.logger, err, "failed to load site")
		return
	}

	topic := &blog.Topic{
		ID:          s.newID(),
		SiteID:      req.SiteID,
		UserID:      req.UserID,
		Title:       req.Title,
		Description: req.Description,
		Keywords:    req.Keywords,
		Priority:    req.Priority,
		Status:      blog.TopicPending,
	}
	if err := s.deps.Store.CreateTopic(r.Context(), topic); err != nil {
		writeWrappedError(w, s.logger, err, "failed to create topic")
		return
	}

	s.logger.Infow("Topic created",
		logger.FieldTopicID, topic.ID,
		logger.FieldSiteID, topic.SiteID)
	_ = writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"topic":   topic,
	})
}

// HandleSetTopicStatus moves a topic through editorial review (approve, reject)
func (s *Server) HandleSetTopicStatus(w http.ResponseWriter, r *http.Request) {
	topicID := r.PathValue("id")
	var req SetTopicStatusRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}
	if req.SiteID == "" {
		writeError(w, http.StatusBadRequest, "siteId is required")
		return
	}
	status, err := blog.ParseTopicStatus(req.Status)
	if err != nil {
		writeWrappedError(w, s.logger, err, "invalid topic status")
		return
	}
	if status == blog.TopicPublished {
		writeError(w, http.StatusBadRequest, "topics are marked published by the scheduler")
		return
	}

	if err := s.deps.Store.UpdateTopicStatus(r.Context(), topicID, req.SiteID, status, blog.TopicPatch{}); err != nil {
		if errors.Is(err, blog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Topic not found")
			return
		}
		writeWrappedError(w, s.logger, err, "failed to update topic status")
		return
	}
	topic, err := s.deps.Store.GetTopic(r.Context(), topicID, req.SiteID)
	if err != nil {
		writeWrappedError(w, s.logger, err, "failed to reload topic")
		return
	}
	_ = writeJSON(w, http.StatusOK, topic)
}
