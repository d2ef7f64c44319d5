package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/errors"
	"github.com/teranos/autoblog/logger"
	"go.uber.org/zap"
)

// EstimatedTime is what callers of PublishNow are told to expect.
const EstimatedTime = "1-3 minutes"

// ErrTopicNotApproved is returned when a topic is not eligible for publication.
var ErrTopicNotApproved = errors.Wrap(errors.ErrConflict, "topic is not approved")

// Dispatcher hands a job to the async worker pool without waiting for it.
type Dispatcher interface {
	Dispatch(jobID, topicID, siteID string) error
}

// Trigger starts on-demand publication of a single topic.
type Trigger struct {
	store      blog.Store
	dispatcher Dispatcher
	logger     *zap.SugaredLogger
	now        func() time.Time
	newID      func() string
}

// NewTrigger creates a Trigger.
func NewTrigger(store blog.Store, d Dispatcher, log *zap.SugaredLogger) *Trigger {
	if log == nil {
		log = logger.Logger
	}
	return &Trigger{
		store:      store,
		dispatcher: d,
		logger:     log.Named("trigger"),
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

// PublishNow creates a queued on-demand job for an approved topic of the site
// and dispatches it. The returned job is the queued record; the outcome is
// recorded later by the worker.
func (t *Trigger) PublishNow(ctx context.Context, siteID, topicID, userID string) (*blog.Job, error) {
	if siteID == "" || topicID == "" {
		return nil, errors.NewInvalidRequestError("siteId and topicId are required")
	}
	if _, err := t.store.GetSite(ctx, siteID); err != nil {
		return nil, errors.Wrapf(err, "site %s", siteID)
	}
	topic, err := t.store.GetTopic(ctx, topicID, siteID)
	if err != nil {
		return nil, errors.Wrapf(err, "topic %s", topicID)
	}
	if !topic.Eligible() {
		return nil, errors.WithDetailf(
			errors.Wrapf(ErrTopicNotApproved, "topic %s", topicID),
			"status: %s", topic.Status)
	}
	if userID == "" {
		userID = topic.UserID
	}

	job := blog.NewJob(t.newID(), topicID, siteID, userID, blog.SourceOnDemand, t.now())
	if err := t.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	if err := t.dispatcher.Dispatch(job.ID, topicID, siteID); err != nil {
		// the job stays queued and is picked up by orphan recovery
		t.logger.Warnw("Dispatch failed, job left queued",
			logger.FieldJobID, job.ID,
			logger.FieldTopicID, topicID,
			logger.FieldError, err)
		return job, errors.Wrapf(err, "failed to dispatch job %s", job.ID)
	}

	t.logger.Infow("On-demand job queued",
		logger.FieldJobID, job.ID,
		logger.FieldTopicID, topicID,
		logger.FieldSiteID, siteID)
	return job, nil
}
