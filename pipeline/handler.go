package pipeline

import (
	"context"

	"github.com/teranos/autoblog/pulse/async"
)

// PublishHandler runs blog.publish tasks through the orchestrator.
type PublishHandler struct {
	orchestrator *Orchestrator
}

var _ async.TaskHandler = (*PublishHandler)(nil)

// NewPublishHandler creates the blog.publish task handler.
func NewPublishHandler(o *Orchestrator) *PublishHandler {
	return &PublishHandler{orchestrator: o}
}

func (h *PublishHandler) Name() string {
	return async.HandlerBlogPublish
}

// Execute runs the job named by the task payload. Job failures are recorded
// on the job; only store failures surface as errors.
func (h *PublishHandler) Execute(ctx context.Context, task *async.Task) error {
	p, err := async.DecodePublishPayload(task)
	if err != nil {
		return err
	}
	_, err = h.orchestrator.RunJob(ctx, p.JobID, p.TopicID, p.SiteID)
	return err
}
