// Package async provides fire-and-forget task dispatch onto an in-process
// worker pool.
//
// ARCHITECTURE: Generic task system with handler-based execution
// - Infrastructure (pulse/async) is domain-agnostic
// - Domain packages provide handlers and payloads
// - HandlerName identifies which handler executes the task
// - Payload contains handler-specific data (domain logic controls structure)
package async

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/teranos/autoblog/errors"
)

// HandlerBlogPublish runs one publishing job through the pipeline.
const HandlerBlogPublish = "blog.publish"

// Task is one unit of work handed to the pool.
type Task struct {
	ID          string          `json:"id"`
	HandlerName string          `json:"handler_name"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
}

// NewTask builds a task with a JSON-encoded payload.
func NewTask(handlerName string, payload interface{}) (*Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode payload for %s", handlerName)
	}
	return &Task{
		ID:          uuid.NewString(),
		HandlerName: handlerName,
		Payload:     raw,
		EnqueuedAt:  time.Now(),
	}, nil
}

// PublishPayload identifies the job a blog.publish task runs.
type PublishPayload struct {
	JobID   string `json:"job_id"`
	TopicID string `json:"topic_id"`
	SiteID  string `json:"site_id"`
}

// DecodePublishPayload extracts the job identifiers from a blog.publish task.
func DecodePublishPayload(task *Task) (PublishPayload, error) {
	var p PublishPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		return p, errors.Wrapf(err, "invalid %s payload for task %s", task.HandlerName, task.ID)
	}
	if p.JobID == "" {
		return p, errors.Newf("%s payload for task %s has no job_id", task.HandlerName, task.ID)
	}
	return p, nil
}
