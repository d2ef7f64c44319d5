package blog

import (
	"time"

	"github.com/teranos/autoblog/errors"
)

// JobStatus is the lifecycle state of a publishing job.
// queued -> processing -> {completed | failed}; terminal states are absorbing.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// transitions lists the only allowed status moves.
var transitions = map[JobStatus][]JobStatus{
	JobQueued:     {JobProcessing},
	JobProcessing: {JobCompleted, JobFailed},
}

// ParseJobStatus converts a stored or user-supplied string into a JobStatus.
func ParseJobStatus(s string) (JobStatus, error) {
	switch JobStatus(s) {
	case JobQueued, JobProcessing, JobCompleted, JobFailed:
		return JobStatus(s), nil
	}
	return "", errors.NewInvalidRequestError("unknown job status %q", s)
}

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Predecessors returns the statuses from which next may be entered.
func Predecessors(next JobStatus) []JobStatus {
	var from []JobStatus
	for _, s := range []JobStatus{JobQueued, JobProcessing, JobCompleted, JobFailed} {
		if s.CanTransitionTo(next) {
			from = append(from, s)
		}
	}
	return from
}

// ErrorKind classifies why a job failed.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindGeneration ErrorKind = "generation"
	KindPublish    ErrorKind = "publish"
	KindInternal   ErrorKind = "internal"
)

// ParseErrorKind converts a stored string into an ErrorKind.
func ParseErrorKind(s string) (ErrorKind, error) {
	switch ErrorKind(s) {
	case KindValidation, KindGeneration, KindPublish, KindInternal:
		return ErrorKind(s), nil
	}
	return "", errors.NewInvalidRequestError("unknown error kind %q", s)
}

// JobError is the failure recorded on a failed job. Message is short and
// safe to show to the site owner.
type JobError struct {
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind"`
}

// JobSource records what created a job.
type JobSource string

const (
	SourceSchedule JobSource = "schedule"
	SourceOnDemand JobSource = "on-demand"
)

// Job is one attempt to generate and publish a post for a topic.
type Job struct {
	ID              string     `json:"jobId"`
	TopicID         string     `json:"topicId"`
	SiteID          string     `json:"siteId"`
	UserID          string     `json:"userId,omitempty"`
	Source          JobSource  `json:"source"`
	AutoPublish     *bool      `json:"autoPublish,omitempty"` // overrides the site setting when set
	Status          JobStatus  `json:"status"`
	Title           string     `json:"title,omitempty"`
	WordPressPostID *int64     `json:"wordpressPostId,omitempty"`
	PublishedURL    string     `json:"publishedUrl,omitempty"`
	ContentID       string     `json:"contentId,omitempty"`
	Error           *JobError  `json:"error,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	FailedAt        *time.Time `json:"failedAt,omitempty"`
}

// NewJob returns a queued job for the given topic.
func NewJob(id, topicID, siteID, userID string, source JobSource, now time.Time) *Job {
	return &Job{
		ID:        id,
		TopicID:   topicID,
		SiteID:    siteID,
		UserID:    userID,
		Source:    source,
		Status:    JobQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ShouldPublish resolves the post status: the job override wins over the site.
func (j *Job) ShouldPublish(settings SiteSettings) bool {
	if j.AutoPublish != nil {
		return *j.AutoPublish
	}
	return settings.AutoPublish
}
