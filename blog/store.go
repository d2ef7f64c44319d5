package blog

import (
	"context"
	"time"
)

// JobPatch is a merge-patch for a job: nil fields are left unchanged.
type JobPatch struct {
	Title           *string
	WordPressPostID *int64
	PublishedURL    *string
	ContentID       *string
	Error           *JobError
	StartedAt       *time.Time
	CompletedAt     *time.Time
	FailedAt        *time.Time
}

// TopicPatch is a merge-patch for a topic.
type TopicPatch struct {
	PublishedAt     *time.Time
	WordPressPostID *int64
	LastJobID       *string
}

// SchedulePatch is a merge-patch for a schedule. With IfNextRunTime set the
// patch applies only while the stored next run still equals it, and fails
// with ErrScheduleClaimed otherwise.
type SchedulePatch struct {
	NextRunTime   *time.Time
	LastRunTime   *time.Time
	Enabled       *bool
	IfNextRunTime *time.Time
}

// JobFilter narrows ListJobs. Zero values match everything.
type JobFilter struct {
	Status JobStatus
	SiteID string
	Limit  int
}

// DivergenceReason explains why a published topic has no matching post.
type DivergenceReason string

const (
	ReasonJobFailed  DivergenceReason = "job_failed"
	ReasonJobMissing DivergenceReason = "job_missing"
)

// Divergence is a topic marked published whose job did not publish it.
type Divergence struct {
	TopicID    string           `json:"topicId"`
	SiteID     string           `json:"siteId"`
	TopicTitle string           `json:"title"`
	JobID      string           `json:"jobId,omitempty"`
	Reason     DivergenceReason `json:"reason"`
	JobError   *JobError        `json:"error,omitempty"`
	FailedAt   *time.Time       `json:"failedAt,omitempty"`
}

// JobStore persists jobs. UpdateJobStatus enforces the job state machine
// atomically and returns ErrInvalidTransition when the move is not allowed.
type JobStore interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, jobID string) (*Job, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, patch JobPatch) error
	ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error)
}

// TopicStore persists topics.
type TopicStore interface {
	CreateTopic(ctx context.Context, topic *Topic) error
	GetTopic(ctx context.Context, topicID, siteID string) (*Topic, error)
	UpdateTopicStatus(ctx context.Context, topicID, siteID string, status TopicStatus, patch TopicPatch) error
	ListTopics(ctx context.Context, siteID string, status TopicStatus) ([]*Topic, error)
}

// SiteStore persists sites and their health probes.
type SiteStore interface {
	CreateSite(ctx context.Context, site *Site) error
	GetSite(ctx context.Context, siteID string) (*Site, error)
	RecordSiteHealth(ctx context.Context, health SiteHealth) error
	LatestSiteHealth(ctx context.Context, siteID string) (*SiteHealth, error)
}

// ScheduleStore persists schedules.
type ScheduleStore interface {
	CreateSchedule(ctx context.Context, schedule *Schedule) error
	GetSchedule(ctx context.Context, scheduleID string) (*Schedule, error)
	ListSchedules(ctx context.Context) ([]*Schedule, error)
	ScanDueSchedules(ctx context.Context, now time.Time) ([]*Schedule, error)
	UpdateSchedule(ctx context.Context, scheduleID string, patch SchedulePatch) error
}

// ContentStore persists generated content.
type ContentStore interface {
	SaveContent(ctx context.Context, content *Content) error
	GetContent(ctx context.Context, contentID string) (*Content, error)
}

// ReconcileStore answers the reconciliation query.
type ReconcileStore interface {
	ListPublishDivergences(ctx context.Context) ([]Divergence, error)
}

// Store is the full persistence surface.
type Store interface {
	JobStore
	TopicStore
	SiteStore
	ScheduleStore
	ContentStore
	ReconcileStore
}
