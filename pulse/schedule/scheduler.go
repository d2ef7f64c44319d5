package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/teranos/autoblog/am"
	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/errors"
	"github.com/teranos/autoblog/internal/util"
	"github.com/teranos/autoblog/logger"
	"github.com/teranos/autoblog/metrics"
)

// Dispatcher hands a job to the async worker pool without waiting for it.
type Dispatcher interface {
	Dispatch(jobID, topicID, siteID string) error
}

// Store is the persistence a sweep needs.
type Store interface {
	blog.ScheduleStore
	blog.SiteStore
	blog.TopicStore
	blog.JobStore
}

// Config tunes the sweep and its ticker.
type Config struct {
	Concurrency    int           // schedules processed in parallel
	TickerInterval time.Duration // 0 disables the ticker
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Concurrency:    8,
		TickerInterval: time.Minute,
	}
}

// ConfigFrom derives the scheduler configuration from am.Config.
func ConfigFrom(cfg *am.Config) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	if cfg.Pulse.SweepConcurrency > 0 {
		c.Concurrency = cfg.Pulse.SweepConcurrency
	}
	if cfg.Pulse.TickerIntervalSeconds >= 0 {
		c.TickerInterval = time.Duration(cfg.Pulse.TickerIntervalSeconds) * time.Second
	}
	return c
}

// Outcome is what a sweep did with one schedule.
type Outcome struct {
	ScheduleID  string    `json:"scheduleId"`
	SiteID      string    `json:"siteId"`
	Status      string    `json:"status"`
	Selected    int       `json:"topicsSelected"`
	Dispatched  int       `json:"jobsDispatched"`
	JobIDs      []string  `json:"jobIds,omitempty"`
	NextRunTime time.Time `json:"nextRunTime,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// SweepResult summarizes one RunDueSchedules call.
type SweepResult struct {
	Schedules  int       `json:"schedules"`
	Dispatched int       `json:"dispatched"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Outcomes   []Outcome `json:"outcomes"`
}

// Scheduler runs due schedules.
type Scheduler struct {
	store      Store
	runs       *RunStore
	dispatcher Dispatcher
	cfg        Config
	metrics    metrics.Recorder
	rng        Rand
	newID      func() string
	logger     *zap.SugaredLogger
	pulseLog   *zap.SugaredLogger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRunStore records a schedule_runs row per schedule per sweep.
func WithRunStore(r *RunStore) Option {
	return func(s *Scheduler) { s.runs = r }
}

// WithMetrics records sweep measurements.
func WithMetrics(r metrics.Recorder) Option {
	return func(s *Scheduler) { s.metrics = r }
}

// WithRand injects the randomness used for topic selection and run times.
func WithRand(r Rand) Option {
	return func(s *Scheduler) { s.rng = r }
}

// WithIDGenerator overrides job id generation (tests).
func WithIDGenerator(f func() string) Option {
	return func(s *Scheduler) { s.newID = f }
}

// NewScheduler creates a scheduler.
func NewScheduler(store Store, d Dispatcher, cfg Config, log *zap.SugaredLogger, opts ...Option) *Scheduler {
	if log == nil {
		log = logger.Logger
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	s := &Scheduler{
		store:      store,
		dispatcher: d,
		cfg:        cfg,
		metrics:    metrics.Noop{},
		newID:      uuid.NewString,
		logger:     log.Named("pulse.schedule"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = NewRand()
	}
	s.rng = &lockedRand{rng: s.rng}
	s.pulseLog = logger.AddPulseSymbol(s.logger)
	return s
}

// RunDueSchedules processes every enabled schedule due at now. Schedules run
// concurrently and independently: one failing never stops the others. The
// error is non-nil only when the due schedules could not be listed.
func (s *Scheduler) RunDueSchedules(ctx context.Context, now time.Time) (*SweepResult, error) {
	start := time.Now()
	due, err := s.store.ScanDueSchedules(ctx, now)
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan due schedules")
	}

	result := &SweepResult{Schedules: len(due), Outcomes: make([]Outcome, len(due))}
	if len(due) == 0 {
		s.metrics.ObserveSweep(0, 0, time.Since(start))
		return result, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, sched := range due {
		g.Go(func() error {
			result.Outcomes[i] = s.runSchedule(gctx, sched, now)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range result.Outcomes {
		result.Dispatched += o.Dispatched
		switch o.Status {
		case RunStatusFailed:
			result.Failed++
		case RunStatusSkipped:
			result.Skipped++
		}
	}

	s.metrics.ObserveSweep(result.Schedules, result.Dispatched, time.Since(start))
	s.pulseLog.Infow("Sweep completed",
		logger.FieldCount, result.Schedules,
		"dispatched", result.Dispatched,
		"failed", result.Failed,
		"skipped", result.Skipped,
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return result, nil
}

// runSchedule handles one due schedule and records its run.
func (s *Scheduler) runSchedule(ctx context.Context, sched *blog.Schedule, now time.Time) Outcome {
	started := time.Now()
	log := s.logger.With(logger.FieldScheduleID, sched.ID, logger.FieldSiteID, sched.SiteID)
	out := Outcome{ScheduleID: sched.ID, SiteID: sched.SiteID}

	run := &Run{ID: uuid.NewString(), ScheduleID: sched.ID, SiteID: sched.SiteID, Status: RunStatusRunning, StartedAt: started}
	if s.runs != nil {
		if err := s.runs.CreateRun(ctx, run); err != nil {
			// history is best effort
			log.Warnw("Failed to create schedule run record", logger.FieldError, err)
			run = nil
		}
	}

	err := s.process(ctx, sched, now, &out, log)
	switch {
	case err != nil:
		out.Status = RunStatusFailed
		out.Error = err.Error()
		log.Errorw("Schedule run failed", logger.FieldError, err)
	case out.Status == "":
		out.Status = RunStatusCompleted
	}

	if s.runs != nil && run != nil {
		completed := time.Now()
		run.Status = out.Status
		run.TopicsSelected = out.Selected
		run.JobsDispatched = out.Dispatched
		run.ErrorMessage = out.Error
		run.CompletedAt = &completed
		run.DurationMs = completed.Sub(started).Milliseconds()
		if !out.NextRunTime.IsZero() {
			run.NextRunTime = util.Ptr(out.NextRunTime)
		}
		// record the outcome even when the sweep is being cancelled
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := s.runs.FinishRun(rctx, run); err != nil {
			log.Warnw("Failed to finish schedule run record", logger.FieldError, err)
		}
		cancel()
	}
	return out
}

// process claims the schedule by moving it forward, then selects topics and
// creates and dispatches their jobs. The claim is conditional on the next run
// the sweep scanned, so of two overlapping sweeps only one dispatches.
// Per-topic failures are logged and skipped.
func (s *Scheduler) process(ctx context.Context, sched *blog.Schedule, now time.Time, out *Outcome, log *zap.SugaredLogger) error {
	if _, err := s.store.GetSite(ctx, sched.SiteID); err != nil {
		if errors.Is(err, blog.ErrNotFound) {
			log.Warnw("Site not found for schedule, skipping")
			out.Status = RunStatusSkipped
			out.Error = "site not found"
			return nil
		}
		return errors.Wrapf(err, "failed to load site %s", sched.SiteID)
	}

	next := ComputeNextRunTime(sched, now, s.rng)
	scanned := sched.NextRunTime
	err := s.store.UpdateSchedule(ctx, sched.ID, blog.SchedulePatch{
		NextRunTime:   &next,
		LastRunTime:   &now,
		IfNextRunTime: &scanned,
	})
	if err != nil {
		if errors.Is(err, blog.ErrScheduleClaimed) {
			log.Infow("Schedule claimed by another sweep, skipping")
			out.Status = RunStatusSkipped
			out.Error = "claimed by another sweep"
			return nil
		}
		return errors.Wrapf(err, "failed to advance schedule %s", sched.ID)
	}
	out.NextRunTime = next

	approved, err := s.store.ListTopics(ctx, sched.SiteID, blog.TopicApproved)
	if err != nil {
		return errors.Wrapf(err, "failed to list approved topics for site %s", sched.SiteID)
	}
	if len(approved) == 0 {
		log.Infow("No approved topics for schedule")
	}

	selected := SelectTopics(approved, sched.PostsPerInterval, s.rng)
	out.Selected = len(selected)
	for _, topic := range selected {
		jobID, err := s.dispatchTopic(ctx, sched, topic, now)
		if err != nil {
			log.Errorw("Failed to dispatch topic",
				logger.FieldTopicID, topic.ID,
				logger.FieldJobID, jobID,
				logger.FieldError, err)
			continue
		}
		out.Dispatched++
		out.JobIDs = append(out.JobIDs, jobID)
	}

	log.Infow("Schedule processed",
		"selected", out.Selected,
		"dispatched", out.Dispatched,
		logger.FieldNextRun, next.Format(time.RFC3339))
	return nil
}

// dispatchTopic creates the queued job, dispatches it and marks the topic
// published. The mark is optimistic: the job has not run yet, and the
// reconciliation report lists topics whose job later failed.
func (s *Scheduler) dispatchTopic(ctx context.Context, sched *blog.Schedule, topic *blog.Topic, now time.Time) (string, error) {
	job := blog.NewJob(s.newID(), topic.ID, sched.SiteID, sched.UserID, blog.SourceSchedule, now)
	job.AutoPublish = util.Ptr(true)
	if err := s.store.CreateJob(ctx, job); err != nil {
		return "", err
	}
	if err := s.dispatcher.Dispatch(job.ID, topic.ID, sched.SiteID); err != nil {
		// the job stays queued for orphan recovery; the topic stays approved
		return job.ID, err
	}
	err := s.store.UpdateTopicStatus(ctx, topic.ID, sched.SiteID, blog.TopicPublished, blog.TopicPatch{
		LastJobID: &job.ID,
	})
	if err != nil {
		s.logger.Warnw("Job dispatched but topic could not be marked published",
			logger.FieldJobID, job.ID,
			logger.FieldTopicID, topic.ID,
			logger.FieldError, err)
	}
	return job.ID, nil
}

// nextDue is the schedule due soonest, for the ticker's status line.
type nextDue struct {
	scheduleID string
	at         time.Time
}

// nextDue returns the enabled schedule due soonest, if any.
func (s *Scheduler) nextDue(ctx context.Context) (*nextDue, error) {
	all, err := s.store.ListSchedules(ctx)
	if err != nil {
		return nil, err
	}
	var best *nextDue
	for _, sched := range all {
		if !sched.Enabled {
			continue
		}
		if best == nil || sched.NextRunTime.Before(best.at) {
			best = &nextDue{scheduleID: sched.ID, at: sched.NextRunTime}
		}
	}
	return best, nil
}
