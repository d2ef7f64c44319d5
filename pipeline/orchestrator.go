// Package pipeline runs a publishing job end to end: validate the site,
// generate the post, persist it, publish it and record the outcome.
//
// A job moves queued -> processing -> {completed | failed}. Every failure
// after the claim is recorded on the job as a short JobError with a kind, and
// the topic is only touched on success.
package pipeline

import (
	"context"
	"time"

	"github.com/teranos/autoblog/ai/llm"
	"github.com/teranos/autoblog/ai/provider"
	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/errors"
	"github.com/teranos/autoblog/logger"
	"github.com/teranos/autoblog/metrics"
	"github.com/teranos/autoblog/wordpress"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Stage names used for metrics and logs.
const (
	StageValidate = "validate"
	StageGenerate = "generate"
	StageSave     = "save"
	StagePublish  = "publish"
)

// recordTimeout bounds the store writes that record a job outcome. They run
// detached from the job context so a cancelled run is still recorded.
const recordTimeout = 10 * time.Second

// Validator checks that a site can be published to.
type Validator interface {
	Validate(ctx context.Context, site *blog.Site) error
}

// Publisher creates a post on a site.
type Publisher interface {
	Publish(ctx context.Context, site *blog.Site, post wordpress.Post) (*wordpress.PublishResult, error)
}

// Generators resolves the generator a site is configured to use.
type Generators interface {
	ForSite(settings blog.SiteSettings) (llm.Generator, provider.Provider, error)
}

// JobObserver is told about every job transition the orchestrator records.
type JobObserver interface {
	JobUpdated(job *blog.Job)
}

// Orchestrator runs jobs. It is safe for concurrent use; concurrent runs of
// the same job are resolved by the store's transition guard.
type Orchestrator struct {
	store      blog.Store
	validator  Validator
	publisher  Publisher
	generators Generators
	cfg        Config
	metrics    metrics.Recorder
	observer   JobObserver
	logger     *zap.SugaredLogger
	now        func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics records stage durations and job outcomes.
func WithMetrics(r metrics.Recorder) Option {
	return func(o *Orchestrator) { o.metrics = r }
}

// WithObserver publishes job transitions (the websocket feed).
func WithObserver(obs JobObserver) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator.
func New(store blog.Store, v Validator, p Publisher, g Generators, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:      store,
		validator:  v,
		publisher:  p,
		generators: g,
		cfg:        cfg,
		metrics:    metrics.Noop{},
		logger:     logger.Logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logger.AddPublishSymbol(o.logger.Named("pipeline"))
	return o
}

// run is the state of one RunJob call.
type run struct {
	jobID   string
	topicID string
	siteID  string
	title   string
	start   time.Time
	log     *zap.SugaredLogger
}

// RunJob drives a job to a terminal state and returns the stored job.
//
// A job that is already terminal, or that another runner has claimed, is left
// untouched. Step failures are recorded on the job and are not returned: the
// error is non-nil only when the outcome could not be read or recorded.
func (o *Orchestrator) RunJob(ctx context.Context, jobID, topicID, siteID string) (*blog.Job, error) {
	ctx = logger.WithJobID(ctx, jobID)
	log := logger.FromContext(ctx, o.logger)

	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load job %s", jobID)
	}
	if job.Status.IsTerminal() {
		log.Debugw("Job already finished", logger.FieldStatus, job.Status)
		return job, nil
	}
	if topicID == "" {
		topicID = job.TopicID
	}
	if siteID == "" {
		siteID = job.SiteID
	}

	r := &run{
		jobID:   jobID,
		topicID: topicID,
		siteID:  siteID,
		start:   o.now(),
		log:     log.With(logger.FieldTopicID, topicID, logger.FieldSiteID, siteID),
	}

	if err := o.store.UpdateJobStatus(ctx, jobID, blog.JobProcessing, blog.JobPatch{StartedAt: &r.start}); err != nil {
		if errors.Is(err, blog.ErrInvalidTransition) {
			r.log.Infow("Job claimed by another runner, skipping")
			return o.store.GetJob(ctx, jobID)
		}
		return nil, errors.Wrapf(err, "failed to claim job %s", jobID)
	}
	o.notify(ctx, jobID)
	r.log.Infow("Job started", logger.FieldStatus, blog.JobProcessing)

	site, topic, err := o.load(ctx, r)
	if err != nil {
		if errors.Is(err, blog.ErrNotFound) {
			return o.fail(ctx, r, blog.KindInternal, "Site or topic not found", err)
		}
		return o.fail(ctx, r, blog.KindInternal, "Failed to load site or topic", err)
	}
	r.title = topic.Title

	// Validate
	stageStart := time.Now()
	vctx, cancel := context.WithTimeout(ctx, o.cfg.ValidateTimeout)
	err = o.validator.Validate(vctx, site)
	timedOut := vctx.Err() != nil
	cancel()
	o.metrics.ObserveStageDuration(StageValidate, time.Since(stageStart))
	if err != nil {
		return o.fail(ctx, r, blog.KindValidation, failureMessage(err, timedOut, "WordPress connection timeout"), err)
	}

	// Generate
	gen, p, err := o.generators.ForSite(site.Settings)
	if err != nil {
		return o.fail(ctx, r, blog.KindGeneration, failureMessage(err, false, ""), err)
	}
	stageStart = time.Now()
	gctx, cancel := context.WithTimeout(ctx, o.cfg.GenerateTimeout)
	result, err := gen.GenerateContent(gctx, llm.BuildPrompt(site, topic), llm.Options{
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
		Model:       site.Settings.Model,
	})
	timedOut = gctx.Err() != nil
	cancel()
	o.metrics.ObserveStageDuration(StageGenerate, time.Since(stageStart))
	if err == nil && (result == nil || result.Content == "") {
		err = errors.Wrap(llm.ErrUnparseable, "generator returned no content")
	}
	if err != nil {
		return o.fail(ctx, r, blog.KindGeneration, failureMessage(err, timedOut, "AI generation timed out"), err)
	}
	r.log.Infow("Content generated", logger.FieldProvider, p, logger.FieldModel, result.Model)

	// Save
	stageStart = time.Now()
	content := newContent(r, topic, p, result, o.now())
	if err := o.store.SaveContent(ctx, content); err != nil {
		return o.fail(ctx, r, blog.KindInternal, "Failed to save generated content", err)
	}
	o.metrics.ObserveStageDuration(StageSave, time.Since(stageStart))

	// Publish
	stageStart = time.Now()
	pctx, cancel := context.WithTimeout(ctx, o.cfg.PublishTimeout)
	published, err := o.publisher.Publish(pctx, site, wordpress.Post{
		Title:          content.Title,
		Content:        content.Body,
		Excerpt:        content.Excerpt,
		Publish:        job.ShouldPublish(site.Settings),
		Categories:     site.Settings.DefaultCategories,
		Keywords:       content.Keywords,
		SEOTitle:       content.SEOTitle,
		SEODescription: content.SEODescription,
	})
	timedOut = pctx.Err() != nil
	cancel()
	o.metrics.ObserveStageDuration(StagePublish, time.Since(stageStart))
	if err != nil {
		return o.fail(ctx, r, blog.KindPublish, failureMessage(err, timedOut, "WordPress publish timeout"), err)
	}

	return o.complete(ctx, r, content, published)
}

// load fetches the site and topic concurrently.
func (o *Orchestrator) load(ctx context.Context, r *run) (*blog.Site, *blog.Topic, error) {
	var site *blog.Site
	var topic *blog.Topic
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		site, err = o.store.GetSite(gctx, r.siteID)
		return err
	})
	g.Go(func() error {
		var err error
		topic, err = o.store.GetTopic(gctx, r.topicID, r.siteID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return site, topic, nil
}

func newContent(r *run, topic *blog.Topic, p provider.Provider, result *llm.Result, at time.Time) *blog.Content {
	title := result.Title
	if title == "" {
		title = topic.Title
	}
	keywords := result.Keywords
	if len(keywords) == 0 {
		keywords = topic.Keywords
	}
	return &blog.Content{
		ID:             blog.ContentID(r.jobID, at),
		JobID:          r.jobID,
		SiteID:         r.siteID,
		TopicID:        r.topicID,
		Title:          title,
		Body:           result.Content,
		Excerpt:        result.Excerpt,
		SEOTitle:       result.SEOTitle,
		SEODescription: result.SEODescription,
		Keywords:       keywords,
		Provider:       string(p),
		Model:          result.Model,
		CreatedAt:      at,
	}
}

// complete records success on the job, then the topic.
func (o *Orchestrator) complete(ctx context.Context, r *run, content *blog.Content, published *wordpress.PublishResult) (*blog.Job, error) {
	rctx, cancel := recordContext(ctx)
	defer cancel()

	done := o.now()
	postID := published.PostID
	err := o.store.UpdateJobStatus(rctx, r.jobID, blog.JobCompleted, blog.JobPatch{
		Title:           &r.title,
		WordPressPostID: &postID,
		PublishedURL:    &published.URL,
		ContentID:       &content.ID,
		CompletedAt:     &done,
	})
	if err != nil {
		r.log.Errorw("Post published but job completion could not be recorded",
			logger.FieldPostID, postID,
			logger.FieldURL, published.URL,
			logger.FieldError, err)
		return nil, errors.WithDetailf(
			errors.Wrapf(err, "failed to complete job %s", r.jobID),
			"wordpress_post_id: %d", postID)
	}
	o.metrics.ObserveJob(string(blog.JobCompleted), done.Sub(r.start))

	err = o.store.UpdateTopicStatus(rctx, r.topicID, r.siteID, blog.TopicPublished, blog.TopicPatch{
		PublishedAt:     &done,
		WordPressPostID: &postID,
		LastJobID:       &r.jobID,
	})
	if err != nil {
		// the post exists and the job says so; only the topic is stale
		r.log.Errorw("Job completed but topic could not be marked published, reconcile manually",
			logger.FieldPostID, postID,
			logger.FieldError, err)
	}

	r.log.Infow("Job completed",
		logger.FieldStatus, blog.JobCompleted,
		logger.FieldPostID, postID,
		logger.FieldURL, published.URL,
		logger.FieldDurationMS, done.Sub(r.start).Milliseconds())
	return o.finish(rctx, r.jobID)
}

// fail records a failed job. The topic is left unchanged.
func (o *Orchestrator) fail(ctx context.Context, r *run, kind blog.ErrorKind, msg string, cause error) (*blog.Job, error) {
	rctx, cancel := recordContext(ctx)
	defer cancel()

	failedAt := o.now()
	patch := blog.JobPatch{
		Error:    &blog.JobError{Message: msg, Kind: kind},
		FailedAt: &failedAt,
	}
	if r.title != "" {
		patch.Title = &r.title
	}
	if err := o.store.UpdateJobStatus(rctx, r.jobID, blog.JobFailed, patch); err != nil {
		return nil, errors.WithDetailf(
			errors.Wrapf(err, "failed to record failure of job %s", r.jobID),
			"cause: %v", cause)
	}
	o.metrics.IncJobFailure(string(kind))
	o.metrics.ObserveJob(string(blog.JobFailed), failedAt.Sub(r.start))

	r.log.Warnw("Job failed",
		logger.FieldErrorKind, kind,
		"message", msg,
		logger.FieldError, cause)
	return o.finish(rctx, r.jobID)
}

// finish reads back the stored job and tells the observer.
func (o *Orchestrator) finish(ctx context.Context, jobID string) (*blog.Job, error) {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read back job %s", jobID)
	}
	if o.observer != nil {
		o.observer.JobUpdated(job)
	}
	return job, nil
}

func (o *Orchestrator) notify(ctx context.Context, jobID string) {
	if o.observer == nil {
		return
	}
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		o.logger.Debugw("Could not load job for notification", logger.FieldJobID, jobID, logger.FieldError, err)
		return
	}
	o.observer.JobUpdated(job)
}

func recordContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
}

// failureMessage turns a step error into the short text stored on the job.
// Typed errors already carry a user legible message; otherwise a step whose
// context expired reports timeoutMsg.
func failureMessage(err error, timedOut bool, timeoutMsg string) string {
	var ve *wordpress.ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	var ue *llm.UpstreamError
	if errors.As(err, &ue) {
		return ue.Error()
	}
	var pe *wordpress.PublishError
	if errors.As(err, &pe) {
		return pe.Error()
	}
	if timedOut && timeoutMsg != "" {
		return timeoutMsg
	}
	return llm.Truncate(err.Error(), llm.MaxUpstreamMessage)
}
