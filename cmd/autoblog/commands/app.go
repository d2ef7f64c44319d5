package commands

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/teranos/autoblog/ai/provider"
	"github.com/teranos/autoblog/ai/tracker"
	"github.com/teranos/autoblog/am"
	"github.com/teranos/autoblog/blog/sqlstore"
	"github.com/teranos/autoblog/errors"
	"github.com/teranos/autoblog/logger"
	"github.com/teranos/autoblog/metrics"
	"github.com/teranos/autoblog/pipeline"
	"github.com/teranos/autoblog/pulse/async"
	"github.com/teranos/autoblog/pulse/schedule"
	"github.com/teranos/autoblog/server"
	"github.com/teranos/autoblog/wordpress"
)

// DBPath overrides database.path when set (--db)
var DBPath string

// Verbosity is the -v count
var Verbosity int

// app holds every wired component. Commands build one, use what they need and
// close it.
type app struct {
	cfg       *am.Config
	db        *sql.DB
	store     *sqlstore.Store
	registry  *prometheus.Registry
	recorder  *metrics.PrometheusRecorder
	usage     *tracker.UsageTracker
	wordpress *wordpress.Client
	hub       *server.Hub
	orch      *pipeline.Orchestrator
	pool      *async.WorkerPool
	trigger   *pipeline.Trigger
	runs      *schedule.RunStore
	scheduler *schedule.Scheduler
	logger    *zap.SugaredLogger
}

func newApp() (*app, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	database, err := openDatabase(cfg, "")
	if err != nil {
		return nil, err
	}

	log := logger.Logger
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewPrometheusRecorder(reg)

	a := &app{
		cfg:      cfg,
		db:       database,
		store:    sqlstore.New(database),
		registry: reg,
		recorder: rec,
		usage:    tracker.NewUsageTracker(database, Verbosity),
		runs:     schedule.NewRunStore(database),
		logger:   log,
	}

	pcfg := pipeline.ConfigFrom(cfg)
	a.wordpress = wordpress.NewClient(wordpress.Config{
		Timeout:        pcfg.PublishTimeout,
		BlockPrivateIP: cfg.HTTP.BlockPrivateIPs,
		Logger:         log,
	})
	a.hub = server.NewHub(log)
	factory := provider.NewFactory(cfg,
		provider.WithUsageTracker(a.usage),
		provider.WithRecorder(rec),
		provider.WithLogger(log))

	a.orch = pipeline.New(a.store, a.wordpress, a.wordpress, factory, pcfg,
		pipeline.WithMetrics(rec),
		pipeline.WithObserver(a.hub),
		pipeline.WithLogger(log))

	a.pool = async.NewWorkerPool(async.WorkerPoolConfigFrom(cfg), rec, log)
	a.pool.Registry().Register(pipeline.NewPublishHandler(a.orch))

	a.trigger = pipeline.NewTrigger(a.store, a.pool, log)
	a.scheduler = schedule.NewScheduler(a.store, a.pool, schedule.ConfigFrom(cfg), log,
		schedule.WithRunStore(a.runs),
		schedule.WithMetrics(rec))
	return a, nil
}

// start starts the workers
func (a *app) start() {
	a.pool.Start()
}

// recoverOrphans re-dispatches queued jobs and fails abandoned processing
// jobs. Only serve runs it: a one-shot command sharing the database with a
// running server must not touch that server's jobs.
func (a *app) recoverOrphans(ctx context.Context) error {
	if _, err := a.orch.RecoverOrphans(ctx, a.pool); err != nil {
		return errors.Wrap(err, "failed to recover orphaned jobs")
	}
	return nil
}

// drain waits until the pool has no queued or running task.
func (a *app) drain(ctx context.Context) error {
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	for {
		if a.pool.Pending() == 0 && a.pool.Active() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "%d tasks still pending", a.pool.Pending()+a.pool.Active())
		case <-tick.C:
		}
	}
}

func (a *app) close() {
	a.pool.Stop()
	if err := a.db.Close(); err != nil {
		a.logger.Warnw("Failed to close database", logger.FieldError, err)
	}
}

// openStore is the lighter path for read-only commands.
func openStore() (*am.Config, *sql.DB, *sqlstore.Store, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "failed to load config")
	}
	database, err := openDatabase(cfg, "")
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, database, sqlstore.New(database), nil
}
