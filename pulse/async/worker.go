package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/teranos/autoblog/am"
	"github.com/teranos/autoblog/errors"
	"github.com/teranos/autoblog/logger"
	"github.com/teranos/autoblog/metrics"
	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned by Submit when every buffered slot is taken.
	ErrQueueFull = errors.New("task queue is full")

	// ErrPoolStopped is returned by Submit after Stop.
	ErrPoolStopped = errors.New("worker pool is stopped")
)

// StopTimeout bounds how long Stop waits for in-flight tasks.
const StopTimeout = 30 * time.Second

// pulseLogger wraps zap.SugaredLogger with special methods for Pulse operations
// Uses different log levels to create visual distinction:
// - DEBUG level → STARTING (✿ Opening operations)
// - WARN level → CLOSING (❀ Closing operations)
// - INFO level → PULSE (general worker operations)
type pulseLogger struct {
	*zap.SugaredLogger
}

// Starting logs an Opening (✿) event
func (l pulseLogger) Starting(msg string, keysAndValues ...interface{}) {
	logger.AddPulseOpenSymbol(l.SugaredLogger).Debugw(msg, keysAndValues...)
}

// Closing logs a Closing (❀) event
func (l pulseLogger) Closing(msg string, keysAndValues ...interface{}) {
	logger.AddPulseCloseSymbol(l.SugaredLogger).Warnw(msg, keysAndValues...)
}

// Pulse logs general worker operations
func (l pulseLogger) Pulse(msg string, keysAndValues ...interface{}) {
	logger.AddPulseSymbol(l.SugaredLogger).Infow(msg, keysAndValues...)
}

// WorkerPoolConfig contains configuration for the worker pool
type WorkerPoolConfig struct {
	Workers     int           `json:"workers"`      // Number of concurrent workers
	QueueSize   int           `json:"queue_size"`   // Buffered task slots
	TaskTimeout time.Duration `json:"task_timeout"` // Ceiling for a single task
}

// DefaultWorkerPoolConfig returns sensible defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		Workers:     2,
		QueueSize:   256,
		TaskTimeout: 10 * time.Minute,
	}
}

// WorkerPoolConfigFrom derives the pool configuration from am.Config,
// falling back to defaults for unset values.
func WorkerPoolConfigFrom(cfg *am.Config) WorkerPoolConfig {
	pc := DefaultWorkerPoolConfig()
	if cfg == nil {
		return pc
	}
	if cfg.Pulse.Workers > 0 {
		pc.Workers = cfg.Pulse.Workers
	}
	if cfg.Pulse.QueueSize > 0 {
		pc.QueueSize = cfg.Pulse.QueueSize
	}
	if cfg.Pulse.JobTimeoutSeconds > 0 {
		pc.TaskTimeout = time.Duration(cfg.Pulse.JobTimeoutSeconds) * time.Second
	}
	return pc
}

// WorkerPool runs tasks from a bounded in-process queue on N workers.
// Submitting never blocks: the caller hands the task over and moves on.
type WorkerPool struct {
	registry *HandlerRegistry
	config   WorkerPoolConfig
	tasks    chan *Task
	quit     chan struct{}
	runCtx   context.Context // parent of every task context, detached from callers
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	metrics  metrics.Recorder
	logger   pulseLogger

	mu       sync.Mutex
	started  bool
	stopped  bool
	active   int
	executed int
}

// NewWorkerPool creates a pool with an empty handler registry.
// Callers must register handlers before calling Start().
func NewWorkerPool(cfg WorkerPoolConfig, rec metrics.Recorder, log *zap.SugaredLogger) *WorkerPool {
	return NewWorkerPoolWithRegistry(cfg, NewHandlerRegistry(), rec, log)
}

// NewWorkerPoolWithRegistry creates a pool that routes through registry.
func NewWorkerPoolWithRegistry(cfg WorkerPoolConfig, registry *HandlerRegistry, rec metrics.Recorder, log *zap.SugaredLogger) *WorkerPool {
	defaults := DefaultWorkerPoolConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = defaults.TaskTimeout
	}
	if rec == nil {
		rec = metrics.Noop{}
	}
	if log == nil {
		log = logger.Logger
	}

	runCtx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		registry: registry,
		config:   cfg,
		tasks:    make(chan *Task, cfg.QueueSize),
		quit:     make(chan struct{}),
		runCtx:   runCtx,
		cancel:   cancel,
		metrics:  rec,
		logger:   pulseLogger{log.Named("pulse.async")},
	}
}

// Registry returns the handler registry for registering task handlers.
func (wp *WorkerPool) Registry() *HandlerRegistry {
	return wp.registry
}

// Workers returns the number of concurrent workers configured for this pool
func (wp *WorkerPool) Workers() int {
	return wp.config.Workers
}

// Start launches the workers. Calling Start twice is a no-op.
func (wp *WorkerPool) Start() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.started || wp.stopped {
		return
	}
	wp.started = true

	wp.logger.Starting("Worker pool starting",
		"workers", wp.config.Workers,
		"queue_size", wp.config.QueueSize,
		"handlers", wp.registry.Names())

	for i := 0; i < wp.config.Workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Submit enqueues a task without waiting for it to run.
func (wp *WorkerPool) Submit(task *Task) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.stopped {
		wp.metrics.IncDispatch("rejected")
		return errors.Wrapf(ErrPoolStopped, "cannot submit task %s", task.ID)
	}
	if !wp.registry.Has(task.HandlerName) {
		wp.metrics.IncDispatch("rejected")
		return errors.Newf("no handler registered for handler name: %s", task.HandlerName)
	}

	select {
	case wp.tasks <- task:
		wp.metrics.IncDispatch("queued")
		wp.metrics.SetQueueDepth(len(wp.tasks))
		return nil
	default:
		wp.metrics.IncDispatch("rejected")
		return errors.WithDetailf(
			errors.Wrapf(ErrQueueFull, "cannot submit task %s", task.ID),
			"capacity: %d", cap(wp.tasks))
	}
}

// Dispatch hands a publishing job to the pool. It returns once the task is
// queued; the job outcome is recorded by the handler, never returned here.
func (wp *WorkerPool) Dispatch(jobID, topicID, siteID string) error {
	task, err := NewTask(HandlerBlogPublish, PublishPayload{JobID: jobID, TopicID: topicID, SiteID: siteID})
	if err != nil {
		return err
	}
	if err := wp.Submit(task); err != nil {
		return errors.WithDetailf(err, "job_id: %s", jobID)
	}
	wp.logger.Debugw("Job dispatched",
		logger.FieldJobID, jobID,
		logger.FieldTopicID, topicID,
		logger.FieldSiteID, siteID)
	return nil
}

// Pending returns the number of queued tasks not yet picked up.
func (wp *WorkerPool) Pending() int {
	return len(wp.tasks)
}

// Active returns the number of tasks currently executing.
func (wp *WorkerPool) Active() int {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.active
}

// Executed returns the number of tasks run since start.
func (wp *WorkerPool) Executed() int {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.executed
}

// Stop refuses new tasks, lets in-flight tasks finish and returns within
// StopTimeout. Tasks still queued are dropped; their jobs stay queued in the
// store and are re-dispatched by orphan recovery on the next start.
// ❀ Closing: tasks still running after the ceiling are cancelled.
func (wp *WorkerPool) Stop() {
	wp.stopWithin(StopTimeout)
}

func (wp *WorkerPool) stopWithin(timeout time.Duration) {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.quit)
	wp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.logger.Pulse("Worker pool stopped, all workers exited cleanly", "dropped", len(wp.tasks))
	case <-time.After(timeout):
		wp.logger.Closing("Worker pool stop timed out, cancelling running tasks", "timeout", timeout)
	}
	wp.cancel()
}

// worker processes tasks until the pool stops
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	for {
		// quit wins over pending tasks
		select {
		case <-wp.quit:
			return
		default:
		}

		select {
		case <-wp.quit:
			return
		case task := <-wp.tasks:
			wp.metrics.SetQueueDepth(len(wp.tasks))
			wp.run(id, task)
		}
	}
}

// run executes a single task under its own timeout, recovering panics so one
// bad task never takes a worker down.
func (wp *WorkerPool) run(workerID int, task *Task) {
	wp.mu.Lock()
	wp.active++
	wp.mu.Unlock()

	ctx, cancel := context.WithTimeout(wp.runCtx, wp.config.TaskTimeout)
	start := time.Now()
	defer func() {
		cancel()
		if r := recover(); r != nil {
			wp.logger.Errorw("Task panicked",
				"worker_id", workerID,
				"task_id", task.ID,
				"handler", task.HandlerName,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
		wp.mu.Lock()
		wp.active--
		wp.executed++
		wp.mu.Unlock()
	}()

	if err := wp.registry.Execute(ctx, task); err != nil {
		wp.logger.Errorw("Task failed",
			"worker_id", workerID,
			"task_id", task.ID,
			"handler", task.HandlerName,
			logger.FieldDurationMS, time.Since(start).Milliseconds(),
			logger.FieldError, err)
		return
	}
	wp.logger.Debugw("Task finished",
		"worker_id", workerID,
		"task_id", task.ID,
		"handler", task.HandlerName,
		logger.FieldDurationMS, time.Since(start).Milliseconds())
}
