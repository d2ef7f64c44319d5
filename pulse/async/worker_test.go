package async

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/autoblog/errors"
	"go.uber.org/zap/zaptest"
)

func newTestPool(t *testing.T, cfg WorkerPoolConfig) *WorkerPool {
	t.Helper()
	pool := NewWorkerPool(cfg, nil, zaptest.NewLogger(t).Sugar())
	t.Cleanup(func() { pool.stopWithin(time.Second) })
	return pool
}

func TestHandlerRegistry(t *testing.T) {
	r := NewHandlerRegistry()
	assert.Empty(t, r.Names())

	r.Register(HandlerFunc{HandlerName: "b", Fn: func(context.Context, *Task) error { return nil }})
	r.Register(HandlerFunc{HandlerName: "a", Fn: func(context.Context, *Task) error { return errors.New("boom") }})

	assert.True(t, r.Has("a"))
	assert.False(t, r.Has("c"))
	assert.Equal(t, []string{"a", "b"}, r.Names())

	assert.Panics(t, func() {
		r.Register(HandlerFunc{HandlerName: "a"})
	})

	err := r.Execute(context.Background(), &Task{ID: "t1", HandlerName: "a"})
	assert.EqualError(t, err, "boom")

	err = r.Execute(context.Background(), &Task{ID: "t2", HandlerName: "missing"})
	assert.ErrorContains(t, err, "no handler registered")

	err = r.Execute(context.Background(), &Task{ID: "t3"})
	assert.ErrorContains(t, err, "missing handler_name")
}

func TestDispatchRunsPublishHandler(t *testing.T) {
	pool := newTestPool(t, WorkerPoolConfig{Workers: 2, QueueSize: 4})

	got := make(chan PublishPayload, 1)
	pool.Registry().Register(HandlerFunc{HandlerName: HandlerBlogPublish, Fn: func(ctx context.Context, task *Task) error {
		p, err := DecodePublishPayload(task)
		if err != nil {
			return err
		}
		got <- p
		return nil
	}})
	pool.Start()

	require.NoError(t, pool.Dispatch("job-1", "topic-1", "site-1"))

	select {
	case p := <-got:
		assert.Equal(t, PublishPayload{JobID: "job-1", TopicID: "topic-1", SiteID: "site-1"}, p)
	case <-time.After(5 * time.Second):
		t.Fatal("task never ran")
	}
}

func TestDispatchDoesNotWait(t *testing.T) {
	pool := newTestPool(t, WorkerPoolConfig{Workers: 1, QueueSize: 4})

	release := make(chan struct{})
	pool.Registry().Register(HandlerFunc{HandlerName: HandlerBlogPublish, Fn: func(ctx context.Context, task *Task) error {
		<-release
		return nil
	}})
	pool.Start()
	defer close(release)

	done := make(chan error, 1)
	go func() { done <- pool.Dispatch("job-1", "topic-1", "site-1") }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on the running task")
	}
}

func TestSubmitQueueFull(t *testing.T) {
	pool := newTestPool(t, WorkerPoolConfig{Workers: 1, QueueSize: 1})
	pool.Registry().Register(HandlerFunc{HandlerName: "noop", Fn: func(context.Context, *Task) error { return nil }})
	// not started, so nothing drains the queue

	require.NoError(t, pool.Submit(&Task{ID: "t1", HandlerName: "noop"}))
	err := pool.Submit(&Task{ID: "t2", HandlerName: "noop"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrQueueFull))
	assert.Equal(t, 1, pool.Pending())
}

func TestSubmitUnknownHandler(t *testing.T) {
	pool := newTestPool(t, WorkerPoolConfig{Workers: 1, QueueSize: 1})
	err := pool.Submit(&Task{ID: "t1", HandlerName: "nobody"})
	assert.ErrorContains(t, err, "no handler registered")
	assert.Zero(t, pool.Pending())
}

func TestSubmitAfterStop(t *testing.T) {
	pool := newTestPool(t, WorkerPoolConfig{Workers: 1, QueueSize: 1})
	pool.Registry().Register(HandlerFunc{HandlerName: "noop", Fn: func(context.Context, *Task) error { return nil }})
	pool.Start()
	pool.stopWithin(time.Second)

	err := pool.Submit(&Task{ID: "t1", HandlerName: "noop"})
	assert.True(t, errors.Is(err, ErrPoolStopped))

	// second stop is a no-op
	pool.stopWithin(time.Second)
}

func TestPanicDoesNotKillWorker(t *testing.T) {
	pool := newTestPool(t, WorkerPoolConfig{Workers: 1, QueueSize: 4})

	var ran atomic.Int32
	done := make(chan struct{})
	pool.Registry().Register(HandlerFunc{HandlerName: "panics", Fn: func(context.Context, *Task) error {
		panic("handler exploded")
	}})
	pool.Registry().Register(HandlerFunc{HandlerName: "ok", Fn: func(context.Context, *Task) error {
		ran.Add(1)
		close(done)
		return nil
	}})
	pool.Start()

	require.NoError(t, pool.Submit(&Task{ID: "t1", HandlerName: "panics"}))
	require.NoError(t, pool.Submit(&Task{ID: "t2", HandlerName: "ok"}))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not survive the panic")
	}
	assert.Equal(t, int32(1), ran.Load())
}

func TestTaskTimeout(t *testing.T) {
	pool := newTestPool(t, WorkerPoolConfig{Workers: 1, QueueSize: 1, TaskTimeout: 20 * time.Millisecond})

	errCh := make(chan error, 1)
	pool.Registry().Register(HandlerFunc{HandlerName: "slow", Fn: func(ctx context.Context, _ *Task) error {
		<-ctx.Done()
		errCh <- ctx.Err()
		return ctx.Err()
	}})
	pool.Start()
	require.NoError(t, pool.Submit(&Task{ID: "t1", HandlerName: "slow"}))

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("task context never expired")
	}
}

func TestStopWaitsForRunningTask(t *testing.T) {
	pool := newTestPool(t, WorkerPoolConfig{Workers: 1, QueueSize: 1})

	started := make(chan struct{})
	var finished atomic.Bool
	pool.Registry().Register(HandlerFunc{HandlerName: "work", Fn: func(ctx context.Context, _ *Task) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return nil
	}})
	pool.Start()
	require.NoError(t, pool.Submit(&Task{ID: "t1", HandlerName: "work"}))
	<-started

	pool.stopWithin(5 * time.Second)
	assert.True(t, finished.Load())
	assert.Equal(t, 1, pool.Executed())
}

func TestStopCancelsAfterCeiling(t *testing.T) {
	pool := newTestPool(t, WorkerPoolConfig{Workers: 1, QueueSize: 1})

	started := make(chan struct{})
	cancelled := make(chan struct{})
	pool.Registry().Register(HandlerFunc{HandlerName: "stuck", Fn: func(ctx context.Context, _ *Task) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}})
	pool.Start()
	require.NoError(t, pool.Submit(&Task{ID: "t1", HandlerName: "stuck"}))
	<-started

	pool.stopWithin(20 * time.Millisecond)
	select {
	case <-cancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("running task was not cancelled after the stop ceiling")
	}
}

func TestWorkerPoolConfigFrom(t *testing.T) {
	assert.Equal(t, DefaultWorkerPoolConfig(), WorkerPoolConfigFrom(nil))
}

func TestDecodePublishPayload(t *testing.T) {
	task, err := NewTask(HandlerBlogPublish, PublishPayload{JobID: "j", TopicID: "t", SiteID: "s"})
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)

	p, err := DecodePublishPayload(task)
	require.NoError(t, err)
	assert.Equal(t, "j", p.JobID)

	_, err = DecodePublishPayload(&Task{ID: "x", HandlerName: HandlerBlogPublish, Payload: []byte(`{}`)})
	assert.ErrorContains(t, err, "no job_id")

	_, err = DecodePublishPayload(&Task{ID: "y", HandlerName: HandlerBlogPublish, Payload: []byte(`nope`)})
	assert.Error(t, err)
}
