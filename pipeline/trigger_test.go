package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/errors"
	"github.com/teranos/autoblog/pulse/async"
)

func newTestTrigger(t *testing.T, env *testEnv, d Dispatcher) *Trigger {
	tr := NewTrigger(env.store, d, zaptest.NewLogger(t).Sugar())
	tr.now = func() time.Time { return fixedNow }
	tr.newID = func() string { return "job-now" }
	return tr
}

func TestPublishNowQueuesAndDispatches(t *testing.T) {
	env := newTestEnv(t)
	d := &recordingDispatcher{}

	job, err := newTestTrigger(t, env, d).PublishNow(context.Background(), "site-1", "topic-1", "")
	require.NoError(t, err)

	assert.Equal(t, "job-now", job.ID)
	assert.Equal(t, blog.JobQueued, job.Status)
	assert.Equal(t, blog.SourceOnDemand, job.Source)
	assert.Equal(t, "user-1", job.UserID)
	assert.Equal(t, []string{"job-now"}, d.jobs)

	stored, err := env.store.GetJob(context.Background(), "job-now")
	require.NoError(t, err)
	assert.Equal(t, blog.JobQueued, stored.Status)
}

func TestPublishNowRejectsIneligibleTopic(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.CreateTopic(context.Background(), &blog.Topic{
		ID: "topic-2", SiteID: "site-1", UserID: "user-1", Title: "Draft idea", Status: blog.TopicPending,
	}))
	d := &recordingDispatcher{}

	_, err := newTestTrigger(t, env, d).PublishNow(context.Background(), "site-1", "topic-2", "user-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTopicNotApproved))
	assert.Empty(t, d.jobs)

	_, err = env.store.GetJob(context.Background(), "job-now")
	assert.True(t, errors.Is(err, blog.ErrNotFound))
}

func TestPublishNowUnknownSiteOrTopic(t *testing.T) {
	env := newTestEnv(t)
	tr := newTestTrigger(t, env, &recordingDispatcher{})

	_, err := tr.PublishNow(context.Background(), "site-x", "topic-1", "")
	assert.True(t, errors.Is(err, blog.ErrNotFound))

	_, err = tr.PublishNow(context.Background(), "site-1", "topic-x", "")
	assert.True(t, errors.Is(err, blog.ErrNotFound))

	_, err = tr.PublishNow(context.Background(), "", "topic-1", "")
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestPublishNowDispatchFailureLeavesJobQueued(t *testing.T) {
	env := newTestEnv(t)
	d := &recordingDispatcher{err: async.ErrQueueFull}

	job, err := newTestTrigger(t, env, d).PublishNow(context.Background(), "site-1", "topic-1", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, async.ErrQueueFull))
	require.NotNil(t, job)

	stored, err := env.store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, blog.JobQueued, stored.Status)
}

func TestPublishHandlerRunsJob(t *testing.T) {
	env := newTestEnv(t)
	env.queueJob(t, "job-1")
	h := NewPublishHandler(env.orchestrator(t, DefaultConfig()))
	assert.Equal(t, async.HandlerBlogPublish, h.Name())

	task, err := async.NewTask(async.HandlerBlogPublish, async.PublishPayload{JobID: "job-1", TopicID: "topic-1", SiteID: "site-1"})
	require.NoError(t, err)
	require.NoError(t, h.Execute(context.Background(), task))

	job, err := env.store.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, blog.JobCompleted, job.Status)
}

func TestPublishNowThroughWorkerPool(t *testing.T) {
	env := newTestEnv(t)
	pool := async.NewWorkerPool(async.WorkerPoolConfig{Workers: 1, QueueSize: 4}, nil, zaptest.NewLogger(t).Sugar())
	pool.Registry().Register(NewPublishHandler(env.orchestrator(t, DefaultConfig())))
	pool.Start()
	defer pool.Stop()

	job, err := newTestTrigger(t, env, pool).PublishNow(context.Background(), "site-1", "topic-1", "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := env.store.GetJob(context.Background(), job.ID)
		return err == nil && got.Status == blog.JobCompleted
	}, 5*time.Second, 10*time.Millisecond)
}
