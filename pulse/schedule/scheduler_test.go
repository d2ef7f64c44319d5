package schedule

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/autoblog/am"
	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/blog/sqlstore"
	"github.com/teranos/autoblog/errors"
	dbtest "github.com/teranos/autoblog/internal/testing"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type dispatched struct {
	JobID, TopicID, SiteID string
}

type recordingDispatcher struct {
	mu    sync.Mutex
	calls []dispatched
	err   error
}

func (d *recordingDispatcher) Dispatch(jobID, topicID, siteID string) error {
	if d.err != nil {
		return d.err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dispatched{jobID, topicID, siteID})
	return nil
}

func (d *recordingDispatcher) topics() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var ids []string
	for _, c := range d.calls {
		ids = append(ids, c.TopicID)
	}
	return ids
}

type testEnv struct {
	store      *sqlstore.Store
	runs       *RunStore
	dispatcher *recordingDispatcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := dbtest.CreateTestDB(t)
	return &testEnv{
		store:      sqlstore.New(db).WithClock(func() time.Time { return fixedNow }),
		runs:       NewRunStore(db),
		dispatcher: &recordingDispatcher{},
	}
}

func (e *testEnv) scheduler(t *testing.T, store Store, opts ...Option) *Scheduler {
	t.Helper()
	var n atomic.Int32
	opts = append([]Option{
		WithRand(seededRand()),
		WithRunStore(e.runs),
		WithIDGenerator(func() string { return fmt.Sprintf("job-%d", n.Add(1)) }),
	}, opts...)
	return NewScheduler(store, e.dispatcher, Config{Concurrency: 4}, zaptest.NewLogger(t).Sugar(), opts...)
}

func (e *testEnv) site(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, e.store.CreateSite(context.Background(), &blog.Site{
		ID:          id,
		UserID:      "user-1",
		Name:        "Site " + id,
		URL:         "https://" + id + ".example.com",
		Username:    "editor",
		AppPassword: "secret",
	}))
}

func (e *testEnv) topic(t *testing.T, id, siteID string, status blog.TopicStatus) {
	t.Helper()
	require.NoError(t, e.store.CreateTopic(context.Background(), &blog.Topic{
		ID:     id,
		SiteID: siteID,
		UserID: "user-1",
		Title:  "Topic " + id,
		Status: status,
	}))
}

func (e *testEnv) schedule(t *testing.T, id, siteID string, k int) *blog.Schedule {
	t.Helper()
	sched := &blog.Schedule{
		ID:               id,
		SiteID:           siteID,
		UserID:           "user-1",
		Frequency:        blog.Daily,
		PostsPerInterval: k,
		Enabled:          true,
		NextRunTime:      fixedNow.Add(-time.Minute),
	}
	require.NoError(t, e.store.CreateSchedule(context.Background(), sched))
	return sched
}

func TestRunDueSchedulesDispatchesFewerTopicsThanRequested(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.site(t, "site-1")
	env.topic(t, "topic-1", "site-1", blog.TopicApproved)
	env.topic(t, "topic-pending", "site-1", blog.TopicPending)
	env.schedule(t, "sched-1", "site-1", 2)

	result, err := env.scheduler(t, env.store).RunDueSchedules(ctx, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Schedules)
	assert.Equal(t, 1, result.Dispatched)
	assert.Zero(t, result.Failed)
	assert.Equal(t, []string{"topic-1"}, env.dispatcher.topics())

	out := result.Outcomes[0]
	assert.Equal(t, RunStatusCompleted, out.Status)
	assert.Equal(t, 1, out.Selected)
	require.Len(t, out.JobIDs, 1)

	job, err := env.store.GetJob(ctx, out.JobIDs[0])
	require.NoError(t, err)
	assert.Equal(t, blog.JobQueued, job.Status)
	assert.Equal(t, blog.SourceSchedule, job.Source)
	require.NotNil(t, job.AutoPublish)
	assert.True(t, *job.AutoPublish)

	topic, err := env.store.GetTopic(ctx, "topic-1", "site-1")
	require.NoError(t, err)
	assert.Equal(t, blog.TopicPublished, topic.Status)
	assert.Equal(t, job.ID, topic.LastJobID)

	sched, err := env.store.GetSchedule(ctx, "sched-1")
	require.NoError(t, err)
	assert.True(t, sched.NextRunTime.After(fixedNow))
	assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), sched.NextRunTime.Truncate(24*time.Hour))
	assert.GreaterOrEqual(t, sched.NextRunTime.Hour(), blog.DefaultStartHour)
	assert.Less(t, sched.NextRunTime.Hour(), blog.DefaultEndHour)
	require.NotNil(t, sched.LastRunTime)
	assert.Equal(t, fixedNow, *sched.LastRunTime)
	assert.Equal(t, sched.NextRunTime, out.NextRunTime)

	// the schedule is no longer due and no topic is left
	again, err := env.scheduler(t, env.store).RunDueSchedules(ctx, fixedNow)
	require.NoError(t, err)
	assert.Zero(t, again.Schedules)
	assert.Len(t, env.dispatcher.topics(), 1)
}

func TestRunDueSchedulesPicksDistinctTopics(t *testing.T) {
	env := newTestEnv(t)
	env.site(t, "site-1")
	for i := 0; i < 6; i++ {
		env.topic(t, fmt.Sprintf("topic-%d", i), "site-1", blog.TopicApproved)
	}
	env.schedule(t, "sched-1", "site-1", 3)

	result, err := env.scheduler(t, env.store).RunDueSchedules(context.Background(), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Dispatched)

	picked := env.dispatcher.topics()
	assert.Len(t, picked, 3)
	assert.ElementsMatch(t, picked, uniq(picked))

	remaining, err := env.store.ListTopics(context.Background(), "site-1", blog.TopicApproved)
	require.NoError(t, err)
	assert.Len(t, remaining, 3)
}

func TestRunDueSchedulesNothingDue(t *testing.T) {
	env := newTestEnv(t)
	env.site(t, "site-1")
	sched := env.schedule(t, "sched-1", "site-1", 1)

	result, err := env.scheduler(t, env.store).RunDueSchedules(context.Background(), sched.NextRunTime.Add(-time.Second))
	require.NoError(t, err)
	assert.Zero(t, result.Schedules)
	assert.Empty(t, result.Outcomes)
}

func TestRunDueSchedulesNoApprovedTopicsStillAdvances(t *testing.T) {
	env := newTestEnv(t)
	env.site(t, "site-1")
	env.topic(t, "topic-1", "site-1", blog.TopicRejected)
	env.schedule(t, "sched-1", "site-1", 2)

	result, err := env.scheduler(t, env.store).RunDueSchedules(context.Background(), fixedNow)
	require.NoError(t, err)
	assert.Zero(t, result.Dispatched)
	assert.Equal(t, RunStatusCompleted, result.Outcomes[0].Status)

	sched, err := env.store.GetSchedule(context.Background(), "sched-1")
	require.NoError(t, err)
	assert.True(t, sched.NextRunTime.After(fixedNow))
}

func TestRunDueSchedulesSkipsScheduleWithoutSite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.site(t, "site-1")
	env.topic(t, "topic-1", "site-1", blog.TopicApproved)
	env.schedule(t, "sched-ok", "site-1", 1)
	orphan := env.schedule(t, "sched-orphan", "site-gone", 1)

	result, err := env.scheduler(t, env.store).RunDueSchedules(ctx, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Schedules)
	assert.Equal(t, 1, result.Dispatched)
	assert.Equal(t, 1, result.Skipped)

	byID := outcomesByID(result)
	assert.Equal(t, RunStatusSkipped, byID["sched-orphan"].Status)
	assert.Equal(t, "site not found", byID["sched-orphan"].Error)
	assert.Equal(t, RunStatusCompleted, byID["sched-ok"].Status)

	// a skipped schedule is not advanced
	got, err := env.store.GetSchedule(ctx, "sched-orphan")
	require.NoError(t, err)
	assert.Equal(t, orphan.NextRunTime, got.NextRunTime)
	assert.Nil(t, got.LastRunTime)
}

// failingStore fails UpdateSchedule for one schedule.
type failingStore struct {
	*sqlstore.Store
	failID string
}

func (f *failingStore) UpdateSchedule(ctx context.Context, id string, patch blog.SchedulePatch) error {
	if id == f.failID {
		return errors.New("disk full")
	}
	return f.Store.UpdateSchedule(ctx, id, patch)
}

func TestRunDueSchedulesIsolatesFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		site := fmt.Sprintf("site-%d", i)
		env.site(t, site)
		env.topic(t, "topic-"+site, site, blog.TopicApproved)
		env.schedule(t, "sched-"+site, site, 1)
	}
	store := &failingStore{Store: env.store, failID: "sched-site-2"}

	result, err := env.scheduler(t, store).RunDueSchedules(ctx, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Schedules)
	assert.Equal(t, 2, result.Dispatched)
	assert.Equal(t, 1, result.Failed)
	assert.ElementsMatch(t, []string{"topic-site-1", "topic-site-3"}, env.dispatcher.topics())

	byID := outcomesByID(result)
	assert.Equal(t, RunStatusFailed, byID["sched-site-2"].Status)
	assert.Contains(t, byID["sched-site-2"].Error, "disk full")
	for _, id := range []string{"sched-site-1", "sched-site-3"} {
		assert.Equal(t, RunStatusCompleted, byID[id].Status, id)
		sched, err := env.store.GetSchedule(ctx, id)
		require.NoError(t, err)
		assert.True(t, sched.NextRunTime.After(fixedNow), id)
	}

	runs, err := env.runs.ListRuns(ctx, "sched-site-2", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, RunStatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].ErrorMessage, "disk full")
	assert.Nil(t, runs[0].NextRunTime)
}

// barrierStore holds every sweep after its scan until all of them have
// scanned, so the sweeps see the same due schedules.
type barrierStore struct {
	*sqlstore.Store
	scanned *sync.WaitGroup
}

func (b *barrierStore) ScanDueSchedules(ctx context.Context, now time.Time) ([]*blog.Schedule, error) {
	due, err := b.Store.ScanDueSchedules(ctx, now)
	b.scanned.Done()
	b.scanned.Wait()
	return due, err
}

func TestRunDueSchedulesOverlappingSweepsDispatchOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.site(t, "site-1")
	env.topic(t, "topic-1", "site-1", blog.TopicApproved)
	env.topic(t, "topic-2", "site-1", blog.TopicApproved)
	env.schedule(t, "sched-1", "site-1", 1)

	const sweeps = 2
	var scanned sync.WaitGroup
	scanned.Add(sweeps)
	store := &barrierStore{Store: env.store, scanned: &scanned}

	results := make([]*SweepResult, sweeps)
	var wg sync.WaitGroup
	for i := 0; i < sweeps; i++ {
		s := env.scheduler(t, store, WithIDGenerator(uuid.NewString))
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.RunDueSchedules(ctx, fixedNow)
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	assert.Len(t, env.dispatcher.topics(), 1)
	var dispatched, skipped int
	for _, res := range results {
		require.NotNil(t, res)
		require.Len(t, res.Outcomes, 1)
		dispatched += res.Dispatched
		skipped += res.Skipped
	}
	assert.Equal(t, 1, dispatched)
	assert.Equal(t, 1, skipped)

	jobs, err := env.store.ListJobs(ctx, blog.JobFilter{})
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	approved, err := env.store.ListTopics(ctx, "site-1", blog.TopicApproved)
	require.NoError(t, err)
	assert.Len(t, approved, 1)
}

func TestRunDueSchedulesDispatchFailureKeepsTopicApproved(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.site(t, "site-1")
	env.topic(t, "topic-1", "site-1", blog.TopicApproved)
	env.schedule(t, "sched-1", "site-1", 1)
	env.dispatcher.err = errors.New("queue full")

	result, err := env.scheduler(t, env.store).RunDueSchedules(ctx, fixedNow)
	require.NoError(t, err)
	assert.Zero(t, result.Dispatched)
	assert.Equal(t, RunStatusCompleted, result.Outcomes[0].Status)
	assert.Equal(t, 1, result.Outcomes[0].Selected)

	topic, err := env.store.GetTopic(ctx, "topic-1", "site-1")
	require.NoError(t, err)
	assert.Equal(t, blog.TopicApproved, topic.Status)

	// the job stays queued for recovery
	jobs, err := env.store.ListJobs(ctx, blog.JobFilter{Status: blog.JobQueued})
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestRunDueSchedulesManySchedulesConcurrently(t *testing.T) {
	env := newTestEnv(t)
	const sites = 12
	for i := 0; i < sites; i++ {
		site := fmt.Sprintf("site-%d", i)
		env.site(t, site)
		env.topic(t, "a-"+site, site, blog.TopicApproved)
		env.topic(t, "b-"+site, site, blog.TopicApproved)
		env.schedule(t, "sched-"+site, site, 2)
	}

	result, err := env.scheduler(t, env.store).RunDueSchedules(context.Background(), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, sites, result.Schedules)
	assert.Equal(t, 2*sites, result.Dispatched)

	picked := env.dispatcher.topics()
	assert.Len(t, uniq(picked), 2*sites)
}

func TestRunRecordsHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.site(t, "site-1")
	env.topic(t, "topic-1", "site-1", blog.TopicApproved)
	env.schedule(t, "sched-1", "site-1", 2)

	result, err := env.scheduler(t, env.store).RunDueSchedules(ctx, fixedNow)
	require.NoError(t, err)

	runs, err := env.runs.ListRuns(ctx, "sched-1", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	run := runs[0]
	assert.Equal(t, RunStatusCompleted, run.Status)
	assert.Equal(t, "site-1", run.SiteID)
	assert.Equal(t, 1, run.TopicsSelected)
	assert.Equal(t, 1, run.JobsDispatched)
	require.NotNil(t, run.NextRunTime)
	assert.Equal(t, result.Outcomes[0].NextRunTime, *run.NextRunTime)
	assert.NotNil(t, run.CompletedAt)
	assert.Empty(t, run.ErrorMessage)
}

func TestFinishRunUnknownRun(t *testing.T) {
	env := newTestEnv(t)
	err := env.runs.FinishRun(context.Background(), &Run{ID: "missing", Status: RunStatusCompleted})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule run not found")
}

func TestNextDue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.scheduler(t, env.store)

	next, err := s.nextDue(ctx)
	require.NoError(t, err)
	assert.Nil(t, next)

	env.site(t, "site-1")
	env.schedule(t, "sched-late", "site-1", 1)
	early := &blog.Schedule{
		ID: "sched-early", SiteID: "site-1", Frequency: blog.Weekly,
		PostsPerInterval: 1, Enabled: true, NextRunTime: fixedNow.Add(-time.Hour),
	}
	require.NoError(t, env.store.CreateSchedule(ctx, early))
	disabled := &blog.Schedule{
		ID: "sched-off", SiteID: "site-1", Frequency: blog.Weekly,
		PostsPerInterval: 1, NextRunTime: fixedNow.Add(-48 * time.Hour),
	}
	require.NoError(t, env.store.CreateSchedule(ctx, disabled))

	next, err = s.nextDue(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "sched-early", next.scheduleID)
}

func TestTickerTick(t *testing.T) {
	env := newTestEnv(t)
	env.site(t, "site-1")
	env.topic(t, "topic-1", "site-1", blog.TopicApproved)
	env.schedule(t, "sched-1", "site-1", 1)

	ticker := NewTicker(context.Background(), env.scheduler(t, env.store), time.Hour, zaptest.NewLogger(t).Sugar())
	ticker.now = func() time.Time { return fixedNow }

	ticker.Tick()

	stats := ticker.Stats()
	assert.Equal(t, int64(1), stats["ticks_since_start"])
	assert.Equal(t, fixedNow, stats["last_tick_at"])
	assert.Equal(t, map[string]int{"schedules": 1, "dispatched": 1, "failed": 0, "skipped": 0}, stats["last_sweep"])
	assert.Equal(t, []string{"topic-1"}, env.dispatcher.topics())
}

func TestTickerStartStop(t *testing.T) {
	env := newTestEnv(t)
	env.site(t, "site-1")
	env.topic(t, "topic-1", "site-1", blog.TopicApproved)
	env.schedule(t, "sched-1", "site-1", 1)

	ticker := NewTicker(context.Background(), env.scheduler(t, env.store), 10*time.Millisecond, zaptest.NewLogger(t).Sugar())
	ticker.now = func() time.Time { return fixedNow }
	ticker.Start()

	require.Eventually(t, func() bool {
		return len(env.dispatcher.topics()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	ticker.Stop()

	ticks := ticker.Stats()["ticks_since_start"].(int64)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, ticks, ticker.Stats()["ticks_since_start"], "no ticks after Stop")
}

func TestConfigFrom(t *testing.T) {
	assert.Equal(t, DefaultConfig(), ConfigFrom(nil))

	cfg := &am.Config{}
	cfg.Pulse.SweepConcurrency = 3
	cfg.Pulse.TickerIntervalSeconds = 0
	got := ConfigFrom(cfg)
	assert.Equal(t, 3, got.Concurrency)
	assert.Zero(t, got.TickerInterval)

	cfg.Pulse.TickerIntervalSeconds = 30
	assert.Equal(t, 30*time.Second, ConfigFrom(cfg).TickerInterval)
}

func outcomesByID(r *SweepResult) map[string]Outcome {
	m := make(map[string]Outcome, len(r.Outcomes))
	for _, o := range r.Outcomes {
		m[o.ScheduleID] = o
	}
	return m
}

func uniq(ids []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
