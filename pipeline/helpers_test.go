package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/autoblog/ai/llm"
	"github.com/teranos/autoblog/ai/provider"
	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/blog/sqlstore"
	dbtest "github.com/teranos/autoblog/internal/testing"
	"github.com/teranos/autoblog/wordpress"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// fakeWordPress serves the REST endpoints a job touches.
type fakeWordPress struct {
	validateStatus int
	publishStatus  int
	publishBody    string

	mu        sync.Mutex
	published []map[string]interface{}
}

func (f *fakeWordPress) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/wp-json/wp/v2/posts" && r.Method == http.MethodGet:
		w.WriteHeader(f.validateStatus)
		_, _ = w.Write([]byte(`[]`))
	case r.URL.Path == "/wp-json/wp/v2/posts" && r.Method == http.MethodPost:
		var payload map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		f.mu.Lock()
		f.published = append(f.published, payload)
		f.mu.Unlock()
		w.WriteHeader(f.publishStatus)
		_, _ = w.Write([]byte(f.publishBody))
	case r.URL.Path == "/wp-json/wp/v2/tags" && r.Method == http.MethodGet:
		_, _ = w.Write([]byte(`[]`))
	case r.URL.Path == "/wp-json/wp/v2/tags" && r.Method == http.MethodPost:
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 5, "name": "tag"}`))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeWordPress) publishCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func newFakeWordPress() *fakeWordPress {
	return &fakeWordPress{
		validateStatus: http.StatusOK,
		publishStatus:  http.StatusCreated,
		publishBody:    `{"id": 42, "link": "https://blog.example.com/?p=42"}`,
	}
}

// countingGenerators resolves every site to one generator and counts calls.
type countingGenerators struct {
	gen   llm.Generator
	err   error
	calls atomic.Int32
}

func (g *countingGenerators) ForSite(settings blog.SiteSettings) (llm.Generator, provider.Provider, error) {
	if g.err != nil {
		return nil, "", g.err
	}
	return llm.GeneratorFunc(func(ctx context.Context, prompt string, opts llm.Options) (*llm.Result, error) {
		g.calls.Add(1)
		return g.gen.GenerateContent(ctx, prompt, opts)
	}), provider.ProviderOpenAI, nil
}

func staticGenerator(result *llm.Result) llm.Generator {
	return llm.GeneratorFunc(func(ctx context.Context, prompt string, opts llm.Options) (*llm.Result, error) {
		return result, nil
	})
}

func goodResult() *llm.Result {
	return &llm.Result{
		Title:          "Ten Go Tips",
		Content:        "<p>Use interfaces.</p>",
		Excerpt:        "Tips",
		SEOTitle:       "Go Tips",
		SEODescription: "Ten tips for Go",
		Keywords:       []string{"go"},
		Model:          "gpt-4o",
	}
}

// recordingObserver collects job transitions.
type recordingObserver struct {
	mu       sync.Mutex
	statuses []blog.JobStatus
}

func (r *recordingObserver) JobUpdated(job *blog.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, job.Status)
}

// recordingDispatcher records dispatched job ids.
type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []string
	err  error
}

func (d *recordingDispatcher) Dispatch(jobID, topicID, siteID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, jobID)
	return nil
}

type testEnv struct {
	store      *sqlstore.Store
	wp         *fakeWordPress
	wpClient   *wordpress.Client
	generators *countingGenerators
	observer   *recordingObserver
	site       *blog.Site
	topic      *blog.Topic
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := sqlstore.New(dbtest.CreateTestDB(t)).WithClock(func() time.Time { return fixedNow })

	wp := newFakeWordPress()
	srv := httptest.NewServer(wp)
	t.Cleanup(srv.Close)

	client := wordpress.NewClient(wordpress.Config{Logger: zaptest.NewLogger(t).Sugar()})
	client.SetHTTPClient(srv.Client())

	site := &blog.Site{
		ID:          "site-1",
		UserID:      "user-1",
		Name:        "Example Blog",
		URL:         srv.URL,
		Username:    "editor",
		AppPassword: "abcd efgh",
		Settings:    blog.SiteSettings{AutoPublish: true, DefaultCategories: []int{3}},
	}
	require.NoError(t, store.CreateSite(context.Background(), site))

	topic := &blog.Topic{
		ID:       "topic-1",
		SiteID:   "site-1",
		UserID:   "user-1",
		Title:    "Go tips",
		Keywords: []string{"go"},
		Status:   blog.TopicApproved,
	}
	require.NoError(t, store.CreateTopic(context.Background(), topic))

	return &testEnv{
		store:      store,
		wp:         wp,
		wpClient:   client,
		generators: &countingGenerators{gen: staticGenerator(goodResult())},
		observer:   &recordingObserver{},
		site:       site,
		topic:      topic,
	}
}

func (e *testEnv) orchestrator(t *testing.T, cfg Config) *Orchestrator {
	return New(e.store, e.wpClient, e.wpClient, e.generators, cfg,
		WithLogger(zaptest.NewLogger(t).Sugar()),
		WithObserver(e.observer),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func (e *testEnv) queueJob(t *testing.T, id string) *blog.Job {
	t.Helper()
	job := blog.NewJob(id, e.topic.ID, e.site.ID, "user-1", blog.SourceOnDemand, fixedNow)
	require.NoError(t, e.store.CreateJob(context.Background(), job))
	return job
}
