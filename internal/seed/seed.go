// Package seed loads sites, topics and schedules from a YAML or TOML file
// into the store. Records whose id already exists are left untouched, so a
// seed file can be applied repeatedly.
package seed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/errors"
	"github.com/teranos/autoblog/logger"
	"github.com/teranos/autoblog/pulse/schedule"
)

// File is the on-disk seed layout.
type File struct {
	Sites     []Site     `yaml:"sites" toml:"sites"`
	Topics    []Topic    `yaml:"topics" toml:"topics"`
	Schedules []Schedule `yaml:"schedules" toml:"schedules"`
}

// Site is a seeded WordPress target.
type Site struct {
	ID          string            `yaml:"id" toml:"id"`
	UserID      string            `yaml:"user_id" toml:"user_id"`
	Name        string            `yaml:"name" toml:"name"`
	URL         string            `yaml:"url" toml:"url"`
	Username    string            `yaml:"username" toml:"username"`
	AppPassword string            `yaml:"app_password" toml:"app_password"`
	Settings    blog.SiteSettings `yaml:"settings" toml:"settings"`
}

// Topic is a seeded topic. Status defaults to pending.
type Topic struct {
	ID          string   `yaml:"id" toml:"id"`
	SiteID      string   `yaml:"site_id" toml:"site_id"`
	UserID      string   `yaml:"user_id" toml:"user_id"`
	Title       string   `yaml:"title" toml:"title"`
	Description string   `yaml:"description" toml:"description"`
	Keywords    []string `yaml:"keywords" toml:"keywords"`
	Priority    int      `yaml:"priority" toml:"priority"`
	Status      string   `yaml:"status" toml:"status"`
}

// TimeRange is a "HH:MM" window.
type TimeRange struct {
	Start string `yaml:"start" toml:"start"`
	End   string `yaml:"end" toml:"end"`
}

// Schedule is a seeded schedule. When NextRun is empty the first run is
// computed from the schedule itself.
type Schedule struct {
	ID               string      `yaml:"id" toml:"id"`
	SiteID           string      `yaml:"site_id" toml:"site_id"`
	UserID           string      `yaml:"user_id" toml:"user_id"`
	Frequency        string      `yaml:"frequency" toml:"frequency"`
	PostsPerInterval int         `yaml:"posts_per_interval" toml:"posts_per_interval"`
	Enabled          *bool       `yaml:"enabled" toml:"enabled"`
	Timezone         string      `yaml:"timezone" toml:"timezone"`
	Times            []string    `yaml:"times" toml:"times"`
	TimeRanges       []TimeRange `yaml:"time_ranges" toml:"time_ranges"`
	StartHour        *int        `yaml:"start_hour" toml:"start_hour"`
	EndHour          *int        `yaml:"end_hour" toml:"end_hour"`
	NextRun          string      `yaml:"next_run" toml:"next_run"`
}

// Result counts what Apply did.
type Result struct {
	Sites     int `json:"sites"`
	Topics    int `json:"topics"`
	Schedules int `json:"schedules"`
	Skipped   int `json:"skipped"`
}

// Load reads a seed file, choosing the decoder from the extension.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read seed file %s", path)
	}
	return Parse(data, strings.TrimPrefix(filepath.Ext(path), "."))
}

// Parse decodes seed data in the given format (yaml, yml or toml).
func Parse(data []byte, format string) (*File, error) {
	var f File
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, errors.Wrap(err, "failed to parse YAML seed")
		}
	case "toml":
		if _, err := toml.Decode(string(data), &f); err != nil {
			return nil, errors.Wrap(err, "failed to parse TOML seed")
		}
	default:
		return nil, errors.NewInvalidRequestError("unsupported seed format %q (use yaml or toml)", format)
	}
	return &f, nil
}

// Applier writes seed files into a store.
type Applier struct {
	store  blog.Store
	rng    schedule.Rand
	now    func() time.Time
	logger *zap.SugaredLogger
}

// NewApplier returns an Applier using the wall clock.
func NewApplier(store blog.Store, log *zap.SugaredLogger) *Applier {
	if log == nil {
		log = logger.Logger
	}
	return &Applier{
		store:  store,
		rng:    schedule.NewRand(),
		now:    func() time.Time { return time.Now().UTC() },
		logger: log.Named("seed"),
	}
}

// Apply creates the sites, then topics, then schedules of f. It stops at the
// first invalid record; records created before it remain.
func (a *Applier) Apply(ctx context.Context, f *File) (Result, error) {
	var res Result
	for _, s := range f.Sites {
		created, err := a.applySite(ctx, s)
		if err != nil {
			return res, err
		}
		count(&res.Sites, &res.Skipped, created)
	}
	for _, t := range f.Topics {
		created, err := a.applyTopic(ctx, t)
		if err != nil {
			return res, err
		}
		count(&res.Topics, &res.Skipped, created)
	}
	for _, s := range f.Schedules {
		created, err := a.applySchedule(ctx, s)
		if err != nil {
			return res, err
		}
		count(&res.Schedules, &res.Skipped, created)
	}

	a.logger.Infow("Seed applied",
		"sites", res.Sites,
		"topics", res.Topics,
		"schedules", res.Schedules,
		"skipped", res.Skipped)
	return res, nil
}

func count(created, skipped *int, ok bool) {
	if ok {
		*created++
	} else {
		*skipped++
	}
}

func (a *Applier) applySite(ctx context.Context, s Site) (bool, error) {
	if s.ID == "" || s.URL == "" {
		return false, errors.NewInvalidRequestError("site needs id and url")
	}
	if exists, err := found(a.store.GetSite(ctx, s.ID)); err != nil || exists {
		return false, err
	}
	site := &blog.Site{
		ID:          s.ID,
		UserID:      s.UserID,
		Name:        s.Name,
		URL:         strings.TrimRight(s.URL, "/"),
		Username:    s.Username,
		AppPassword: s.AppPassword,
		Settings:    s.Settings,
	}
	if err := a.store.CreateSite(ctx, site); err != nil {
		return false, err
	}
	a.logger.Debugw("Seeded site", logger.FieldSiteID, site.ID)
	return true, nil
}

func (a *Applier) applyTopic(ctx context.Context, t Topic) (bool, error) {
	if t.ID == "" || t.SiteID == "" || strings.TrimSpace(t.Title) == "" {
		return false, errors.NewInvalidRequestError("topic needs id, site_id and title")
	}
	if exists, err := found(a.store.GetTopic(ctx, t.ID, t.SiteID)); err != nil || exists {
		return false, err
	}
	status := blog.TopicPending
	if t.Status != "" {
		parsed, err := blog.ParseTopicStatus(t.Status)
		if err != nil {
			return false, errors.Wrapf(err, "topic %s", t.ID)
		}
		status = parsed
	}
	topic := &blog.Topic{
		ID:          t.ID,
		SiteID:      t.SiteID,
		UserID:      t.UserID,
		Title:       strings.TrimSpace(t.Title),
		Description: t.Description,
		Keywords:    t.Keywords,
		Priority:    t.Priority,
		Status:      status,
	}
	if err := a.store.CreateTopic(ctx, topic); err != nil {
		return false, err
	}
	a.logger.Debugw("Seeded topic", logger.FieldTopicID, topic.ID, logger.FieldSiteID, topic.SiteID)
	return true, nil
}

func (a *Applier) applySchedule(ctx context.Context, s Schedule) (bool, error) {
	if s.ID == "" {
		return false, errors.NewInvalidRequestError("schedule needs an id")
	}
	if exists, err := found(a.store.GetSchedule(ctx, s.ID)); err != nil || exists {
		return false, err
	}
	sched, err := s.toSchedule()
	if err != nil {
		return false, errors.Wrapf(err, "schedule %s", s.ID)
	}
	if err := sched.Validate(); err != nil {
		return false, errors.Wrapf(err, "schedule %s", s.ID)
	}
	if s.NextRun != "" {
		next, err := time.Parse(time.RFC3339, s.NextRun)
		if err != nil {
			return false, errors.NewInvalidRequestError("schedule %s: next_run must be RFC 3339, got %q", s.ID, s.NextRun)
		}
		sched.NextRunTime = next.UTC()
	} else {
		sched.NextRunTime = schedule.ComputeNextRunTime(sched, a.now(), a.rng)
	}

	if err := a.store.CreateSchedule(ctx, sched); err != nil {
		return false, err
	}
	a.logger.Debugw("Seeded schedule",
		logger.FieldScheduleID, sched.ID,
		logger.FieldNextRun, sched.NextRunTime)
	return true, nil
}

func (s Schedule) toSchedule() (*blog.Schedule, error) {
	freq, err := blog.ParseFrequency(s.Frequency)
	if err != nil {
		return nil, err
	}
	sched := &blog.Schedule{
		ID:               s.ID,
		SiteID:           s.SiteID,
		UserID:           s.UserID,
		Frequency:        freq,
		PostsPerInterval: s.PostsPerInterval,
		Enabled:          s.Enabled == nil || *s.Enabled,
		Timezone:         s.Timezone,
		StartHour:        s.StartHour,
		EndHour:          s.EndHour,
	}
	if sched.PostsPerInterval == 0 {
		sched.PostsPerInterval = 1
	}
	for _, raw := range s.Times {
		ct, err := blog.ParseClockTime(raw)
		if err != nil {
			return nil, err
		}
		sched.Times = append(sched.Times, ct)
	}
	for _, r := range s.TimeRanges {
		start, err := blog.ParseClockTime(r.Start)
		if err != nil {
			return nil, err
		}
		end, err := blog.ParseClockTime(r.End)
		if err != nil {
			return nil, err
		}
		sched.TimeRanges = append(sched.TimeRanges, blog.TimeRange{Start: start, End: end})
	}
	return sched, nil
}

// found turns a lookup into an existence check; only not-found is swallowed.
func found[T any](_ T, err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, blog.ErrNotFound) {
		return false, nil
	}
	return false, err
}
