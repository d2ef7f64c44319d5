// Package schedule runs publishing schedules: it finds due schedules, picks
// approved topics at random, dispatches a job per topic and moves each
// schedule's next run into the future.
package schedule

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/teranos/autoblog/blog"
)

// Rand is the randomness the scheduler needs. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

// NewRand returns a time-seeded PCG generator.
func NewRand() *rand.Rand {
	return rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
}

// lockedRand makes a Rand safe for the concurrent sweep.
type lockedRand struct {
	mu  sync.Mutex
	rng Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.IntN(n)
}

// ComputeNextRunTime returns the schedule's next run after now: one interval
// ahead in the schedule's time zone, at a minute of day drawn from its time
// ranges, else its fixed times, else its start/end hour window. The result
// is always strictly after now.
func ComputeNextRunTime(s *blog.Schedule, now time.Time, rng Rand) time.Time {
	return nextRunAfter(s, now, now, 1, rng)
}

// nextRunAfter places a run k intervals after anchor. A candidate that is not
// after now moves one interval further and draws a new minute.
func nextRunAfter(s *blog.Schedule, anchor, now time.Time, k int, rng Rand) time.Time {
	loc, err := s.Location()
	if err != nil {
		loc = time.UTC
	}
	day := s.Frequency.Advance(anchor.In(loc), k)
	minute := pickMinuteOfDay(s, rng)
	candidate := time.Date(day.Year(), day.Month(), day.Day(), minute/60, minute%60, 0, 0, loc)
	if !candidate.After(now) {
		return nextRunAfter(s, anchor, now, k+1, rng)
	}
	return candidate.UTC()
}

// pickMinuteOfDay draws the local minute of day a run starts at.
// Precedence: time ranges, then fixed times, then the legacy hour window.
func pickMinuteOfDay(s *blog.Schedule, rng Rand) int {
	if len(s.TimeRanges) > 0 {
		r := s.TimeRanges[rng.IntN(len(s.TimeRanges))]
		return uniformMinute(r.Start.MinuteOfDay(), r.End.MinuteOfDay(), rng)
	}
	if len(s.Times) > 0 {
		return s.Times[rng.IntN(len(s.Times))].MinuteOfDay()
	}
	start, end := s.Hours()
	return uniformMinute(start*60, end*60, rng)
}

// uniformMinute draws from [start, end).
func uniformMinute(start, end int, rng Rand) int {
	if end <= start {
		return start
	}
	return start + rng.IntN(end-start)
}

// PreviewNextRuns lists the next n run times a schedule would produce from
// now, each computed from the previous one.
func PreviewNextRuns(s *blog.Schedule, now time.Time, n int, rng Rand) []time.Time {
	runs := make([]time.Time, 0, n)
	at := now
	for i := 0; i < n; i++ {
		at = ComputeNextRunTime(s, at, rng)
		runs = append(runs, at)
	}
	return runs
}

// SelectTopics picks min(k, len(topics)) distinct topics uniformly at random.
// The input slice is not modified.
func SelectTopics(topics []*blog.Topic, k int, rng Rand) []*blog.Topic {
	if k > len(topics) {
		k = len(topics)
	}
	if k <= 0 {
		return nil
	}
	pool := make([]*blog.Topic, len(topics))
	copy(pool, topics)
	// partial Fisher-Yates: the first k slots end up a uniform sample
	for i := 0; i < k; i++ {
		j := i + rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}
