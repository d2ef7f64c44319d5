package schedule

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/internal/util"
)

func seededRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func clock(h, m int) blog.ClockTime {
	return blog.ClockTime{Hour: h, Minute: m}
}

func TestComputeNextRunTimeModes(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 30, 45, 0, time.UTC)

	tests := []struct {
		name     string
		schedule blog.Schedule
		wantDay  time.Time // local date of the run
		minMin   int       // inclusive minute-of-day bounds
		maxMin   int
	}{
		{
			name:     "daily legacy window",
			schedule: blog.Schedule{Frequency: blog.Daily},
			wantDay:  time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC),
			minMin:   9 * 60,
			maxMin:   17*60 - 1,
		},
		{
			name:     "weekly custom hours",
			schedule: blog.Schedule{Frequency: blog.Weekly, StartHour: util.Ptr(6), EndHour: util.Ptr(7)},
			wantDay:  time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC),
			minMin:   6 * 60,
			maxMin:   7*60 - 1,
		},
		{
			name:     "biweekly fixed time",
			schedule: blog.Schedule{Frequency: blog.Biweekly, Times: []blog.ClockTime{clock(8, 15)}},
			wantDay:  time.Date(2025, 3, 24, 0, 0, 0, 0, time.UTC),
			minMin:   8*60 + 15,
			maxMin:   8*60 + 15,
		},
		{
			name:     "monthly range",
			schedule: blog.Schedule{Frequency: blog.Monthly, TimeRanges: []blog.TimeRange{{Start: clock(20, 0), End: clock(20, 30)}}},
			wantDay:  time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC),
			minMin:   20 * 60,
			maxMin:   20*60 + 29,
		},
		{
			name: "ranges win over times",
			schedule: blog.Schedule{
				Frequency:  blog.Daily,
				TimeRanges: []blog.TimeRange{{Start: clock(1, 0), End: clock(1, 10)}},
				Times:      []blog.ClockTime{clock(23, 0)},
			},
			wantDay: time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC),
			minMin:  60,
			maxMin:  69,
		},
		{
			name:     "times win over legacy hours",
			schedule: blog.Schedule{Frequency: blog.Daily, Times: []blog.ClockTime{clock(0, 5)}, StartHour: util.Ptr(10)},
			wantDay:  time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC),
			minMin:   5,
			maxMin:   5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := seededRand()
			for i := 0; i < 50; i++ {
				got := ComputeNextRunTime(&tt.schedule, now, rng)
				require.True(t, got.After(now))
				assert.Equal(t, time.UTC, got.Location())
				assert.Zero(t, got.Second())
				assert.Zero(t, got.Nanosecond())
				y, m, d := got.Date()
				assert.Equal(t, tt.wantDay, time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
				minute := got.Hour()*60 + got.Minute()
				assert.GreaterOrEqual(t, minute, tt.minMin)
				assert.LessOrEqual(t, minute, tt.maxMin)
			}
		})
	}
}

func TestComputeNextRunTimeInScheduleZone(t *testing.T) {
	sched := &blog.Schedule{Frequency: blog.Daily, Timezone: "Europe/Amsterdam", Times: []blog.ClockTime{clock(9, 0)}}
	now := time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC) // already 00:30 on the 11th in Amsterdam

	got := ComputeNextRunTime(sched, now, seededRand())

	loc, err := time.LoadLocation("Europe/Amsterdam")
	require.NoError(t, err)
	local := got.In(loc)
	assert.Equal(t, time.Date(2025, 3, 12, 9, 0, 0, 0, loc), local)
	assert.Equal(t, time.Date(2025, 3, 12, 8, 0, 0, 0, time.UTC), got)
}

func TestComputeNextRunTimeRangeEndExclusive(t *testing.T) {
	sched := &blog.Schedule{Frequency: blog.Daily, TimeRanges: []blog.TimeRange{{Start: clock(10, 0), End: clock(10, 1)}}}
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 20; i++ {
		got := ComputeNextRunTime(sched, now, seededRand())
		assert.Equal(t, time.Date(2025, 3, 11, 10, 0, 0, 0, time.UTC), got)
	}
}

func TestNextRunGuardAdvancesOneExtraInterval(t *testing.T) {
	sched := &blog.Schedule{Frequency: blog.Daily, Times: []blog.ClockTime{clock(9, 0)}}
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	// a late sweep anchored a day back lands on today 09:00, which has passed
	anchor := now.AddDate(0, 0, -1)

	got := nextRunAfter(sched, anchor, now, 1, seededRand())
	assert.Equal(t, time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC), got)

	// anchored far in the past it keeps advancing until the run is in the future
	got = nextRunAfter(sched, now.AddDate(0, 0, -30), now, 1, seededRand())
	assert.Equal(t, time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC), got)

	weekly := &blog.Schedule{Frequency: blog.Weekly, Times: []blog.ClockTime{clock(9, 0)}}
	got = nextRunAfter(weekly, now.AddDate(0, 0, -7), now, 1, seededRand())
	assert.Equal(t, time.Date(2025, 3, 17, 9, 0, 0, 0, time.UTC), got)
}

func TestComputeNextRunTimeAlwaysInFuture(t *testing.T) {
	rng := seededRand()
	frequencies := []blog.Frequency{blog.Daily, blog.Weekly, blog.Biweekly, blog.Monthly}
	zones := []string{"UTC", "America/New_York", "Asia/Tokyo", "Pacific/Chatham"}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 500; i++ {
		sched := &blog.Schedule{
			Frequency: frequencies[rng.IntN(len(frequencies))],
			Timezone:  zones[rng.IntN(len(zones))],
		}
		switch rng.IntN(3) {
		case 0:
			start := rng.IntN(23 * 60)
			sched.TimeRanges = []blog.TimeRange{{
				Start: clock(start/60, start%60),
				End:   clock((start+60)/60%24, (start+60)%60),
			}}
			if sched.TimeRanges[0].End.MinuteOfDay() <= start {
				sched.TimeRanges[0].End = clock(23, 59)
			}
		case 1:
			sched.Times = []blog.ClockTime{clock(rng.IntN(24), rng.IntN(60))}
		}
		now := base.Add(time.Duration(rng.IntN(365*24*60)) * time.Minute)

		got := ComputeNextRunTime(sched, now, rng)
		require.True(t, got.After(now), fmt.Sprintf("schedule %+v now %s got %s", sched, now, got))
	}
}

func TestPreviewNextRuns(t *testing.T) {
	sched := &blog.Schedule{Frequency: blog.Weekly, Times: []blog.ClockTime{clock(7, 30)}}
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	runs := PreviewNextRuns(sched, now, 3, seededRand())
	assert.Equal(t, []time.Time{
		time.Date(2025, 3, 17, 7, 30, 0, 0, time.UTC),
		time.Date(2025, 3, 24, 7, 30, 0, 0, time.UTC),
		time.Date(2025, 3, 31, 7, 30, 0, 0, time.UTC),
	}, runs)
}

func TestSelectTopicsWithoutReplacement(t *testing.T) {
	topics := make([]*blog.Topic, 10)
	for i := range topics {
		topics[i] = &blog.Topic{ID: fmt.Sprintf("topic-%d", i)}
	}
	original := append([]*blog.Topic(nil), topics...)
	rng := seededRand()

	for k := 0; k <= 12; k++ {
		picked := SelectTopics(topics, k, rng)
		want := k
		if want > len(topics) {
			want = len(topics)
		}
		require.Len(t, picked, want)

		seen := map[string]bool{}
		for _, p := range picked {
			assert.False(t, seen[p.ID], "topic %s picked twice", p.ID)
			seen[p.ID] = true
		}
	}
	assert.Equal(t, original, topics, "input must not be reordered")
	assert.Nil(t, SelectTopics(nil, 3, rng))
}

func TestSelectTopicsCoversEveryTopic(t *testing.T) {
	topics := []*blog.Topic{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	rng := seededRand()
	counts := map[string]int{}
	for i := 0; i < 400; i++ {
		for _, p := range SelectTopics(topics, 1, rng) {
			counts[p.ID]++
		}
	}
	for _, topic := range topics {
		assert.Greater(t, counts[topic.ID], 50, "topic %s drawn too rarely", topic.ID)
	}
}
