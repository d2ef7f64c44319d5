package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/errors"
	"github.com/teranos/autoblog/internal/util"
)

func newSchedule(id string, next time.Time, enabled bool) *blog.Schedule {
	return &blog.Schedule{
		ID:               id,
		SiteID:           "site-1",
		UserID:           "user-1",
		Frequency:        blog.Daily,
		PostsPerInterval: 2,
		Enabled:          enabled,
		NextRunTime:      next,
	}
}

func TestScheduleRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sched := newSchedule("sched-1", fixedNow, true)
	sched.Timezone = "Europe/Amsterdam"
	sched.Times = []blog.ClockTime{{Hour: 8}, {Hour: 18, Minute: 30}}
	sched.TimeRanges = []blog.TimeRange{{Start: blog.ClockTime{Hour: 9}, End: blog.ClockTime{Hour: 11}}}
	sched.StartHour = util.Ptr(7)
	require.NoError(t, s.CreateSchedule(ctx, sched))

	got, err := s.GetSchedule(ctx, "sched-1")
	require.NoError(t, err)
	assert.Equal(t, blog.Daily, got.Frequency)
	assert.Equal(t, 2, got.PostsPerInterval)
	assert.True(t, got.Enabled)
	assert.Equal(t, fixedNow, got.NextRunTime)
	assert.Nil(t, got.LastRunTime)
	assert.Equal(t, "Europe/Amsterdam", got.Timezone)
	assert.Equal(t, sched.Times, got.Times)
	assert.Equal(t, sched.TimeRanges, got.TimeRanges)
	require.NotNil(t, got.StartHour)
	assert.Equal(t, 7, *got.StartHour)
	assert.Nil(t, got.EndHour)

	_, err = s.GetSchedule(ctx, "missing")
	assert.True(t, errors.Is(err, blog.ErrNotFound))
}

func TestCreateScheduleRejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	sched := newSchedule("sched-1", fixedNow, true)
	sched.Frequency = "hourly"

	err := s.CreateSchedule(context.Background(), sched)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestScanDueSchedules(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateSchedule(ctx, newSchedule("due-late", fixedNow.Add(-time.Minute), true)))
	require.NoError(t, s.CreateSchedule(ctx, newSchedule("due-early", fixedNow.Add(-time.Hour), true)))
	require.NoError(t, s.CreateSchedule(ctx, newSchedule("due-exact", fixedNow, true)))
	require.NoError(t, s.CreateSchedule(ctx, newSchedule("future", fixedNow.Add(time.Second), true)))
	require.NoError(t, s.CreateSchedule(ctx, newSchedule("disabled", fixedNow.Add(-time.Hour), false)))

	due, err := s.ScanDueSchedules(ctx, fixedNow)
	require.NoError(t, err)

	var ids []string
	for _, d := range due {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"due-early", "due-late", "due-exact"}, ids)
}

func TestScanDueSchedulesAcrossZones(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// stored in UTC regardless of the zone the caller used
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	require.NoError(t, s.CreateSchedule(ctx, newSchedule("tokyo", fixedNow.Add(-time.Minute).In(tokyo), true)))

	due, err := s.ScanDueSchedules(ctx, fixedNow)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "tokyo", due[0].ID)
}

func TestUpdateScheduleMergesPatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateSchedule(ctx, newSchedule("sched-1", fixedNow, true)))

	next := fixedNow.Add(24 * time.Hour)
	require.NoError(t, s.UpdateSchedule(ctx, "sched-1", blog.SchedulePatch{NextRunTime: &next, LastRunTime: util.Ptr(fixedNow)}))

	got, err := s.GetSchedule(ctx, "sched-1")
	require.NoError(t, err)
	assert.Equal(t, next, got.NextRunTime)
	require.NotNil(t, got.LastRunTime)
	assert.Equal(t, fixedNow, *got.LastRunTime)
	assert.True(t, got.Enabled)
	assert.Equal(t, 2, got.PostsPerInterval)

	require.NoError(t, s.UpdateSchedule(ctx, "sched-1", blog.SchedulePatch{Enabled: util.Ptr(false)}))
	got, err = s.GetSchedule(ctx, "sched-1")
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.Equal(t, next, got.NextRunTime)

	err = s.UpdateSchedule(ctx, "missing", blog.SchedulePatch{Enabled: util.Ptr(true)})
	assert.True(t, errors.Is(err, blog.ErrNotFound))
}

func TestUpdateScheduleConditionalClaim(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	scanned := fixedNow.Add(-time.Minute)
	require.NoError(t, s.CreateSchedule(ctx, newSchedule("sched-1", scanned, true)))

	first := fixedNow.Add(24 * time.Hour)
	require.NoError(t, s.UpdateSchedule(ctx, "sched-1", blog.SchedulePatch{
		NextRunTime:   &first,
		IfNextRunTime: &scanned,
	}))

	// a second sweep holding the same scanned value loses
	second := fixedNow.Add(25 * time.Hour)
	err := s.UpdateSchedule(ctx, "sched-1", blog.SchedulePatch{
		NextRunTime:   &second,
		IfNextRunTime: &scanned,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, blog.ErrScheduleClaimed))
	assert.True(t, errors.Is(err, errors.ErrConflict))

	got, err := s.GetSchedule(ctx, "sched-1")
	require.NoError(t, err)
	assert.Equal(t, first, got.NextRunTime)

	err = s.UpdateSchedule(ctx, "missing", blog.SchedulePatch{NextRunTime: &first, IfNextRunTime: &scanned})
	assert.True(t, errors.Is(err, blog.ErrNotFound))
}
