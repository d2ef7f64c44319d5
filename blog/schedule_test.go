package blog

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/autoblog/errors"
	"github.com/teranos/autoblog/internal/util"
)

func TestFrequencyAdvance(t *testing.T) {
	base := time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		freq Frequency
		n    int
		want time.Time
	}{
		{Daily, 1, time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)},
		{Weekly, 1, time.Date(2025, 2, 7, 10, 0, 0, 0, time.UTC)},
		{Biweekly, 2, time.Date(2025, 2, 28, 10, 0, 0, 0, time.UTC)},
		{Monthly, 1, time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)}, // Feb 31 normalizes
		{Monthly, 12, time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(string(tt.freq), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.freq.Advance(base, tt.n))
		})
	}
}

func TestParseClockTime(t *testing.T) {
	c, err := ParseClockTime("09:30")
	require.NoError(t, err)
	assert.Equal(t, ClockTime{Hour: 9, Minute: 30}, c)
	assert.Equal(t, 570, c.MinuteOfDay())
	assert.Equal(t, "09:30", c.String())

	midnight, err := ParseClockTime("00:00")
	require.NoError(t, err)
	assert.Zero(t, midnight.MinuteOfDay())

	for _, bad := range []string{"", "noon", "24:00", "12:60", "-1:00", "9:30", "9:30pm", "09:30pm", "09:30:00", "09-30", " 9:30", "0x:10"} {
		_, err := ParseClockTime(bad)
		require.Error(t, err, bad)
		assert.True(t, errors.IsInvalidRequestError(err), bad)
	}
}

func TestClockTimeJSON(t *testing.T) {
	var r TimeRange
	require.NoError(t, json.Unmarshal([]byte(`{"start":"08:15","end":"11:00"}`), &r))
	assert.Equal(t, ClockTime{8, 15}, r.Start)

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"08:15","end":"11:00"}`, string(out))
}

func TestScheduleValidate(t *testing.T) {
	valid := func() *Schedule {
		return &Schedule{SiteID: "site-1", Frequency: Daily, PostsPerInterval: 1}
	}

	tests := []struct {
		name    string
		mutate  func(s *Schedule)
		wantErr bool
	}{
		{"minimal", func(s *Schedule) {}, false},
		{"unknown frequency", func(s *Schedule) { s.Frequency = "hourly" }, true},
		{"zero posts", func(s *Schedule) { s.PostsPerInterval = 0 }, true},
		{"missing site", func(s *Schedule) { s.SiteID = "" }, true},
		{"inverted range", func(s *Schedule) {
			s.TimeRanges = []TimeRange{{Start: ClockTime{14, 0}, End: ClockTime{9, 0}}}
		}, true},
		{"empty range", func(s *Schedule) {
			s.TimeRanges = []TimeRange{{Start: ClockTime{9, 0}, End: ClockTime{9, 0}}}
		}, true},
		{"legacy hours inverted", func(s *Schedule) { s.StartHour, s.EndHour = util.Ptr(18), util.Ptr(8) }, true},
		{"legacy hours full day", func(s *Schedule) { s.StartHour, s.EndHour = util.Ptr(0), util.Ptr(24) }, false},
		{"unknown timezone", func(s *Schedule) { s.Timezone = "Mars/Olympus" }, true},
		{"named timezone", func(s *Schedule) { s.Timezone = "Europe/Amsterdam" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			if tt.wantErr {
				assert.Error(t, s.Validate())
			} else {
				assert.NoError(t, s.Validate())
			}
		})
	}
}

func TestScheduleHoursDefaults(t *testing.T) {
	s := &Schedule{}
	start, end := s.Hours()
	assert.Equal(t, 9, start)
	assert.Equal(t, 17, end)

	s.EndHour = util.Ptr(20)
	_, end = s.Hours()
	assert.Equal(t, 20, end)
}
