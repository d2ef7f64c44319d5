package blog

import (
	"fmt"
	"time"

	"github.com/teranos/autoblog/errors"
)

// Frequency is how often a schedule fires.
type Frequency string

const (
	Daily    Frequency = "daily"
	Weekly   Frequency = "weekly"
	Biweekly Frequency = "biweekly"
	Monthly  Frequency = "monthly"
)

// ParseFrequency converts a stored or user-supplied string into a Frequency.
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(s) {
	case Daily, Weekly, Biweekly, Monthly:
		return Frequency(s), nil
	}
	return "", errors.NewInvalidRequestError("unknown frequency %q", s)
}

// Advance moves t forward by n intervals of f in t's location.
func (f Frequency) Advance(t time.Time, n int) time.Time {
	switch f {
	case Weekly:
		return t.AddDate(0, 0, 7*n)
	case Biweekly:
		return t.AddDate(0, 0, 14*n)
	case Monthly:
		return t.AddDate(0, n, 0)
	default:
		return t.AddDate(0, 0, n)
	}
}

// ClockTime is a wall-clock time of day with minute precision ("HH:MM").
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses exactly "HH:MM" (24h, zero padded).
func ParseClockTime(s string) (ClockTime, error) {
	if len(s) != 5 || s[2] != ':' {
		return ClockTime{}, errors.NewInvalidRequestError("invalid time of day %q, want HH:MM", s)
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, errors.NewInvalidRequestError("invalid time of day %q, want HH:MM between 00:00 and 23:59", s)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// MinuteOfDay returns minutes since midnight.
func (c ClockTime) MinuteOfDay() int {
	return c.Hour*60 + c.Minute
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// MarshalText implements encoding.TextMarshaler.
func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ClockTime) UnmarshalText(b []byte) error {
	parsed, err := ParseClockTime(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// TimeRange is a half-open window [Start, End) within one day.
type TimeRange struct {
	Start ClockTime `json:"start" yaml:"start" toml:"start"`
	End   ClockTime `json:"end" yaml:"end" toml:"end"`
}

// Legacy posting window used when a schedule names no ranges or times.
const (
	DefaultStartHour = 9
	DefaultEndHour   = 17
)

// Schedule is a recurring publication plan for a site.
type Schedule struct {
	ID               string      `json:"scheduleId"`
	SiteID           string      `json:"siteId"`
	UserID           string      `json:"userId"`
	Frequency        Frequency   `json:"frequency"`
	PostsPerInterval int         `json:"postsPerInterval"`
	Enabled          bool        `json:"enabled"`
	NextRunTime      time.Time   `json:"nextRunTime"`
	LastRunTime      *time.Time  `json:"lastRunTime,omitempty"`
	Timezone         string      `json:"timezone,omitempty"`
	TimeRanges       []TimeRange `json:"timeRanges,omitempty"`
	Times            []ClockTime `json:"scheduleTimes,omitempty"`
	StartHour        *int        `json:"startHour,omitempty"`
	EndHour          *int        `json:"endHour,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// Location resolves the schedule time zone, UTC when unset.
func (s *Schedule) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, errors.NewInvalidRequestError("unknown timezone %q", s.Timezone)
	}
	return loc, nil
}

// Hours returns the legacy window with defaults applied.
func (s *Schedule) Hours() (start, end int) {
	start, end = DefaultStartHour, DefaultEndHour
	if s.StartHour != nil {
		start = *s.StartHour
	}
	if s.EndHour != nil {
		end = *s.EndHour
	}
	return start, end
}

// Validate checks the schedule can be computed and swept.
func (s *Schedule) Validate() error {
	if _, err := ParseFrequency(string(s.Frequency)); err != nil {
		return err
	}
	if s.PostsPerInterval <= 0 {
		return errors.NewInvalidRequestError("postsPerInterval must be > 0, got %d", s.PostsPerInterval)
	}
	if s.SiteID == "" {
		return errors.NewInvalidRequestError("siteId is required")
	}
	for i, r := range s.TimeRanges {
		if r.End.MinuteOfDay() <= r.Start.MinuteOfDay() {
			return errors.NewInvalidRequestError("time range %d: end %s must be after start %s", i, r.End, r.Start)
		}
	}
	start, end := s.Hours()
	if start < 0 || start > 23 || end < 1 || end > 24 || end <= start {
		return errors.NewInvalidRequestError("legacy hours must satisfy 0 <= start < end <= 24, got %d-%d", start, end)
	}
	if _, err := s.Location(); err != nil {
		return err
	}
	return nil
}
