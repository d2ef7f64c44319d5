package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/errors"
)

// CreateSchedule inserts a schedule after validating it.
func (s *Store) CreateSchedule(ctx context.Context, sched *blog.Schedule) error {
	if err := sched.Validate(); err != nil {
		return err
	}
	now := s.now()
	if sched.CreatedAt.IsZero() {
		sched.CreatedAt = now
	}
	sched.UpdatedAt = now
	if sched.Timezone == "" {
		sched.Timezone = "UTC"
	}

	ranges, err := encodeJSON(nonNil(sched.TimeRanges))
	if err != nil {
		return err
	}
	times, err := encodeJSON(nonNil(sched.Times))
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO schedules (id, site_id, user_id, frequency, posts_per_interval, enabled,
			next_run_time, last_run_time, timezone, time_ranges, times, start_hour, end_hour,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sched.ID, sched.SiteID, sched.UserID, string(sched.Frequency), sched.PostsPerInterval, sched.Enabled,
		formatTime(sched.NextRunTime), formatTimePtr(sched.LastRunTime), sched.Timezone, ranges, times,
		sched.StartHour, sched.EndHour, formatTime(sched.CreatedAt), formatTime(sched.UpdatedAt),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to create schedule %s", sched.ID)
	}
	return nil
}

// GetSchedule loads a schedule by id.
func (s *Store) GetSchedule(ctx context.Context, scheduleID string) (*blog.Schedule, error) {
	var sched blog.Schedule
	var args scheduleScanArgs
	err := s.db.QueryRowContext(ctx, "SELECT "+scheduleColumns+" FROM schedules WHERE id = ?", scheduleID).
		Scan(scheduleScanTargets(&sched, &args)...)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(blog.ErrNotFound, "schedule %s", scheduleID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get schedule %s", scheduleID)
	}
	if err := processScheduleScanArgs(&sched, &args); err != nil {
		return nil, err
	}
	return &sched, nil
}

// ListSchedules returns every schedule ordered by next run.
func (s *Store) ListSchedules(ctx context.Context) ([]*blog.Schedule, error) {
	return s.querySchedules(ctx, "SELECT "+scheduleColumns+" FROM schedules ORDER BY next_run_time ASC")
}

// ScanDueSchedules returns enabled schedules whose next run is at or before now.
func (s *Store) ScanDueSchedules(ctx context.Context, now time.Time) ([]*blog.Schedule, error) {
	return s.querySchedules(ctx,
		"SELECT "+scheduleColumns+" FROM schedules WHERE enabled = 1 AND next_run_time <= ? ORDER BY next_run_time ASC",
		formatTime(now))
}

// UpdateSchedule merges patch into a schedule.
func (s *Store) UpdateSchedule(ctx context.Context, scheduleID string, patch blog.SchedulePatch) error {
	var p patchBuilder
	if patch.NextRunTime != nil {
		p.set("next_run_time", formatTime(*patch.NextRunTime))
	}
	if patch.LastRunTime != nil {
		p.set("last_run_time", formatTime(*patch.LastRunTime))
	}
	if patch.Enabled != nil {
		p.set("enabled", *patch.Enabled)
	}
	p.set("updated_at", formatTime(s.now()))

	query := "UPDATE schedules SET " + p.clause() + " WHERE id = ?"
	args := append(p.args, scheduleID)
	if patch.IfNextRunTime != nil {
		query += " AND next_run_time = ?"
		args = append(args, formatTime(*patch.IfNextRunTime))
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrapf(err, "failed to update schedule %s", scheduleID)
	}
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return nil
	}
	if patch.IfNextRunTime != nil {
		if _, err := s.GetSchedule(ctx, scheduleID); err != nil {
			return err
		}
		return errors.Wrapf(blog.ErrScheduleClaimed, "schedule %s", scheduleID)
	}
	return errors.Wrapf(blog.ErrNotFound, "schedule %s", scheduleID)
}

func (s *Store) querySchedules(ctx context.Context, query string, args ...interface{}) ([]*blog.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query schedules")
	}
	defer rows.Close()

	var schedules []*blog.Schedule
	for rows.Next() {
		var sched blog.Schedule
		var scanArgs scheduleScanArgs
		if err := rows.Scan(scheduleScanTargets(&sched, &scanArgs)...); err != nil {
			return nil, errors.Wrap(err, "failed to scan schedule")
		}
		if err := processScheduleScanArgs(&sched, &scanArgs); err != nil {
			return nil, err
		}
		schedules = append(schedules, &sched)
	}
	return schedules, errors.Wrap(rows.Err(), "failed to iterate schedules")
}

func msDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
