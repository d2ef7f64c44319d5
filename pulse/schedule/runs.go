package schedule

import (
	"context"
	"database/sql"
	"time"

	"github.com/teranos/autoblog/errors"
)

// Run statuses
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusSkipped   = "skipped"
	RunStatusFailed    = "failed"
)

const runTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is the execution history of one schedule during one sweep.
type Run struct {
	ID             string     `json:"id"`
	ScheduleID     string     `json:"scheduleId"`
	SiteID         string     `json:"siteId"`
	Status         string     `json:"status"`
	TopicsSelected int        `json:"topicsSelected"`
	JobsDispatched int        `json:"jobsDispatched"`
	NextRunTime    *time.Time `json:"nextRunTime,omitempty"`
	ErrorMessage   string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"startedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	DurationMs     int64      `json:"durationMs"`
}

// RunStore persists schedule run history
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a new run store
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// CreateRun inserts a run record
func (s *RunStore) CreateRun(ctx context.Context, run *Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schedule_runs (id, schedule_id, site_id, status, topics_selected, jobs_dispatched, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ScheduleID, run.SiteID, run.Status, run.TopicsSelected, run.JobsDispatched,
		run.StartedAt.UTC().Format(runTimeLayout),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to create schedule run %s", run.ID)
	}
	return nil
}

// FinishRun records the final state of a run
func (s *RunStore) FinishRun(ctx context.Context, run *Run) error {
	var nextRun, completedAt, errorMessage interface{}
	if run.NextRunTime != nil {
		nextRun = run.NextRunTime.UTC().Format(runTimeLayout)
	}
	if run.CompletedAt != nil {
		completedAt = run.CompletedAt.UTC().Format(runTimeLayout)
	}
	if run.ErrorMessage != "" {
		errorMessage = run.ErrorMessage
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE schedule_runs
		SET status = ?,
		    topics_selected = ?,
		    jobs_dispatched = ?,
		    next_run_time = ?,
		    error_message = ?,
		    completed_at = ?,
		    duration_ms = ?
		WHERE id = ?`,
		run.Status, run.TopicsSelected, run.JobsDispatched, nextRun, errorMessage, completedAt, run.DurationMs, run.ID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update schedule run")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check rows affected")
	}
	if rowsAffected == 0 {
		return errors.Newf("schedule run not found: %s", run.ID)
	}
	return nil
}

// ListRuns returns a schedule's most recent runs, newest first
func (s *RunStore) ListRuns(ctx context.Context, scheduleID string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, schedule_id, site_id, status, topics_selected, jobs_dispatched,
		       next_run_time, error_message, started_at, completed_at, duration_ms
		FROM schedule_runs
		WHERE schedule_id = ?
		ORDER BY started_at DESC
		LIMIT ?`, scheduleID, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list runs of schedule %s", scheduleID)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var nextRun, errorMessage, completedAt sql.NullString
		var startedAt string
		var durationMs sql.NullInt64
		if err := rows.Scan(&run.ID, &run.ScheduleID, &run.SiteID, &run.Status, &run.TopicsSelected, &run.JobsDispatched,
			&nextRun, &errorMessage, &startedAt, &completedAt, &durationMs); err != nil {
			return nil, errors.Wrap(err, "failed to scan schedule run")
		}
		if run.StartedAt, err = parseRunTime(startedAt); err != nil {
			return nil, err
		}
		if run.NextRunTime, err = parseNullRunTime(nextRun); err != nil {
			return nil, err
		}
		if run.CompletedAt, err = parseNullRunTime(completedAt); err != nil {
			return nil, err
		}
		run.ErrorMessage = errorMessage.String
		run.DurationMs = durationMs.Int64
		runs = append(runs, &run)
	}
	return runs, errors.Wrap(rows.Err(), "failed to iterate schedule runs")
}

func parseRunTime(s string) (time.Time, error) {
	t, err := time.Parse(runTimeLayout, s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339Nano, s); err != nil {
			return time.Time{}, errors.Wrapf(err, "invalid timestamp %q", s)
		}
	}
	return t.UTC(), nil
}

func parseNullRunTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseRunTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
