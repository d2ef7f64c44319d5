package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/errors"
)

// CreateJob inserts a new job record.
func (s *Store) CreateJob(ctx context.Context, job *blog.Job) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = s.now()
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = job.CreatedAt
	}
	var autoPublish interface{}
	if job.AutoPublish != nil {
		autoPublish = *job.AutoPublish
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, topic_id, site_id, user_id, source, auto_publish, status, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.TopicID, job.SiteID, job.UserID, string(job.Source), autoPublish,
		string(job.Status), nullString(job.Title), formatTime(job.CreatedAt), formatTime(job.UpdatedAt),
	)
	if err != nil {
		return errors.WithDetail(errors.Wrap(err, "failed to create job"), fmt.Sprintf("job_id: %s", job.ID))
	}
	return nil
}

// GetJob loads a job by id.
func (s *Store) GetJob(ctx context.Context, jobID string) (*blog.Job, error) {
	var job blog.Job
	var args jobScanArgs
	err := s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", jobID).
		Scan(jobScanTargets(&job, &args)...)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(blog.ErrNotFound, "job %s", jobID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get job %s", jobID)
	}
	if err := processJobScanArgs(&job, &args); err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateJobStatus moves a job to status and merges patch, atomically checking
// that the current status allows the move.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status blog.JobStatus, patch blog.JobPatch) error {
	from := blog.Predecessors(status)
	if len(from) == 0 {
		return errors.Wrapf(blog.ErrInvalidTransition, "job %s: nothing transitions to %s", jobID, status)
	}

	var p patchBuilder
	p.set("status", string(status))
	if patch.Title != nil {
		p.set("title", *patch.Title)
	}
	if patch.WordPressPostID != nil {
		p.set("wordpress_post_id", *patch.WordPressPostID)
	}
	if patch.PublishedURL != nil {
		p.set("published_url", *patch.PublishedURL)
	}
	if patch.ContentID != nil {
		p.set("content_id", *patch.ContentID)
	}
	if patch.Error != nil {
		p.set("error_message", patch.Error.Message)
		p.set("error_kind", string(patch.Error.Kind))
	}
	if patch.StartedAt != nil {
		p.set("started_at", formatTime(*patch.StartedAt))
	}
	if patch.CompletedAt != nil {
		p.set("completed_at", formatTime(*patch.CompletedAt))
	}
	if patch.FailedAt != nil {
		p.set("failed_at", formatTime(*patch.FailedAt))
	}
	p.set("updated_at", formatTime(s.now()))

	args := append(p.args, jobID)
	for _, f := range from {
		args = append(args, string(f))
	}
	query := fmt.Sprintf("UPDATE jobs SET %s WHERE id = ? AND status IN (%s)", p.clause(), placeholders(len(from)))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.WithDetail(
			errors.Wrapf(err, "failed to update job %s", jobID),
			fmt.Sprintf("target status: %s", status),
		)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "failed to update job %s", jobID)
	}
	if n > 0 {
		return nil
	}

	// Nothing matched: either the job is gone or its status forbids the move
	var current string
	err = s.db.QueryRowContext(ctx, "SELECT status FROM jobs WHERE id = ?", jobID).Scan(&current)
	if err == sql.ErrNoRows {
		return errors.Wrapf(blog.ErrNotFound, "job %s", jobID)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to read job %s", jobID)
	}
	return errors.Wrapf(blog.ErrInvalidTransition, "job %s: %s -> %s", jobID, current, status)
}

// ListJobs returns jobs newest first.
func (s *Store) ListJobs(ctx context.Context, filter blog.JobFilter) ([]*blog.Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs WHERE 1 = 1"
	var args []interface{}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.SiteID != "" {
		query += " AND site_id = ?"
		args = append(args, filter.SiteID)
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	defer rows.Close()

	var jobs []*blog.Job
	for rows.Next() {
		var job blog.Job
		var scanArgs jobScanArgs
		if err := rows.Scan(jobScanTargets(&job, &scanArgs)...); err != nil {
			return nil, errors.Wrap(err, "failed to scan job")
		}
		if err := processJobScanArgs(&job, &scanArgs); err != nil {
			return nil, err
		}
		jobs = append(jobs, &job)
	}
	return jobs, errors.Wrap(rows.Err(), "failed to iterate jobs")
}
