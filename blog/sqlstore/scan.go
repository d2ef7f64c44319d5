package sqlstore

import (
	"database/sql"

	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/errors"
)

const jobColumns = `id, topic_id, site_id, user_id, source, auto_publish, status, title,
	wordpress_post_id, published_url, content_id, error_message, error_kind,
	created_at, updated_at, started_at, completed_at, failed_at`

// jobScanArgs holds the nullable columns of a job row.
type jobScanArgs struct {
	AutoPublish  sql.NullBool
	Title        sql.NullString
	PostID       sql.NullInt64
	PublishedURL sql.NullString
	ContentID    sql.NullString
	ErrorMessage sql.NullString
	ErrorKind    sql.NullString
	CreatedAt    string
	UpdatedAt    string
	StartedAt    sql.NullString
	CompletedAt  sql.NullString
	FailedAt     sql.NullString
}

// jobScanTargets returns scan targets in jobColumns order.
func jobScanTargets(job *blog.Job, args *jobScanArgs) []interface{} {
	return []interface{}{
		&job.ID,
		&job.TopicID,
		&job.SiteID,
		&job.UserID,
		&job.Source,
		&args.AutoPublish,
		&job.Status,
		&args.Title,
		&args.PostID,
		&args.PublishedURL,
		&args.ContentID,
		&args.ErrorMessage,
		&args.ErrorKind,
		&args.CreatedAt,
		&args.UpdatedAt,
		&args.StartedAt,
		&args.CompletedAt,
		&args.FailedAt,
	}
}

func processJobScanArgs(job *blog.Job, args *jobScanArgs) error {
	var err error
	if args.AutoPublish.Valid {
		v := args.AutoPublish.Bool
		job.AutoPublish = &v
	}
	job.Title = args.Title.String
	if args.PostID.Valid {
		v := args.PostID.Int64
		job.WordPressPostID = &v
	}
	job.PublishedURL = args.PublishedURL.String
	job.ContentID = args.ContentID.String
	if args.ErrorMessage.Valid || args.ErrorKind.Valid {
		job.Error = &blog.JobError{Message: args.ErrorMessage.String, Kind: blog.ErrorKind(args.ErrorKind.String)}
	}
	if job.CreatedAt, err = parseTime(args.CreatedAt); err != nil {
		return errors.Wrapf(err, "job %s created_at", job.ID)
	}
	if job.UpdatedAt, err = parseTime(args.UpdatedAt); err != nil {
		return errors.Wrapf(err, "job %s updated_at", job.ID)
	}
	if job.StartedAt, err = parseNullTime(args.StartedAt); err != nil {
		return err
	}
	if job.CompletedAt, err = parseNullTime(args.CompletedAt); err != nil {
		return err
	}
	if job.FailedAt, err = parseNullTime(args.FailedAt); err != nil {
		return err
	}
	return nil
}

const topicColumns = `id, site_id, user_id, title, description, keywords, priority, status,
	published_at, wordpress_post_id, last_job_id, created_at, updated_at`

type topicScanArgs struct {
	Keywords    string
	PublishedAt sql.NullString
	PostID      sql.NullInt64
	LastJobID   sql.NullString
	CreatedAt   string
	UpdatedAt   string
}

func topicScanTargets(t *blog.Topic, args *topicScanArgs) []interface{} {
	return []interface{}{
		&t.ID, &t.SiteID, &t.UserID, &t.Title, &t.Description, &args.Keywords,
		&t.Priority, &t.Status, &args.PublishedAt, &args.PostID, &args.LastJobID,
		&args.CreatedAt, &args.UpdatedAt,
	}
}

func processTopicScanArgs(t *blog.Topic, args *topicScanArgs) error {
	var err error
	if err = decodeJSON(args.Keywords, &t.Keywords); err != nil {
		return errors.Wrapf(err, "topic %s keywords", t.ID)
	}
	if t.PublishedAt, err = parseNullTime(args.PublishedAt); err != nil {
		return err
	}
	if args.PostID.Valid {
		v := args.PostID.Int64
		t.WordPressPostID = &v
	}
	t.LastJobID = args.LastJobID.String
	if t.CreatedAt, err = parseTime(args.CreatedAt); err != nil {
		return err
	}
	t.UpdatedAt, err = parseTime(args.UpdatedAt)
	return err
}

const scheduleColumns = `id, site_id, user_id, frequency, posts_per_interval, enabled,
	next_run_time, last_run_time, timezone, time_ranges, times, start_hour, end_hour,
	created_at, updated_at`

type scheduleScanArgs struct {
	NextRunTime string
	LastRunTime sql.NullString
	TimeRanges  string
	Times       string
	StartHour   sql.NullInt64
	EndHour     sql.NullInt64
	CreatedAt   string
	UpdatedAt   string
}

func scheduleScanTargets(s *blog.Schedule, args *scheduleScanArgs) []interface{} {
	return []interface{}{
		&s.ID, &s.SiteID, &s.UserID, &s.Frequency, &s.PostsPerInterval, &s.Enabled,
		&args.NextRunTime, &args.LastRunTime, &s.Timezone, &args.TimeRanges, &args.Times,
		&args.StartHour, &args.EndHour, &args.CreatedAt, &args.UpdatedAt,
	}
}

func processScheduleScanArgs(s *blog.Schedule, args *scheduleScanArgs) error {
	var err error
	if s.NextRunTime, err = parseTime(args.NextRunTime); err != nil {
		return errors.Wrapf(err, "schedule %s next_run_time", s.ID)
	}
	if s.LastRunTime, err = parseNullTime(args.LastRunTime); err != nil {
		return err
	}
	if err = decodeJSON(args.TimeRanges, &s.TimeRanges); err != nil {
		return errors.Wrapf(err, "schedule %s time_ranges", s.ID)
	}
	if err = decodeJSON(args.Times, &s.Times); err != nil {
		return errors.Wrapf(err, "schedule %s times", s.ID)
	}
	if args.StartHour.Valid {
		v := int(args.StartHour.Int64)
		s.StartHour = &v
	}
	if args.EndHour.Valid {
		v := int(args.EndHour.Int64)
		s.EndHour = &v
	}
	if s.CreatedAt, err = parseTime(args.CreatedAt); err != nil {
		return err
	}
	s.UpdatedAt, err = parseTime(args.UpdatedAt)
	return err
}
