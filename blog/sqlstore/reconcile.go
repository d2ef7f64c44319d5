package sqlstore

import (
	"context"
	"database/sql"

	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/errors"
)

// ListPublishDivergences returns topics marked published by a job that did
// not publish them: the job failed or its record is missing. Topics published
// without a job (imported, edited by hand) are not reported.
func (s *Store) ListPublishDivergences(ctx context.Context) ([]blog.Divergence, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.site_id, t.title, t.last_job_id, j.id, j.error_message, j.error_kind, j.failed_at
		FROM topics t
		LEFT JOIN jobs j ON j.id = t.last_job_id
		WHERE t.status = 'published'
		  AND t.last_job_id IS NOT NULL
		  AND (j.id IS NULL OR j.status = 'failed')
		ORDER BY t.updated_at ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query publish divergences")
	}
	defer rows.Close()

	var out []blog.Divergence
	for rows.Next() {
		var d blog.Divergence
		var jobID, errMsg, errKind, failedAt sql.NullString
		if err := rows.Scan(&d.TopicID, &d.SiteID, &d.TopicTitle, &d.JobID, &jobID, &errMsg, &errKind, &failedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan divergence")
		}
		if !jobID.Valid {
			d.Reason = blog.ReasonJobMissing
		} else {
			d.Reason = blog.ReasonJobFailed
			if errMsg.Valid || errKind.Valid {
				d.JobError = &blog.JobError{Message: errMsg.String, Kind: blog.ErrorKind(errKind.String)}
			}
			if d.FailedAt, err = parseNullTime(failedAt); err != nil {
				return nil, err
			}
		}
		out = append(out, d)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate divergences")
}
