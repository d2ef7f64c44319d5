package sqlstore

import (
	"context"
	"database/sql"

	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/errors"
)

// CreateTopic inserts a topic.
func (s *Store) CreateTopic(ctx context.Context, t *blog.Topic) error {
	now := s.now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	keywords, err := encodeJSON(nonNil(t.Keywords))
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO topics (id, site_id, user_id, title, description, keywords, priority, status,
			published_at, wordpress_post_id, last_job_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.SiteID, t.UserID, t.Title, t.Description, keywords, t.Priority, string(t.Status),
		formatTimePtr(t.PublishedAt), t.WordPressPostID, nullString(t.LastJobID),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to create topic %s", t.ID)
	}
	return nil
}

// GetTopic loads a topic scoped to its site.
func (s *Store) GetTopic(ctx context.Context, topicID, siteID string) (*blog.Topic, error) {
	var t blog.Topic
	var args topicScanArgs
	err := s.db.QueryRowContext(ctx, "SELECT "+topicColumns+" FROM topics WHERE id = ? AND site_id = ?", topicID, siteID).
		Scan(topicScanTargets(&t, &args)...)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(blog.ErrNotFound, "topic %s on site %s", topicID, siteID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get topic %s", topicID)
	}
	if err := processTopicScanArgs(&t, &args); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTopicStatus sets the topic status and merges patch.
func (s *Store) UpdateTopicStatus(ctx context.Context, topicID, siteID string, status blog.TopicStatus, patch blog.TopicPatch) error {
	var p patchBuilder
	p.set("status", string(status))
	if patch.PublishedAt != nil {
		p.set("published_at", formatTime(*patch.PublishedAt))
	}
	if patch.WordPressPostID != nil {
		p.set("wordpress_post_id", *patch.WordPressPostID)
	}
	if patch.LastJobID != nil {
		p.set("last_job_id", *patch.LastJobID)
	}
	p.set("updated_at", formatTime(s.now()))

	res, err := s.db.ExecContext(ctx, "UPDATE topics SET "+p.clause()+" WHERE id = ? AND site_id = ?",
		append(p.args, topicID, siteID)...)
	if err != nil {
		return errors.Wrapf(err, "failed to update topic %s", topicID)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Wrapf(blog.ErrNotFound, "topic %s on site %s", topicID, siteID)
	}
	return nil
}

// ListTopics returns a site's topics in a status, highest priority first.
func (s *Store) ListTopics(ctx context.Context, siteID string, status blog.TopicStatus) ([]*blog.Topic, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+topicColumns+" FROM topics WHERE site_id = ? AND status = ? ORDER BY priority DESC, created_at ASC",
		siteID, string(status))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list topics for site %s", siteID)
	}
	defer rows.Close()

	var topics []*blog.Topic
	for rows.Next() {
		var t blog.Topic
		var args topicScanArgs
		if err := rows.Scan(topicScanTargets(&t, &args)...); err != nil {
			return nil, errors.Wrap(err, "failed to scan topic")
		}
		if err := processTopicScanArgs(&t, &args); err != nil {
			return nil, err
		}
		topics = append(topics, &t)
	}
	return topics, errors.Wrap(rows.Err(), "failed to iterate topics")
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
