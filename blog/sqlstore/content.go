package sqlstore

import (
	"context"
	"database/sql"

	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/errors"
)

// SaveContent persists generated content.
func (s *Store) SaveContent(ctx context.Context, c *blog.Content) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	keywords, err := encodeJSON(nonNil(c.Keywords))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO content (id, job_id, site_id, topic_id, title, body, excerpt, seo_title,
			seo_description, keywords, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.JobID, c.SiteID, c.TopicID, c.Title, c.Body, c.Excerpt, c.SEOTitle,
		c.SEODescription, keywords, c.Provider, c.Model, formatTime(c.CreatedAt),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to save content for job %s", c.JobID)
	}
	return nil
}

// GetContent loads content by id.
func (s *Store) GetContent(ctx context.Context, contentID string) (*blog.Content, error) {
	var c blog.Content
	var keywords, createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, job_id, site_id, topic_id, title, body, excerpt, seo_title, seo_description,
			keywords, provider, model, created_at
		FROM content WHERE id = ?`, contentID).Scan(
		&c.ID, &c.JobID, &c.SiteID, &c.TopicID, &c.Title, &c.Body, &c.Excerpt, &c.SEOTitle,
		&c.SEODescription, &keywords, &c.Provider, &c.Model, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(blog.ErrNotFound, "content %s", contentID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get content %s", contentID)
	}
	if err := decodeJSON(keywords, &c.Keywords); err != nil {
		return nil, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &c, nil
}
