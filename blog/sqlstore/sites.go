package sqlstore

import (
	"context"
	"database/sql"

	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/errors"
)

// CreateSite inserts a site.
func (s *Store) CreateSite(ctx context.Context, site *blog.Site) error {
	now := s.now()
	if site.CreatedAt.IsZero() {
		site.CreatedAt = now
	}
	site.UpdatedAt = now
	settings, err := encodeJSON(site.Settings)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sites (id, user_id, name, url, username, app_password, settings, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		site.ID, site.UserID, site.Name, site.URL, site.Username, site.AppPassword, settings,
		formatTime(site.CreatedAt), formatTime(site.UpdatedAt),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to create site %s", site.ID)
	}
	return nil
}

// GetSite loads a site by id.
func (s *Store) GetSite(ctx context.Context, siteID string) (*blog.Site, error) {
	var site blog.Site
	var settings, createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, url, username, app_password, settings, created_at, updated_at
		FROM sites WHERE id = ?`, siteID).Scan(
		&site.ID, &site.UserID, &site.Name, &site.URL, &site.Username, &site.AppPassword,
		&settings, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(blog.ErrNotFound, "site %s", siteID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get site %s", siteID)
	}
	if err := decodeJSON(settings, &site.Settings); err != nil {
		return nil, errors.Wrapf(err, "site %s settings", siteID)
	}
	if site.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if site.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &site, nil
}

// RecordSiteHealth appends a health probe result.
func (s *Store) RecordSiteHealth(ctx context.Context, h blog.SiteHealth) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO site_health (site_id, healthy, status_code, response_time_ms, error, checked_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		h.SiteID, h.Healthy, h.StatusCode, h.ResponseTimeMS(), nullString(h.Error), formatTime(h.CheckedAt),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to record health for site %s", h.SiteID)
	}
	return nil
}

// LatestSiteHealth returns the most recent probe for a site.
func (s *Store) LatestSiteHealth(ctx context.Context, siteID string) (*blog.SiteHealth, error) {
	h := blog.SiteHealth{SiteID: siteID}
	var responseMS int64
	var errMsg sql.NullString
	var checkedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT healthy, status_code, response_time_ms, error, checked_at
		FROM site_health WHERE site_id = ?
		ORDER BY checked_at DESC, id DESC LIMIT 1`, siteID).Scan(
		&h.Healthy, &h.StatusCode, &responseMS, &errMsg, &checkedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(blog.ErrNotFound, "health for site %s", siteID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get health for site %s", siteID)
	}
	h.ResponseTime = msDuration(responseMS)
	h.Error = errMsg.String
	if h.CheckedAt, err = parseTime(checkedAt); err != nil {
		return nil, err
	}
	return &h, nil
}
