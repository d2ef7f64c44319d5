package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/errors"
	"github.com/teranos/autoblog/logger"
)

type tag struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ResolveTags maps keywords to tag ids, creating missing tags. A keyword that
// cannot be resolved is logged and skipped.
func (c *Client) ResolveTags(ctx context.Context, site *blog.Site, keywords []string) []int {
	ids := []int{}
	seen := make(map[int]bool)
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		id, err := c.resolveTag(ctx, site, kw)
		if err != nil {
			c.logger.Warnw("Skipping unresolvable tag",
				logger.FieldSiteID, site.ID,
				"tag", kw,
				logger.FieldError, err,
			)
			continue
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

func (c *Client) resolveTag(ctx context.Context, site *blog.Site, name string) (int, error) {
	searchURL := endpoint(site.URL, tagsPath) + "?search=" + url.QueryEscape(name)
	req, err := c.newRequest(ctx, http.MethodGet, searchURL, site, nil)
	if err != nil {
		return 0, err
	}
	status, body, err := c.do(req)
	if err != nil {
		return 0, errors.Wrap(err, "tag search")
	}
	if status == http.StatusOK {
		var found []tag
		if err := json.Unmarshal(body, &found); err == nil {
			for _, t := range found {
				if strings.EqualFold(t.Name, name) {
					return t.ID, nil
				}
			}
		}
	}

	payload, _ := json.Marshal(map[string]string{"name": name})
	req, err = c.newRequest(ctx, http.MethodPost, endpoint(site.URL, tagsPath), site, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	status, body, err = c.do(req)
	if err != nil {
		return 0, errors.Wrap(err, "tag create")
	}
	switch status {
	case http.StatusCreated, http.StatusOK:
		var created tag
		if err := json.Unmarshal(body, &created); err != nil || created.ID == 0 {
			return 0, errors.New("unexpected tag response")
		}
		return created.ID, nil
	case http.StatusBadRequest:
		// term_exists carries the existing id
		var exists struct {
			Code string `json:"code"`
			Data struct {
				TermID int `json:"term_id"`
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &exists); err == nil && exists.Code == "term_exists" && exists.Data.TermID > 0 {
			return exists.Data.TermID, nil
		}
	}
	return 0, errors.Newf("tag create returned status %d", status)
}
