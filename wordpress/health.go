package wordpress

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/internal/httpclient"
	"github.com/teranos/autoblog/version"
)

// CheckHealth probes the site's front page. The site is healthy when it
// answers 200-399 before ctx expires.
func (c *Client) CheckHealth(ctx context.Context, site *blog.Site) blog.SiteHealth {
	start := time.Now()
	h := blog.SiteHealth{SiteID: site.ID}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, site.URL, nil)
	if err != nil {
		h.Error = "invalid site URL"
		return finishHealth(h, start)
	}
	req.Header.Set("User-Agent", version.Get().UserAgent("health"))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if httpclient.IsTimeout(err) {
			h.Error = "Request timeout"
		} else {
			h.Error = rootMessage(err)
		}
		return finishHealth(h, start)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	h.StatusCode = resp.StatusCode
	h.Healthy = resp.StatusCode >= 200 && resp.StatusCode < 400
	return finishHealth(h, start)
}

func finishHealth(h blog.SiteHealth, start time.Time) blog.SiteHealth {
	h.ResponseTime = time.Since(start)
	h.CheckedAt = time.Now().UTC()
	return h
}
