package wordpress

import (
	"context"
	"fmt"
	"net/http"

	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/errors"
	"github.com/teranos/autoblog/internal/httpclient"
)

// ValidationError explains why a site cannot be published to.
type ValidationError struct {
	Reason     string
	StatusCode int // 0 when no response was received
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Validate checks that the site's REST API is reachable and the credentials
// are accepted, by listing a single post. It returns *ValidationError when the
// site is not usable.
func (c *Client) Validate(ctx context.Context, site *blog.Site) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint(site.URL, postsPath)+"?per_page=1", site, nil)
	if err != nil {
		return &ValidationError{Reason: fmt.Sprintf("Invalid WordPress URL: %s", site.URL)}
	}

	status, body, err := c.do(req)
	if err != nil {
		if httpclient.IsTimeout(err) {
			return &ValidationError{Reason: "WordPress connection timeout"}
		}
		return &ValidationError{Reason: fmt.Sprintf("Cannot connect to WordPress: %s", rootMessage(err))}
	}

	switch status {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized:
		return &ValidationError{Reason: "Invalid WordPress credentials", StatusCode: status}
	case http.StatusForbidden:
		return &ValidationError{Reason: "WordPress credentials lack permission to manage posts", StatusCode: status}
	case http.StatusNotFound:
		return &ValidationError{Reason: "WordPress REST API not found. Ensure permalinks are enabled.", StatusCode: status}
	default:
		reason := fmt.Sprintf("WordPress API returned status %d", status)
		if msg := upstreamMessage(body); msg != "" {
			reason += ": " + msg
		} else if text := http.StatusText(status); text != "" {
			reason += ": " + text
		}
		return &ValidationError{Reason: reason, StatusCode: status}
	}
}

// rootMessage is the innermost error text, without wrapping prefixes.
func rootMessage(err error) string {
	return errors.UnwrapAll(err).Error()
}
