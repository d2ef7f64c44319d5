package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/errors"
	"github.com/teranos/autoblog/internal/httpclient"
	"github.com/teranos/autoblog/logger"
)

// Post statuses
const (
	StatusPublish = "publish"
	StatusDraft   = "draft"
)

// Post is the content to publish.
type Post struct {
	Title          string
	Content        string
	Excerpt        string
	Publish        bool // false creates a draft
	Categories     []int
	Keywords       []string // resolved to tag ids, unresolvable ones skipped
	SEOTitle       string
	SEODescription string
}

// PublishResult identifies the created post.
type PublishResult struct {
	PostID int64  `json:"id"`
	URL    string `json:"link"`
}

// PublishError is a failed publication. Message is the WordPress error text
// when it could be read, never a raw body.
type PublishError struct {
	StatusCode int
	Message    string
}

func (e *PublishError) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return fmt.Sprintf("WordPress publish failed (status %d): %s", e.StatusCode, e.Message)
}

type postPayload struct {
	Title      string            `json:"title"`
	Content    string            `json:"content"`
	Excerpt    string            `json:"excerpt,omitempty"`
	Status     string            `json:"status"`
	Categories []int             `json:"categories"`
	Tags       []int             `json:"tags"`
	Meta       map[string]string `json:"meta,omitempty"`
}

// Publish creates a post on the site.
func (c *Client) Publish(ctx context.Context, site *blog.Site, post Post) (*PublishResult, error) {
	payload := postPayload{
		Title:      post.Title,
		Content:    post.Content,
		Excerpt:    post.Excerpt,
		Status:     StatusDraft,
		Categories: post.Categories,
		Tags:       c.ResolveTags(ctx, site, post.Keywords),
	}
	if post.Publish {
		payload.Status = StatusPublish
	}
	if payload.Categories == nil {
		payload.Categories = []int{}
	}
	if post.SEOTitle != "" || post.SEODescription != "" {
		payload.Meta = map[string]string{
			"_yoast_wpseo_title":    post.SEOTitle,
			"_yoast_wpseo_metadesc": post.SEODescription,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal post")
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint(site.URL, postsPath), site, bytes.NewReader(body))
	if err != nil {
		return nil, &PublishError{Message: err.Error()}
	}

	status, respBody, err := c.do(req)
	if err != nil {
		if httpclient.IsTimeout(err) {
			return nil, &PublishError{Message: "WordPress publish timeout"}
		}
		return nil, &PublishError{Message: rootMessage(err)}
	}
	if status != http.StatusCreated {
		msg := upstreamMessage(respBody)
		if msg == "" {
			msg = http.StatusText(status)
		}
		return nil, &PublishError{StatusCode: status, Message: msg}
	}

	var result PublishResult
	if err := json.Unmarshal(respBody, &result); err != nil || result.PostID == 0 {
		return nil, &PublishError{StatusCode: status, Message: "unexpected response from WordPress"}
	}

	c.logger.Infow("Published post",
		logger.FieldSiteID, site.ID,
		logger.FieldPostID, result.PostID,
		logger.FieldStatus, payload.Status,
	)
	return &result, nil
}
