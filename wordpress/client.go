// Package wordpress talks to the WordPress REST API: credential validation,
// post publication with tag resolution, and site health probes.
package wordpress

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/errors"
	"github.com/teranos/autoblog/internal/httpclient"
	"github.com/teranos/autoblog/version"
)

const (
	postsPath = "/wp-json/wp/v2/posts"
	tagsPath  = "/wp-json/wp/v2/tags"

	// maxUpstreamMessage bounds WordPress error text carried into job records
	maxUpstreamMessage = 200
	// maxBodyBytes bounds how much of a response is read
	maxBodyBytes = 4 << 20
)

// Client is a WordPress REST client shared by all sites.
type Client struct {
	httpClient *httpclient.SaferClient
	logger     *zap.SugaredLogger
}

// Config holds client configuration
type Config struct {
	Timeout        time.Duration // per-request ceiling (default: 30s); callers add tighter ctx deadlines
	BlockPrivateIP bool
	Logger         *zap.SugaredLogger
}

// NewClient creates a WordPress client
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	block := cfg.BlockPrivateIP
	return &Client{
		httpClient: httpclient.NewSaferClientWithOptions(cfg.Timeout, httpclient.SaferClientOptions{
			BlockPrivateIP: &block,
		}),
		logger: logger,
	}
}

// SetHTTPClient allows overriding the HTTP client for testing
// ⚠️ WARNING: Only use this in tests. Production code should use the default SSRF-safer client.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = httpclient.WrapClient(client)
}

// endpoint joins a REST path onto the site URL, keeping any subdirectory
// the site is installed under.
func endpoint(siteURL, path string) string {
	return strings.TrimRight(siteURL, "/") + path
}

// newRequest builds an authenticated JSON request.
func (c *Client) newRequest(ctx context.Context, method, url string, site *blog.Site, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.SetBasicAuth(site.Username, site.AppPassword)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.Get().UserAgent("publisher"))
	return req, nil
}

// do executes req and returns the status code and a bounded body.
func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, errors.Wrap(err, "failed to read response")
	}
	return resp.StatusCode, body, nil
}

// upstreamMessage extracts WordPress' "message" (or "error") text from an
// error body, truncated. Empty when the body is not a JSON error.
func upstreamMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = e.Error
	}
	return truncate(strings.TrimSpace(msg), maxUpstreamMessage)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
