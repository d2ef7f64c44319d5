// Package gemini implements content generation against the Google Gemini
// generateContent API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/autoblog/ai/llm"
	"github.com/teranos/autoblog/errors"
	"github.com/teranos/autoblog/internal/httpclient"
)

const (
	// DefaultModel is the default Gemini model
	DefaultModel = "gemini-1.5-pro"

	// BaseURL is the Generative Language API endpoint
	BaseURL = "https://generativelanguage.googleapis.com/v1beta"
)

// Client is a Gemini API client. The key travels in the x-goog-api-key
// header so it never appears in URLs or logs.
type Client struct {
	baseURL    string
	httpClient *httpclient.SaferClient
	config     Config
	logger     *zap.SugaredLogger
}

// Config holds Gemini client configuration
type Config struct {
	APIKey  string
	Model   string
	BaseURL string // default: BaseURL
	Timeout time.Duration
	Logger  *zap.SugaredLogger
}

// NewClient creates a Gemini client with defaults applied
func NewClient(config Config) *Client {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.BaseURL == "" {
		config.BaseURL = BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 120 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	blockPrivateIP := true
	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpclient.NewSaferClientWithOptions(config.Timeout, httpclient.SaferClientOptions{
			BlockPrivateIP: &blockPrivateIP,
		}),
		config: config,
		logger: logger,
	}
}

// GenerateRequest is the generateContent request body
type GenerateRequest struct {
	SystemInstruction *Content         `json:"systemInstruction,omitempty"`
	Contents          []Content        `json:"contents"`
	GenerationConfig  GenerationConfig `json:"generationConfig"`
}

// Content is a turn in the conversation
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is a piece of content
type Part struct {
	Text string `json:"text"`
}

// GenerationConfig tunes sampling
type GenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

// GenerateResponse is the generateContent response body
type GenerateResponse struct {
	Candidates    []Candidate   `json:"candidates"`
	UsageMetadata UsageMetadata `json:"usageMetadata"`
	ModelVersion  string        `json:"modelVersion"`
}

// Candidate is one generated answer
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

// UsageMetadata is token accounting
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// GenerateContent implements llm.Generator.
func (c *Client) GenerateContent(ctx context.Context, prompt string, opts llm.Options) (*llm.Result, error) {
	if c.config.APIKey == "" {
		return nil, errors.NewConfigurationError("gemini API key not configured")
	}
	opts = opts.WithDefaults()
	model := c.config.Model
	if opts.Model != "" {
		model = opts.Model
	}

	req := GenerateRequest{
		SystemInstruction: &Content{Parts: []Part{{Text: llm.SystemPrompt}}},
		Contents:          []Content{{Role: "user", Parts: []Part{{Text: prompt}}}},
		GenerationConfig: GenerationConfig{
			Temperature:      opts.Temperature,
			MaxOutputTokens:  opts.MaxTokens,
			ResponseMimeType: "application/json",
		},
	}

	c.logger.Debugw("Gemini generateContent request", "model", model, "max_tokens", opts.MaxTokens)

	resp, err := c.generate(ctx, model, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("no candidates from gemini")
	}

	result, err := llm.ParseResult(resp.Candidates[0].Content.Parts[0].Text)
	if err != nil {
		return nil, errors.Wrap(err, "gemini response")
	}
	result.Model = model
	if resp.ModelVersion != "" {
		result.Model = resp.ModelVersion
	}
	result.Usage = llm.Usage{
		PromptTokens:     resp.UsageMetadata.PromptTokenCount,
		CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
		TotalTokens:      resp.UsageMetadata.TotalTokenCount,
	}
	return result, nil
}

func (c *Client) generate(ctx context.Context, model string, req GenerateRequest) (*GenerateResponse, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	endpoint := c.baseURL + "/models/" + url.PathEscape(model) + ":generateContent"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.config.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "failed to reach gemini")
	}
	defer resp.Body.Close()

	respBody, err := llm.ReadBody(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, llm.NewUpstreamError("gemini", resp.StatusCode, respBody)
	}

	var genResp GenerateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}
	return &genResp, nil
}

// IsConfigured returns true if the client has an API key
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}

// SetHTTPClient allows overriding the HTTP client for testing
// ⚠️ WARNING: Only use this in tests. Production code should use the default SSRF-safer client.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = httpclient.WrapClient(client)
}

// SetBaseURL allows overriding the API base for testing
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}
