// Package openai implements content generation against OpenAI-compatible chat
// completion APIs. The same client serves OpenAI, OpenRouter and local
// Ollama/LocalAI servers, which differ only in base URL, key and model.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/autoblog/ai/llm"
	"github.com/teranos/autoblog/errors"
	"github.com/teranos/autoblog/internal/httpclient"
)

const (
	// DefaultBaseURL is the OpenAI API endpoint
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultModel is used when neither config nor options name a model
	DefaultModel = "gpt-4o"

	// OpenRouterBaseURL is the OpenRouter endpoint
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	// OpenRouterDefaultModel is the OpenRouter fallback model
	OpenRouterDefaultModel = "openai/gpt-4o-mini"

	// LocalBaseURL is Ollama's OpenAI-compatible endpoint
	LocalBaseURL = "http://localhost:11434/v1"
	// LocalDefaultModel is the local fallback model
	LocalDefaultModel = "llama3.1"
)

// Client is an OpenAI-compatible chat completions client.
type Client struct {
	config     Config
	httpClient *httpclient.SaferClient
	logger     *zap.SugaredLogger
}

// Config holds client configuration
type Config struct {
	Name       string // provider label for errors and logs (default: "openai")
	APIKey     string // empty is allowed only when RequireKey is false
	RequireKey bool
	BaseURL    string
	Model      string
	JSONMode   bool // request response_format json_object
	Title      string // X-Title header, used by OpenRouter dashboards
	Timeout    time.Duration
	// BlockPrivateIP refuses loopback/private targets; local servers need false
	BlockPrivateIP bool
	Logger         *zap.SugaredLogger // nil = nop logger
}

// NewClient creates a client with defaults applied.
func NewClient(config Config) *Client {
	if config.Name == "" {
		config.Name = "openai"
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Timeout == 0 {
		config.Timeout = 120 * time.Second
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	blockPrivateIP := config.BlockPrivateIP
	saferClient := httpclient.NewSaferClientWithOptions(config.Timeout, httpclient.SaferClientOptions{
		BlockPrivateIP: &blockPrivateIP,
	})

	return &Client{
		config:     config,
		httpClient: saferClient,
		logger:     logger,
	}
}

// ChatCompletionRequest is the wire request for /chat/completions
type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ResponseFormat selects structured output
type ResponseFormat struct {
	Type string `json:"type"`
}

// Message is a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse is the wire response
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice is a completion choice
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage is token accounting
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerateContent implements llm.Generator.
func (c *Client) GenerateContent(ctx context.Context, prompt string, opts llm.Options) (*llm.Result, error) {
	if c.config.RequireKey && c.config.APIKey == "" {
		return nil, errors.NewConfigurationError("%s API key not configured", c.config.Name)
	}
	opts = opts.WithDefaults()
	model := c.config.Model
	if opts.Model != "" {
		model = opts.Model
	}

	req := ChatCompletionRequest{
		Model: model,
		Messages: []Message{
			{Role: "system", Content: llm.SystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if c.config.JSONMode {
		req.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}

	c.logger.Debugw("Chat completion request",
		"provider", c.config.Name,
		"model", model,
		"temperature", opts.Temperature,
		"max_tokens", opts.MaxTokens,
		"prompt_length", len(prompt),
	)

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.Newf("no response choices from %s", c.config.Name)
	}

	result, err := llm.ParseResult(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, errors.Wrapf(err, "%s response", c.config.Name)
	}
	result.Model = model
	if resp.Model != "" {
		result.Model = resp.Model
	}
	result.Usage = llm.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}

	c.logger.Debugw("Chat completion response",
		"provider", c.config.Name,
		"model", result.Model,
		"content_length", len(result.Content),
		"total_tokens", resp.Usage.TotalTokens,
	)
	return result, nil
}

// CreateChatCompletion sends a raw chat completion request.
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	if c.config.Title != "" {
		httpReq.Header.Set("X-Title", c.config.Title)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to reach %s", c.config.Name)
	}
	defer resp.Body.Close()

	respBody, err := llm.ReadBody(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, llm.NewUpstreamError(c.config.Name, resp.StatusCode, respBody)
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}
	return &chatResp, nil
}

// IsConfigured reports whether the client can authenticate
func (c *Client) IsConfigured() bool {
	return !c.config.RequireKey || c.config.APIKey != ""
}

// SetHTTPClient allows overriding the HTTP client for testing
// ⚠️ WARNING: Only use this in tests. Production code should use the default SSRF-safer client.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = httpclient.WrapClient(client)
}

// SetBaseURL points the client at another endpoint (tests, proxies)
func (c *Client) SetBaseURL(baseURL string) {
	c.config.BaseURL = strings.TrimRight(baseURL, "/")
}
