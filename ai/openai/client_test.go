package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/autoblog/ai/llm"
	"github.com/teranos/autoblog/errors"
)

func newTestClient(t *testing.T, cfg Config, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(cfg)
	client.SetHTTPClient(server.Client())
	client.SetBaseURL(server.URL)
	return client
}

func completion(content string) ChatCompletionResponse {
	return ChatCompletionResponse{
		ID:    "chatcmpl-1",
		Model: "gpt-4o-2024-08-06",
		Choices: []Choice{{
			Message:      Message{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}
}

func TestClientDefaults(t *testing.T) {
	c := NewClient(Config{})
	assert.Equal(t, "openai", c.config.Name)
	assert.Equal(t, DefaultBaseURL, c.config.BaseURL)
	assert.Equal(t, DefaultModel, c.config.Model)
	assert.Equal(t, 120*time.Second, c.config.Timeout)

	c = NewClient(Config{BaseURL: "http://localhost:11434/v1/"})
	assert.Equal(t, "http://localhost:11434/v1", c.config.BaseURL)
}

func TestGenerateContent(t *testing.T) {
	var got ChatCompletionRequest
	client := newTestClient(t, Config{APIKey: "sk-test", RequireKey: true, JSONMode: true, Title: "autoblog"},
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
			assert.Equal(t, "autoblog", r.Header.Get("X-Title"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_ = json.NewEncoder(w).Encode(completion(`{"title":"Hello","content":"<p>World</p>","keywords":["a","b"]}`))
		})

	result, err := client.GenerateContent(context.Background(), "write about Go", llm.Options{Temperature: 0.5})
	require.NoError(t, err)

	assert.Equal(t, "Hello", result.Title)
	assert.Equal(t, "<p>World</p>", result.Content)
	assert.Equal(t, []string{"a", "b"}, result.Keywords)
	assert.Equal(t, "gpt-4o-2024-08-06", result.Model)
	assert.Equal(t, 30, result.Usage.TotalTokens)

	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, 0.5, got.Temperature)
	assert.Equal(t, llm.DefaultMaxTokens, got.MaxTokens)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, llm.SystemPrompt, got.Messages[0].Content)
	assert.Equal(t, "write about Go", got.Messages[1].Content)
}

func TestGenerateContentModelOverride(t *testing.T) {
	var model string
	client := newTestClient(t, Config{Name: "openrouter", APIKey: "k", Model: OpenRouterDefaultModel},
		func(w http.ResponseWriter, r *http.Request) {
			var req ChatCompletionRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			model = req.Model
			assert.Nil(t, req.ResponseFormat)
			resp := completion(`{"content":"<p>x</p>"}`)
			resp.Model = ""
			_ = json.NewEncoder(w).Encode(resp)
		})

	result, err := client.GenerateContent(context.Background(), "p", llm.Options{Model: "anthropic/claude-3.5-sonnet"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-3.5-sonnet", model)
	assert.Equal(t, "anthropic/claude-3.5-sonnet", result.Model)
}

func TestGenerateContentMissingKey(t *testing.T) {
	client := NewClient(Config{RequireKey: true})
	assert.False(t, client.IsConfigured())

	_, err := client.GenerateContent(context.Background(), "p", llm.Options{})
	require.Error(t, err)
	assert.True(t, errors.IsConfigurationError(err))

	local := NewClient(Config{Name: "local", BaseURL: LocalBaseURL})
	assert.True(t, local.IsConfigured())
}

func TestGenerateContentUpstreamError(t *testing.T) {
	client := newTestClient(t, Config{APIKey: "bad"}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided: bad","type":"invalid_request_error"}}`))
	})

	_, err := client.GenerateContent(context.Background(), "p", llm.Options{})
	require.Error(t, err)

	var up *llm.UpstreamError
	require.True(t, errors.As(err, &up))
	assert.Equal(t, "openai", up.Provider)
	assert.Equal(t, http.StatusUnauthorized, up.StatusCode)
	assert.Equal(t, "Incorrect API key provided: bad", up.Message)
	assert.NotContains(t, err.Error(), "invalid_request_error")
}

func TestGenerateContentUnparseable(t *testing.T) {
	client := newTestClient(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(completion("I am unable to write that."))
	})

	_, err := client.GenerateContent(context.Background(), "p", llm.Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, llm.ErrUnparseable))
}

func TestGenerateContentNoChoices(t *testing.T) {
	client := newTestClient(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ChatCompletionResponse{ID: "x"})
	})

	_, err := client.GenerateContent(context.Background(), "p", llm.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no response choices")
}

func TestGenerateContentHonorsContext(t *testing.T) {
	client := newTestClient(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.GenerateContent(ctx, "p", llm.Options{})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestGenerateContentOversizedResponse(t *testing.T) {
	client := newTestClient(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte(" "), llm.MaxResponseBytes+1))
	})

	_, err := client.GenerateContent(context.Background(), "p", llm.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "response exceeds")
}
