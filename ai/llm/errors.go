package llm

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/teranos/autoblog/errors"
)

// MaxUpstreamMessage bounds the upstream text carried in an error.
const MaxUpstreamMessage = 200

// MaxResponseBytes bounds how much of a backend response is read.
const MaxResponseBytes = 8 << 20

// ReadBody reads a backend response body, failing instead of buffering
// anything past MaxResponseBytes.
func ReadBody(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, MaxResponseBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}
	if len(body) > MaxResponseBytes {
		return nil, errors.Newf("response exceeds %d bytes", MaxResponseBytes)
	}
	return body, nil
}

// UpstreamError is a non-success response from a generation backend.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// NewUpstreamError builds an UpstreamError from a response body. Only the
// provider's error message survives, truncated; anything else in the body is
// dropped.
func NewUpstreamError(provider string, statusCode int, body []byte) *UpstreamError {
	msg := extractErrorMessage(body)
	if msg == "" {
		msg = http.StatusText(statusCode)
	}
	if msg == "" {
		msg = "unexpected response"
	}
	return &UpstreamError{Provider: provider, StatusCode: statusCode, Message: Truncate(msg, MaxUpstreamMessage)}
}

// extractErrorMessage understands the OpenAI, Anthropic and Gemini error
// shapes, which all nest a message under "error".
func extractErrorMessage(body []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 {
		return ""
	}
	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &nested); err == nil && nested.Message != "" {
		return strings.TrimSpace(nested.Message)
	}
	var flat string
	if err := json.Unmarshal(envelope.Error, &flat); err == nil {
		return strings.TrimSpace(flat)
	}
	return ""
}

// Truncate cuts s to at most n bytes without splitting a rune.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
