// Package llm holds the contract shared by every content generation backend:
// the Generator interface, request options, the structured result, and the
// upstream error type that keeps raw response bodies out of job records.
package llm

import (
	"context"
)

// Default sampling parameters for blog generation.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 4000
)

// SystemPrompt frames every backend as a blog writer.
const SystemPrompt = "You are a professional blog writer."

// Generator produces a structured blog post from a prompt.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string, opts Options) (*Result, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string, opts Options) (*Result, error)

// GenerateContent calls f.
func (f GeneratorFunc) GenerateContent(ctx context.Context, prompt string, opts Options) (*Result, error) {
	return f(ctx, prompt, opts)
}

// Options tunes a single generation. Zero values fall back to backend defaults.
type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string
}

// WithDefaults fills unset options.
func (o Options) WithDefaults() Options {
	if o.Temperature == 0 {
		o.Temperature = DefaultTemperature
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	return o
}

// Usage reports token accounting when the backend provides it.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Result is a generated post. Content is always non-empty HTML.
type Result struct {
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	Excerpt        string   `json:"excerpt"`
	SEOTitle       string   `json:"seo_title"`
	SEODescription string   `json:"seo_description"`
	Keywords       []string `json:"keywords"`

	Model string `json:"-"`
	Usage Usage  `json:"-"`
}
