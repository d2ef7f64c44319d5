// Package provider selects and decorates content generators. The set of
// backends is closed: ParseProvider rejects anything it does not know.
package provider

import (
	"strings"

	"github.com/teranos/autoblog/errors"
)

// Provider represents an AI generation backend
type Provider string

const (
	// ProviderOpenAI uses the OpenAI chat completions API
	ProviderOpenAI Provider = "openai"
	// ProviderAnthropic uses the Anthropic Messages API
	ProviderAnthropic Provider = "anthropic"
	// ProviderGemini uses the Google Gemini API
	ProviderGemini Provider = "gemini"
	// ProviderOpenRouter uses OpenRouter.ai
	ProviderOpenRouter Provider = "openrouter"
	// ProviderLocal uses a local OpenAI-compatible server (Ollama, LocalAI)
	ProviderLocal Provider = "local"
)

// All lists every provider
func All() []Provider {
	return []Provider{ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderOpenRouter, ProviderLocal}
}

// ParseProvider converts a site or config string to a Provider.
// Empty selects OpenAI.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai", "":
		return ProviderOpenAI, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "gemini", "google":
		return ProviderGemini, nil
	case "openrouter", "or":
		return ProviderOpenRouter, nil
	case "local", "ollama", "localai":
		return ProviderLocal, nil
	default:
		return "", errors.NewConfigurationError("unknown AI provider %q (valid: openai, anthropic, gemini, openrouter, local)", s)
	}
}

func (p Provider) String() string {
	return string(p)
}
