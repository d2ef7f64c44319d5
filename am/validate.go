package am

import (
	"net/url"

	"github.com/teranos/autoblog/errors"
)

// knownProviders mirrors the provider enum without importing it.
var knownProviders = map[string]bool{
	"openai": true, "anthropic": true, "gemini": true, "openrouter": true, "local": true,
	"claude": true, "google": true, "ollama": true, "or": true,
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port != nil && *c.Server.Port <= 0 {
		return errors.Newf("server.port must be positive, got %d (omit for default %d)", *c.Server.Port, DefaultServerPort)
	}

	// Pulse workers: 0 = dispatch disabled, negative = invalid
	if c.Pulse.Workers < 0 {
		return errors.Newf("pulse.workers must be >= 0, got %d", c.Pulse.Workers)
	}
	if c.Pulse.QueueSize < 0 {
		return errors.Newf("pulse.queue_size must be >= 0, got %d", c.Pulse.QueueSize)
	}
	// Ticker interval: 0 = no periodic sweeps
	if c.Pulse.TickerIntervalSeconds < 0 {
		return errors.Newf("pulse.ticker_interval_seconds must be >= 0, got %d", c.Pulse.TickerIntervalSeconds)
	}
	if c.Pulse.SweepConcurrency < 0 {
		return errors.Newf("pulse.sweep_concurrency must be >= 0, got %d", c.Pulse.SweepConcurrency)
	}
	if c.Pulse.JobTimeoutSeconds < 0 {
		return errors.Newf("pulse.job_timeout_seconds must be >= 0, got %d", c.Pulse.JobTimeoutSeconds)
	}

	if !knownProviders[c.Generation.DefaultProvider] {
		return errors.Wrapf(errors.ErrConfiguration, "generation.default_provider %q is not a supported provider", c.Generation.DefaultProvider)
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return errors.Newf("generation.temperature must be within [0, 2], got %f", c.Generation.Temperature)
	}
	if c.Generation.MaxTokens <= 0 {
		return errors.Newf("generation.max_tokens must be > 0, got %d", c.Generation.MaxTokens)
	}
	if c.Generation.RequestsPerMinute < 0 {
		return errors.Newf("generation.requests_per_minute must be >= 0, got %d", c.Generation.RequestsPerMinute)
	}

	// Step timeouts must be bounded
	for name, secs := range map[string]int{
		"timeouts.validate_seconds": c.Timeouts.ValidateSeconds,
		"timeouts.generate_seconds": c.Timeouts.GenerateSeconds,
		"timeouts.publish_seconds":  c.Timeouts.PublishSeconds,
		"timeouts.health_seconds":   c.Timeouts.HealthSeconds,
	} {
		if secs <= 0 {
			return errors.Newf("%s must be > 0, got %d", name, secs)
		}
	}

	for name, p := range map[string]ProviderConfig{
		"openai":     c.Providers.OpenAI,
		"anthropic":  c.Providers.Anthropic,
		"gemini":     c.Providers.Gemini,
		"openrouter": c.Providers.OpenRouter,
		"local":      c.Providers.Local,
	} {
		if p.BaseURL == "" {
			continue
		}
		if u, err := url.Parse(p.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			return errors.Newf("providers.%s.base_url must be an absolute URL, got %q", name, p.BaseURL)
		}
	}

	return nil
}
