package pipeline

import (
	"time"

	"github.com/teranos/autoblog/ai/llm"
	"github.com/teranos/autoblog/am"
)

// Config bounds each external step of a job and tunes generation.
// Built once from am.Config and never mutated.
type Config struct {
	ValidateTimeout time.Duration
	GenerateTimeout time.Duration
	PublishTimeout  time.Duration

	// OrphanAfter is how long a job may sit in processing before recovery
	// treats it as abandoned. Matches the worker pool's task ceiling.
	OrphanAfter time.Duration
	Temperature float64
	MaxTokens   int
}

// DefaultConfig returns the step timeouts used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		ValidateTimeout: 10 * time.Second,
		GenerateTimeout: 90 * time.Second,
		PublishTimeout:  30 * time.Second,
		OrphanAfter:     10 * time.Minute,
		Temperature:     llm.DefaultTemperature,
		MaxTokens:       llm.DefaultMaxTokens,
	}
}

// ConfigFrom derives the pipeline configuration from am.Config.
func ConfigFrom(cfg *am.Config) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	c.ValidateTimeout = seconds(cfg.Timeouts.ValidateSeconds, c.ValidateTimeout)
	c.GenerateTimeout = seconds(cfg.Timeouts.GenerateSeconds, c.GenerateTimeout)
	c.PublishTimeout = seconds(cfg.Timeouts.PublishSeconds, c.PublishTimeout)
	c.OrphanAfter = seconds(cfg.Pulse.JobTimeoutSeconds, c.OrphanAfter)
	if cfg.Generation.Temperature > 0 {
		c.Temperature = cfg.Generation.Temperature
	}
	if cfg.Generation.MaxTokens > 0 {
		c.MaxTokens = cfg.Generation.MaxTokens
	}
	return c
}

func seconds(n int, fallback time.Duration) time.Duration {
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}
