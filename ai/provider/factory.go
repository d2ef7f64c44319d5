package provider

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/autoblog/ai/anthropic"
	"github.com/teranos/autoblog/ai/gemini"
	"github.com/teranos/autoblog/ai/llm"
	"github.com/teranos/autoblog/ai/openai"
	"github.com/teranos/autoblog/ai/tracker"
	"github.com/teranos/autoblog/am"
	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/errors"
	"github.com/teranos/autoblog/metrics"
)

// entry is a built generator or the reason it could not be built.
type entry struct {
	gen   llm.Generator
	model string
	err   error
}

// Factory hands out one generator per provider, built from configuration
// once. Every generator is rate limited per provider and usage tracked.
type Factory struct {
	mu              sync.RWMutex
	entries         map[Provider]entry
	defaultProvider string
	logger          *zap.SugaredLogger
}

// Option customizes a Factory
type Option func(*factoryOptions)

type factoryOptions struct {
	tracker  *tracker.UsageTracker
	recorder metrics.Recorder
	logger   *zap.SugaredLogger
}

// WithUsageTracker records every generation in ai_model_usage
func WithUsageTracker(t *tracker.UsageTracker) Option {
	return func(o *factoryOptions) { o.tracker = t }
}

// WithRecorder reports generation metrics
func WithRecorder(r metrics.Recorder) Option {
	return func(o *factoryOptions) { o.recorder = r }
}

// WithLogger sets the logger handed to clients
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *factoryOptions) { o.logger = l }
}

// NewFactory builds every provider variant from cfg. Providers that cannot be
// used (no API key) are remembered with their configuration error.
func NewFactory(cfg *am.Config, opts ...Option) *Factory {
	o := factoryOptions{recorder: metrics.Noop{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop().Sugar()
	}

	timeout := time.Duration(cfg.Timeouts.GenerateSeconds) * time.Second
	f := &Factory{
		entries:         make(map[Provider]entry),
		defaultProvider: cfg.Generation.DefaultProvider,
		logger:          o.logger,
	}

	for _, p := range All() {
		pc := providerConfig(cfg, p)
		gen, model, err := buildClient(p, pc, timeout, cfg.HTTP.BlockPrivateIPs, o.logger)
		if err != nil {
			f.entries[p] = entry{err: err}
			continue
		}
		gen = RateLimited(gen, cfg.Generation.RequestsPerMinute)
		gen = Instrumented(gen, p, o.recorder)
		if o.tracker != nil {
			gen = Tracked(gen, p, model, o.tracker, o.logger)
		}
		f.entries[p] = entry{gen: gen, model: model}
	}
	return f
}

// Register installs a generator for a provider, replacing any configured one
func (f *Factory) Register(p Provider, gen llm.Generator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[p] = entry{gen: gen}
}

// Generator returns the generator for p or a configuration error
func (f *Factory) Generator(p Provider) (llm.Generator, error) {
	f.mu.RLock()
	e, ok := f.entries[p]
	f.mu.RUnlock()
	if !ok {
		return nil, errors.NewConfigurationError("AI provider %q is not available", p)
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.gen, nil
}

// ForSite resolves the generator named by site settings, falling back to the
// configured default provider.
func (f *Factory) ForSite(settings blog.SiteSettings) (llm.Generator, Provider, error) {
	name := settings.AIProvider
	if name == "" {
		name = f.defaultProvider
	}
	p, err := ParseProvider(name)
	if err != nil {
		return nil, "", err
	}
	gen, err := f.Generator(p)
	if err != nil {
		return nil, p, err
	}
	return gen, p, nil
}

// Available lists providers that can be used
func (f *Factory) Available() []Provider {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []Provider
	for _, p := range All() {
		if e, ok := f.entries[p]; ok && e.err == nil {
			out = append(out, p)
		}
	}
	return out
}

func providerConfig(cfg *am.Config, p Provider) am.ProviderConfig {
	switch p {
	case ProviderAnthropic:
		return cfg.Providers.Anthropic
	case ProviderGemini:
		return cfg.Providers.Gemini
	case ProviderOpenRouter:
		return cfg.Providers.OpenRouter
	case ProviderLocal:
		return cfg.Providers.Local
	default:
		return cfg.Providers.OpenAI
	}
}

// buildClient creates the raw client for a provider. Local servers need no
// key and live on loopback, so private IP blocking is relaxed for them only.
func buildClient(p Provider, pc am.ProviderConfig, timeout time.Duration, blockPrivate bool, logger *zap.SugaredLogger) (llm.Generator, string, error) {
	if p != ProviderLocal && pc.APIKey == "" {
		return nil, "", errors.NewConfigurationError("%s API key not configured", p)
	}
	named := logger.Named("ai." + string(p))

	switch p {
	case ProviderAnthropic:
		c := anthropic.NewClient(anthropic.Config{APIKey: pc.APIKey, Model: pc.Model, BaseURL: pc.BaseURL, Timeout: timeout, Logger: named})
		return c, modelOr(pc.Model, anthropic.DefaultModel), nil
	case ProviderGemini:
		c := gemini.NewClient(gemini.Config{APIKey: pc.APIKey, Model: pc.Model, BaseURL: pc.BaseURL, Timeout: timeout, Logger: named})
		return c, modelOr(pc.Model, gemini.DefaultModel), nil
	case ProviderOpenRouter:
		c := openai.NewClient(openai.Config{
			Name: string(p), APIKey: pc.APIKey, RequireKey: true,
			BaseURL: baseOr(pc.BaseURL, openai.OpenRouterBaseURL), Model: modelOr(pc.Model, openai.OpenRouterDefaultModel),
			Title: "autoblog", Timeout: timeout, BlockPrivateIP: blockPrivate, Logger: named,
		})
		return c, modelOr(pc.Model, openai.OpenRouterDefaultModel), nil
	case ProviderLocal:
		c := openai.NewClient(openai.Config{
			Name: string(p), APIKey: pc.APIKey,
			BaseURL: baseOr(pc.BaseURL, openai.LocalBaseURL), Model: modelOr(pc.Model, openai.LocalDefaultModel),
			JSONMode: true, Timeout: timeout, BlockPrivateIP: false, Logger: named,
		})
		return c, modelOr(pc.Model, openai.LocalDefaultModel), nil
	default:
		c := openai.NewClient(openai.Config{
			Name: string(p), APIKey: pc.APIKey, RequireKey: true,
			BaseURL: baseOr(pc.BaseURL, openai.DefaultBaseURL), Model: modelOr(pc.Model, openai.DefaultModel),
			JSONMode: true, Timeout: timeout, BlockPrivateIP: blockPrivate, Logger: named,
		})
		return c, modelOr(pc.Model, openai.DefaultModel), nil
	}
}

func modelOr(model, fallback string) string {
	if model == "" {
		return fallback
	}
	return model
}

func baseOr(base, fallback string) string {
	if base == "" {
		return fallback
	}
	return base
}
