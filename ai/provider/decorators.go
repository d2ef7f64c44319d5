package provider

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/autoblog/ai/llm"
	"github.com/teranos/autoblog/ai/tracker"
	"github.com/teranos/autoblog/errors"
	"github.com/teranos/autoblog/logger"
	"github.com/teranos/autoblog/metrics"
)

// RateLimited caps calls to requestsPerMinute, waiting for a token while ctx
// allows. A non-positive limit returns gen unchanged.
func RateLimited(gen llm.Generator, requestsPerMinute int) llm.Generator {
	if requestsPerMinute <= 0 {
		return gen
	}
	limiter := rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1)
	return llm.GeneratorFunc(func(ctx context.Context, prompt string, opts llm.Options) (*llm.Result, error) {
		if err := limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "generation rate limit wait")
		}
		return gen.GenerateContent(ctx, prompt, opts)
	})
}

// Tracked records each call in ai_model_usage. The entity is the job id
// carried by ctx. Tracking failures are logged and never fail the call.
func Tracked(gen llm.Generator, p Provider, defaultModel string, t *tracker.UsageTracker, log *zap.SugaredLogger) llm.Generator {
	return llm.GeneratorFunc(func(ctx context.Context, prompt string, opts llm.Options) (*llm.Result, error) {
		requestTime := time.Now()
		result, err := gen.GenerateContent(ctx, prompt, opts)
		responseTime := time.Now()

		withDefaults := opts.WithDefaults()
		usage := &tracker.ModelUsage{
			OperationType:     tracker.OperationBlogGeneration,
			EntityType:        tracker.EntityJob,
			EntityID:          logger.JobIDFromContext(ctx),
			ModelName:         modelOr(opts.Model, defaultModel),
			ModelProvider:     string(p),
			ModelConfig:       tracker.NewModelConfig(&withDefaults.Temperature, &withDefaults.MaxTokens),
			RequestTimestamp:  requestTime,
			ResponseTimestamp: &responseTime,
			Success:           err == nil,
		}
		if err != nil {
			msg := llm.Truncate(err.Error(), 500)
			usage.ErrorMessage = &msg
		} else {
			if result.Model != "" {
				usage.ModelName = result.Model
			}
			if result.Usage.TotalTokens > 0 {
				tokens := result.Usage.TotalTokens
				usage.TokensUsed = &tokens
			}
		}

		// Record even when the caller's ctx is already done
		trackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if trackErr := t.TrackUsage(trackCtx, usage); trackErr != nil {
			log.Warnw("Failed to track usage",
				logger.FieldError, trackErr,
				logger.FieldProvider, p,
				logger.FieldJobID, usage.EntityID,
			)
		}
		return result, err
	})
}

// Instrumented reports call counts and latency per provider.
func Instrumented(gen llm.Generator, p Provider, r metrics.Recorder) llm.Generator {
	return llm.GeneratorFunc(func(ctx context.Context, prompt string, opts llm.Options) (*llm.Result, error) {
		start := time.Now()
		result, err := gen.GenerateContent(ctx, prompt, opts)
		r.ObserveGeneration(string(p), err == nil, time.Since(start))
		return result, err
	})
}
