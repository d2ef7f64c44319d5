package am

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "autoblog.db")

	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"http://127.0.0.1",
	})

	// Pulse (dispatch + scheduling) defaults
	v.SetDefault("pulse.workers", 2)
	v.SetDefault("pulse.queue_size", 256)
	v.SetDefault("pulse.ticker_interval_seconds", 60)
	v.SetDefault("pulse.sweep_concurrency", 8)
	v.SetDefault("pulse.job_timeout_seconds", 600)

	v.SetDefault("generation.default_provider", "openai")
	v.SetDefault("generation.temperature", 0.7)
	v.SetDefault("generation.max_tokens", 4000)
	v.SetDefault("generation.requests_per_minute", 10)

	v.SetDefault("timeouts.validate_seconds", 10)
	v.SetDefault("timeouts.generate_seconds", 90)
	v.SetDefault("timeouts.publish_seconds", 30)
	v.SetDefault("timeouts.health_seconds", 10)

	v.SetDefault("http.block_private_ips", true)

	v.SetDefault("providers.openai.model", "gpt-4")
	v.SetDefault("providers.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("providers.anthropic.model", "claude-3-5-sonnet-20241022")
	v.SetDefault("providers.anthropic.base_url", "https://api.anthropic.com/v1")
	v.SetDefault("providers.gemini.model", "gemini-1.5-pro")
	v.SetDefault("providers.gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("providers.openrouter.model", "openai/gpt-4o-mini")
	v.SetDefault("providers.openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("providers.local.model", "llama3.2:3b")
	v.SetDefault("providers.local.base_url", "http://localhost:11434/v1")
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment
// variables. Vendor-standard names are accepted alongside the AUTOBLOG_ ones.
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("database.path", "AUTOBLOG_DATABASE_PATH")

	v.BindEnv("providers.openai.api_key", "AUTOBLOG_OPENAI_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("providers.anthropic.api_key", "AUTOBLOG_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	v.BindEnv("providers.gemini.api_key", "AUTOBLOG_GEMINI_API_KEY", "GEMINI_API_KEY")
	v.BindEnv("providers.openrouter.api_key", "AUTOBLOG_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")
	v.BindEnv("providers.local.base_url", "AUTOBLOG_LOCAL_BASE_URL")
}
