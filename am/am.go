package am

import "fmt"

// Config represents the autoblog configuration
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Server     ServerConfig     `mapstructure:"server"`
	Pulse      PulseConfig      `mapstructure:"pulse"`
	Generation GenerationConfig `mapstructure:"generation"`
	Timeouts   TimeoutsConfig   `mapstructure:"timeouts"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Port           *int     `mapstructure:"port"` // nil = DefaultServerPort, 0 is invalid
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DefaultServerPort is used when server.port is omitted
const DefaultServerPort = 8787

// PulseConfig configures the async dispatcher and the schedule ticker
type PulseConfig struct {
	Workers               int `mapstructure:"workers"`                 // concurrent job workers (default: 2)
	QueueSize             int `mapstructure:"queue_size"`              // buffered dispatch slots (default: 256)
	TickerIntervalSeconds int `mapstructure:"ticker_interval_seconds"` // sweep period, 0 disables the ticker (default: 60)
	SweepConcurrency      int `mapstructure:"sweep_concurrency"`       // schedules processed in parallel (default: 8)
	JobTimeoutSeconds     int `mapstructure:"job_timeout_seconds"`     // ceiling for a whole RunJob (default: 600)
}

// GenerationConfig configures AI content generation
type GenerationConfig struct {
	DefaultProvider   string  `mapstructure:"default_provider"`    // used when a site names none (default: openai)
	Temperature       float64 `mapstructure:"temperature"`         // sampling temperature (default: 0.7)
	MaxTokens         int     `mapstructure:"max_tokens"`          // response token ceiling (default: 4000)
	RequestsPerMinute int     `mapstructure:"requests_per_minute"` // per provider, 0 = unlimited (default: 10)
}

// TimeoutsConfig bounds each external step of a job
type TimeoutsConfig struct {
	ValidateSeconds int `mapstructure:"validate_seconds"` // default: 10
	GenerateSeconds int `mapstructure:"generate_seconds"` // default: 90
	PublishSeconds  int `mapstructure:"publish_seconds"`  // default: 30
	HealthSeconds   int `mapstructure:"health_seconds"`   // default: 10
}

// HTTPConfig configures outbound HTTP
type HTTPConfig struct {
	BlockPrivateIPs bool `mapstructure:"block_private_ips"` // refuse loopback/private targets (default: true)
}

// ProvidersConfig holds credentials and models per AI backend
type ProvidersConfig struct {
	OpenAI     ProviderConfig `mapstructure:"openai"`
	Anthropic  ProviderConfig `mapstructure:"anthropic"`
	Gemini     ProviderConfig `mapstructure:"gemini"`
	OpenRouter ProviderConfig `mapstructure:"openrouter"`
	Local      ProviderConfig `mapstructure:"local"`
}

// ProviderConfig configures a single AI backend
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// File and directory permission constants
const (
	DefaultDirPermissions = 0755
)

// GetServerPort returns the configured port or DefaultServerPort
func (c *Config) GetServerPort() int {
	if c.Server.Port == nil {
		return DefaultServerPort
	}
	return *c.Server.Port
}

// GetDatabasePath returns the configured database path
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return "autoblog.db"
	}
	return c.Database.Path
}

// String returns a string representation of the config without secrets
func (c *Config) String() string {
	return fmt.Sprintf("Config{Database: %s, Pulse: {Workers: %d, Ticker: %ds}, Generation: {Provider: %s}}",
		c.GetDatabasePath(), c.Pulse.Workers, c.Pulse.TickerIntervalSeconds, c.Generation.DefaultProvider)
}
