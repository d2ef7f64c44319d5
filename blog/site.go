package blog

import "time"

// Site settings defaults.
const (
	DefaultTone     = "professional"
	DefaultAudience = "general readers"
	DefaultLength   = "800-1200"
)

// SiteSettings is the immutable per-site generation and publishing
// configuration. It is passed by value through the pipeline.
type SiteSettings struct {
	Tone              string `json:"tone,omitempty" yaml:"tone,omitempty" toml:"tone,omitempty"`
	Audience          string `json:"targetAudience,omitempty" yaml:"audience,omitempty" toml:"audience,omitempty"`
	Length            string `json:"contentLength,omitempty" yaml:"length,omitempty" toml:"length,omitempty"`
	AutoPublish       bool   `json:"autoPublish" yaml:"auto_publish" toml:"auto_publish"`
	AIProvider        string `json:"aiProvider,omitempty" yaml:"ai_provider,omitempty" toml:"ai_provider,omitempty"`
	Model             string `json:"model,omitempty" yaml:"model,omitempty" toml:"model,omitempty"`
	DefaultCategories []int  `json:"defaultCategories,omitempty" yaml:"default_categories,omitempty" toml:"default_categories,omitempty"`
}

// WithDefaults returns a copy with empty fields filled in.
func (s SiteSettings) WithDefaults() SiteSettings {
	if s.Tone == "" {
		s.Tone = DefaultTone
	}
	if s.Audience == "" {
		s.Audience = DefaultAudience
	}
	if s.Length == "" {
		s.Length = DefaultLength
	}
	return s
}

// Site is a WordPress publishing target.
type Site struct {
	ID          string       `json:"siteId"`
	UserID      string       `json:"userId"`
	Name        string       `json:"name"`
	URL         string       `json:"url"`
	Username    string       `json:"username"`
	AppPassword string       `json:"-"` // opaque credential, never serialized
	Settings    SiteSettings `json:"settings"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// SiteHealth is the outcome of a single reachability probe.
type SiteHealth struct {
	SiteID       string        `json:"siteId"`
	Healthy      bool          `json:"healthy"`
	StatusCode   int           `json:"statusCode,omitempty"`
	ResponseTime time.Duration `json:"-"`
	Error        string        `json:"error,omitempty"`
	CheckedAt    time.Time     `json:"checkedAt"`
}

// ResponseTimeMS is the probe latency in milliseconds.
func (h SiteHealth) ResponseTimeMS() int64 {
	return h.ResponseTime.Milliseconds()
}
