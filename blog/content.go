package blog

import (
	"fmt"
	"time"
)

// GeneratedContent is what a generation backend returns.
type GeneratedContent struct {
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	Excerpt        string   `json:"excerpt"`
	SEOTitle       string   `json:"seo_title"`
	SEODescription string   `json:"seo_description"`
	Keywords       []string `json:"keywords"`
}

// Content is generated content persisted before it is published.
type Content struct {
	ID             string    `json:"contentId"`
	JobID          string    `json:"jobId"`
	SiteID         string    `json:"siteId"`
	TopicID        string    `json:"topicId"`
	Title          string    `json:"title"`
	Body           string    `json:"content"`
	Excerpt        string    `json:"excerpt"`
	SEOTitle       string    `json:"seoTitle"`
	SEODescription string    `json:"seoDescription"`
	Keywords       []string  `json:"keywords"`
	Provider       string    `json:"aiProvider"`
	Model          string    `json:"model,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ContentID derives the content record id from its job.
func ContentID(jobID string, at time.Time) string {
	return fmt.Sprintf("%s-%d", jobID, at.UnixMilli())
}
