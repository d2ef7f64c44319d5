package blog

import (
	"time"

	"github.com/teranos/autoblog/errors"
)

// TopicStatus is the editorial state of a topic.
type TopicStatus string

const (
	TopicPending   TopicStatus = "pending"
	TopicApproved  TopicStatus = "approved"
	TopicPublished TopicStatus = "published"
	TopicRejected  TopicStatus = "rejected"
)

// ParseTopicStatus converts a stored or user-supplied string into a TopicStatus.
func ParseTopicStatus(s string) (TopicStatus, error) {
	switch TopicStatus(s) {
	case TopicPending, TopicApproved, TopicPublished, TopicRejected:
		return TopicStatus(s), nil
	}
	return "", errors.NewInvalidRequestError("unknown topic status %q", s)
}

// Topic is a post idea for a site. Only approved topics are eligible for
// publication.
type Topic struct {
	ID              string      `json:"topicId"`
	SiteID          string      `json:"siteId"`
	UserID          string      `json:"userId"`
	Title           string      `json:"title"`
	Description     string      `json:"description,omitempty"`
	Keywords        []string    `json:"keywords,omitempty"`
	Priority        int         `json:"priority"`
	Status          TopicStatus `json:"status"`
	PublishedAt     *time.Time  `json:"publishedAt,omitempty"`
	WordPressPostID *int64      `json:"wordpressPostId,omitempty"`
	LastJobID       string      `json:"lastJobId,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// Eligible reports whether the topic may be picked for publication.
func (t *Topic) Eligible() bool {
	return t.Status == TopicApproved
}
