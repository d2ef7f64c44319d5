package llm

import (
	"fmt"
	"strings"

	"github.com/teranos/autoblog/blog"
)

// BuildPrompt renders the generation prompt for a topic. The same site and
// topic always produce the same prompt.
func BuildPrompt(site *blog.Site, topic *blog.Topic) string {
	settings := site.Settings.WithDefaults()

	var b strings.Builder
	fmt.Fprintf(&b, "Write a blog post about %q for the website %q.\n\n", topic.Title, site.Name)
	fmt.Fprintf(&b, "Tone: %s\n", settings.Tone)
	fmt.Fprintf(&b, "Target audience: %s\n", settings.Audience)
	fmt.Fprintf(&b, "Length: %s words\n", settings.Length)
	if d := strings.TrimSpace(topic.Description); d != "" {
		fmt.Fprintf(&b, "Topic details: %s\n", d)
	}
	if len(topic.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords to include: %s\n", strings.Join(topic.Keywords, ", "))
	}
	b.WriteString(`
Respond with a single JSON object and nothing else, using these keys:
  "title": the post title
  "content": the full post body as HTML (use <h2>, <p>, <ul> and similar tags, no <html> or <body>)
  "excerpt": a one or two sentence summary
  "seo_title": a search-friendly title under 60 characters
  "seo_description": a meta description under 160 characters
  "keywords": an array of 3 to 8 keywords
`)
	return b.String()
}
