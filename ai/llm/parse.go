package llm

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/teranos/autoblog/errors"
)

// ErrUnparseable is returned when backend output holds no usable post.
var ErrUnparseable = errors.New("unparseable generation output")

var (
	fenceRe   = regexp.MustCompile("(?s)^\\s*```[a-zA-Z]*\\s*\n?(.*?)\\s*```\\s*$")
	htmlTagRe = regexp.MustCompile(`(?i)<(p|h[1-6]|ul|ol|li|div|section|article|blockquote|br|strong|em)[\s>/]`)
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// ParseResult turns raw backend text into a Result. It tolerates code fences
// and prose around the JSON object. Markdown bodies are rendered to HTML.
func ParseResult(raw string) (*Result, error) {
	text := StripFences(raw)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, errors.Wrap(ErrUnparseable, "no JSON object in output")
	}

	var r Result
	if err := json.Unmarshal([]byte(text[start:end+1]), &r); err != nil {
		return nil, errors.Wrapf(ErrUnparseable, "invalid JSON: %s", err.Error())
	}
	r.Content = StripFences(r.Content)
	if strings.TrimSpace(r.Content) == "" {
		return nil, errors.Wrap(ErrUnparseable, "missing content")
	}
	if !looksLikeHTML(r.Content) {
		html, err := RenderMarkdown(r.Content)
		if err != nil {
			return nil, err
		}
		r.Content = html
	}
	r.Title = strings.TrimSpace(r.Title)
	return &r, nil
}

// StripFences removes a surrounding ``` or ```html fence.
func StripFences(s string) string {
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return strings.TrimSpace(s)
}

// RenderMarkdown converts Markdown to HTML.
func RenderMarkdown(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", errors.Wrap(err, "failed to render markdown")
	}
	return strings.TrimSpace(buf.String()), nil
}

func looksLikeHTML(s string) bool {
	return htmlTagRe.MatchString(s)
}
