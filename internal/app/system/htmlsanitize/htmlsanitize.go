// internal/app/system/htmlsanitize/htmlsanitize.go

// Package htmlsanitize sanitizes user-authored rich text (invitation
// messages, project descriptions) before storage and display.
package htmlsanitize

import (
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var policy = buildPolicy()

func buildPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class", "style").OnElements("table", "thead", "tbody", "tfoot", "tr", "th", "td")
	return p
}

// Sanitize strips unsafe HTML from s, keeping user-generated-content
// formatting (headings, lists, tables, links, images, code blocks).
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return policy.Sanitize(s)
}

// SanitizeToHTML sanitizes s and returns it as template.HTML for direct
// rendering.
func SanitizeToHTML(s string) template.HTML {
	return template.HTML(Sanitize(s))
}

// IsPlainText reports whether s appears to contain no HTML markup. A string
// must contain both '<' and '>' to be treated as HTML, so comparisons like
// "5 < 10" stay plain text.
func IsPlainText(s string) bool {
	return !(strings.Contains(s, "<") && strings.Contains(s, ">"))
}

// PlainTextToHTML escapes s and wraps it in a paragraph, converting
// newlines to <br>.
func PlainTextToHTML(s string) string {
	if s == "" {
		return ""
	}
	escaped := template.HTMLEscapeString(s)
	escaped = strings.ReplaceAll(escaped, "\n", "<br>")
	return "<p>" + escaped + "</p>"
}

// PrepareForDisplay renders stored content: plain text is escaped and
// paragraph-wrapped, HTML is sanitized.
func PrepareForDisplay(s string) template.HTML {
	if s == "" {
		return ""
	}
	if IsPlainText(s) {
		return template.HTML(PlainTextToHTML(s))
	}
	return SanitizeToHTML(s)
}
