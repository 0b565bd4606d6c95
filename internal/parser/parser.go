// Package parser derives note metadata (title, preview, inline tags) from
// Markdown content.
package parser

import (
	"regexp"
	"strings"
)

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

// PreviewLength caps the derived preview text.
const PreviewLength = 200

// Result holds the metadata derived from a note body.
type Result struct {
	Title   string
	Preview string
	Tags    []string
}

// Parse derives title, preview, and inline #tags from Markdown content.
func Parse(content string) Result {
	return Result{
		Title:   deriveTitle(content),
		Preview: derivePreview(content),
		Tags:    extractTags(content),
	}
}

// deriveTitle returns the first H1 heading, falling back to the first
// non-empty line.
func deriveTitle(content string) string {
	first := ""
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
		if first == "" {
			first = strings.TrimLeft(trimmed, "# ")
		}
	}
	return first
}

// derivePreview returns the first non-heading text of the body, flattened to
// a single line and capped at PreviewLength runes.
func derivePreview(content string) string {
	var parts []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		parts = append(parts, trimmed)
		if len(strings.Join(parts, " ")) >= PreviewLength {
			break
		}
	}
	preview := strings.Join(parts, " ")
	runes := []rune(preview)
	if len(runes) > PreviewLength {
		preview = string(runes[:PreviewLength])
	}
	return preview
}

// extractTags returns deduplicated inline #tags in order of appearance.
func extractTags(content string) []string {
	matches := tagRe.FindAllStringSubmatch(content, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		t := m[1]
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// MergeTags combines explicit tags with derived inline tags, preserving the
// explicit order and deduplicating.
func MergeTags(explicit, derived []string) []string {
	seen := make(map[string]struct{}, len(explicit)+len(derived))
	out := make([]string, 0, len(explicit)+len(derived))
	for _, t := range explicit {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, t := range derived {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
