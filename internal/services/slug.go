package services

import (
	"regexp"
	"strings"
)

var (
	slugStripRe    = regexp.MustCompile(`[^\w\s_-]`)
	slugCollapseRe = regexp.MustCompile(`[\s_-]+`)
)

// Slugify normalizes a topic label into the match key used across graphs:
// lower-cased, trimmed, non-word characters stripped, whitespace/underscore/
// hyphen runs collapsed to a single hyphen, leading/trailing hyphens
// trimmed. Idempotent: Slugify(Slugify(x)) == Slugify(x).
func Slugify(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	s = slugStripRe.ReplaceAllString(s, "")
	s = slugCollapseRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// NormalizeAliases slugifies each alias, dropping empties and duplicates
// while preserving order.
func NormalizeAliases(aliases []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(aliases))
	for _, a := range aliases {
		s := Slugify(a)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
