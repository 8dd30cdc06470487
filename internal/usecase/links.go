package usecase

import (
	"regexp"
	"strings"
)

var linkPattern = regexp.MustCompile(`https?://[^\s<>"'()\[\]{}]+`)

// unlistedLinks returns the URLs in text that are not on the allow-list.
// Matching ignores a trailing slash, trailing punctuation and case.
func unlistedLinks(text string, allowed []string) []string {
	matches := linkPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	allow := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		allow[normalizeLink(a)] = struct{}{}
	}
	var out []string
	seen := make(map[string]struct{})
	for _, m := range matches {
		m = strings.TrimRight(m, ".,;:!?*_")
		key := normalizeLink(m)
		if _, ok := allow[key]; ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, m)
	}
	return out
}

func normalizeLink(s string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(s), "/"))
}
