package usecase

import (
	"regexp"
	"sort"
)

// citationPattern matches bracketed source identifiers such as
// [2401.12345v2] or [math/0211159v1]. Identifiers never contain
// whitespace, which keeps prose in brackets out of the match set.
var citationPattern = regexp.MustCompile(`\[([^\[\]\s]+)\]`)

// ExtractCitations returns the bracketed identifiers found in text, in
// order of first appearance, without duplicates.
func ExtractCitations(text string) []string {
	matches := citationPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{}, len(matches))
	var ids []string
	for _, m := range matches {
		id := m[1]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// SanitizeCitations drops identifiers that do not appear in allowed and
// returns the remainder sorted ascending. The generator is instructed to
// cite only input articles, but its output is never trusted.
func SanitizeCitations(found, allowed []string) []string {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, id := range allowed {
		allowedSet[id] = struct{}{}
	}

	kept := make([]string, 0, len(found))
	for _, id := range found {
		if _, ok := allowedSet[id]; ok {
			kept = append(kept, id)
		}
	}
	sort.Strings(kept)
	return kept
}
