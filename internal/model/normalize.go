package model

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeSlug returns the canonical form of a slug: NFC normalized,
// trimmed and lowercased. Distinct byte sequences that render the same
// ("café" composed vs decomposed) map to one slug.
func NormalizeSlug(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(s)))
}

// NormalizeSlugs normalizes every slug, drops empties and duplicates, and
// keeps the first-seen order.
func NormalizeSlugs(slugs []string) []string {
	return normalizeList(slugs, NormalizeSlug)
}

// NormalizeTags normalizes tags like slugs and sorts them, since tag order
// carries no meaning.
func NormalizeTags(tags []string) []string {
	out := normalizeList(tags, NormalizeSlug)
	sort.Strings(out)
	return out
}

func normalizeList(in []string, fn func(string) string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		v := fn(s)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
