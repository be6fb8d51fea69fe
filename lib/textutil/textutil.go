package textutil

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeSlug turns a genre/shelf label into the site's slug form,
// e.g. "Science Fiction" -> "science-fiction".
func NormalizeSlug(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "-")
	return name
}

// MatchSlug reports whether two genre/shelf labels refer to the same
// thing. Exact slug equality first; for longer slugs a Levenshtein
// distance of 1 tolerates the site's occasional respellings
// ("sci-fi-fantasy" vs "scifi-fantasy").
func MatchSlug(a, b string) bool {
	a = NormalizeSlug(a)
	b = NormalizeSlug(b)
	if a == b {
		return true
	}
	if len(a) < 5 || len(b) < 5 {
		return false
	}
	return matchr.Levenshtein(a, b) <= 1
}

// ContainsSlug reports whether any label in set matches name.
func ContainsSlug(set []string, name string) bool {
	for _, s := range set {
		if MatchSlug(s, name) {
			return true
		}
	}
	return false
}
