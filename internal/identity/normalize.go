package identity

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ROM naming noise: region/dump tags in parens or brackets, disc and revision
// markers, and the ".nkit" infix some dumps carry.
var (
	tagPattern       = regexp.MustCompile(`(?i)(\.nkit|!|&|Disc\s+\d+|Rev\s+\w+|\s*\([^()]*\)|\s*\[[^\[\]]*\])`)
	archiveExtension = regexp.MustCompile(`(?i)\.(zip|rar|7z|gz|rom|iso|bin|cue|img)$`)
	whitespaceRuns   = regexp.MustCompile(`\s+`)
)

// CleanName turns a ROM filename into a search term: extension gone, region
// and dump tags stripped, whitespace collapsed.
func CleanName(filename string) string {
	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	name = archiveExtension.ReplaceAllString(name, "")
	name = tagPattern.ReplaceAllString(name, " ")
	name = whitespaceRuns.ReplaceAllString(name, " ")
	return strings.Trim(strings.TrimSpace(name), ".-_")
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeForCompare lowercases and strips diacritics so "Pokémon" and
// "pokemon" compare equal.
func normalizeForCompare(name string) string {
	folded, _, err := transform.String(foldTransformer, name)
	if err != nil {
		folded = name
	}
	return strings.ToLower(strings.TrimSpace(whitespaceRuns.ReplaceAllString(folded, " ")))
}

// similarity returns a normalized Levenshtein score in [0,1]: 1 is equality,
// 0 shares nothing. Both inputs are compared in normalized form.
func similarity(a, b string) float64 {
	na, nb := normalizeForCompare(a), normalizeForCompare(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	distance := fuzzy.LevenshteinDistance(na, nb)
	longest := len([]rune(na))
	if l := len([]rune(nb)); l > longest {
		longest = l
	}
	return 1 - float64(distance)/float64(longest)
}
