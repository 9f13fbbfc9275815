// Package normalizer provides text canonicalization for fingerprinting and
// match scoring. Everything here is pure: any input, including the empty
// string, produces a best-effort output and never an error.
package normalizer

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	Register("lowercase", Lowercase)
	Register("trim", Trim)
	Register("fold_diacritics", FoldDiacritics)
	Register("collapse_whitespace", CollapseWhitespace)
	Register("strip_punctuation", StripPunctuation)
	Register("nstreet", NormalizeStreet)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Apply applies a named normalizer to a value
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldDiacritics strips Slovak (and general Latin) diacritics: á→a, č→c,
// ô→o, ľ→l. Falls back to the input when the transform fails.
func FoldDiacritics(s string) string {
	out, _, err := transform.String(diacriticStripper, s)
	if err != nil {
		return s
	}
	return out
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// CollapseWhitespace folds any whitespace run into a single space
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// StripPunctuation removes punctuation, keeping letters, digits and spaces
func StripPunctuation(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// streetAbbreviations maps Slovak street-type words to their short forms so
// "Hlavná ulica" and "Hlavná ul." normalize identically.
var streetAbbreviations = map[string]string{
	"ulica":     "ul",
	"ul.":       "ul",
	"namestie":  "nam",
	"nam.":      "nam",
	"cesta":     "c",
	"trieda":    "tr",
	"tr.":       "tr",
	"nabrezie":  "nabr",
	"nabr.":     "nabr",
	"sidlisko":  "sidl",
	"sidl.":     "sidl",
}

// NormalizeStreet canonicalizes a street token: folded, lowercased,
// abbreviation-normalized.
func NormalizeStreet(s string) string {
	s = CollapseWhitespace(Lowercase(FoldDiacritics(s)))
	words := strings.Fields(s)
	for i, w := range words {
		if abbr, ok := streetAbbreviations[w]; ok {
			words[i] = abbr
		}
	}
	return strings.Join(words, " ")
}
