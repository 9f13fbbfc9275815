package normalizer

import (
	"strings"
)

// TextNormalizer canonicalizes listing titles and descriptions. The keyword
// list strips portal marketing furniture ("EXKLUZÍVNE!", "TOP ponuka") so it
// does not pollute hashes and similarity scores.
type TextNormalizer struct {
	boilerplate []string
}

// NewTextNormalizer builds a normalizer with the configured boilerplate
// keywords. Keywords are matched after diacritic folding and lowercasing.
func NewTextNormalizer(boilerplateKeywords []string) *TextNormalizer {
	keywords := make([]string, 0, len(boilerplateKeywords))
	for _, kw := range boilerplateKeywords {
		kw = CollapseWhitespace(Lowercase(FoldDiacritics(kw)))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return &TextNormalizer{boilerplate: keywords}
}

// NormalizeTitle canonicalizes a listing title for hashing and comparison
func (n *TextNormalizer) NormalizeTitle(s string) string {
	s = CollapseWhitespace(StripPunctuation(Lowercase(FoldDiacritics(s))))
	return n.stripBoilerplate(s)
}

// NormalizeDescription canonicalizes a listing description. Filler phrases
// are removed so near-verbatim text reused across portals still hashes
// identically.
func (n *TextNormalizer) NormalizeDescription(s string) string {
	s = CollapseWhitespace(StripPunctuation(Lowercase(FoldDiacritics(s))))
	return n.stripBoilerplate(s)
}

func (n *TextNormalizer) stripBoilerplate(s string) string {
	for _, kw := range n.boilerplate {
		s = strings.ReplaceAll(s, kw, " ")
	}
	return CollapseWhitespace(s)
}
