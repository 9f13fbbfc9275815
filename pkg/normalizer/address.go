package normalizer

import (
	"regexp"
	"strings"
)

// Address is the best-effort decomposition of a free-text address. Tokens
// that cannot be resolved stay in Street untouched rather than being dropped.
type Address struct {
	Street   string
	Number   string
	District string
	City     string
}

// Key returns the canonical comparable form of the address
func (a Address) Key() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.Street, a.Number, a.District, a.City} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "|")
}

var houseNumberRe = regexp.MustCompile(`^\d+(/\d+)?[a-z]?$`)

// knownDistricts covers the Bratislava and Košice city districts that
// portals routinely put into the address line instead of a district field.
var knownDistricts = map[string]bool{
	"stare mesto":  true,
	"ruzinov":      true,
	"nove mesto":   true,
	"petrzalka":    true,
	"karlova ves":  true,
	"dubravka":     true,
	"raca":         true,
	"vrakuna":      true,
	"podunajske biskupice": true,
	"lamac":        true,
	"devin":        true,
	"devinska nova ves":    true,
	"zahorska bystrica":    true,
	"vajnory":      true,
	"jarovce":      true,
	"rusovce":      true,
	"cunovo":       true,
	"sever":        true,
	"juh":          true,
	"zapad":        true,
	"dargovskych hrdinov":  true,
	"sidlisko tahanovce":   true,
	"nad jazerom":  true,
}

// TokenizeAddress splits a free-text address into street, number, district
// and city. Comma-separated segments are classified in order; anything
// unrecognized accumulates into Street. The city hint, when provided, is
// removed from the segments so it does not shadow the district.
func TokenizeAddress(raw, cityHint string) Address {
	addr := Address{}
	normalized := CollapseWhitespace(Lowercase(FoldDiacritics(raw)))
	if normalized == "" {
		addr.City = CollapseWhitespace(Lowercase(FoldDiacritics(cityHint)))
		return addr
	}

	city := CollapseWhitespace(Lowercase(FoldDiacritics(cityHint)))
	addr.City = city

	var streetParts []string
	for _, segment := range strings.Split(normalized, ",") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}

		switch {
		case segment == city:
			// city named inline, already captured
		case knownDistricts[segment]:
			addr.District = segment
		default:
			streetParts = append(streetParts, segment)
		}
	}

	// Pull a trailing house number off the street segment
	if len(streetParts) > 0 {
		street := NormalizeStreet(strings.Join(streetParts, " "))
		words := strings.Fields(street)
		if len(words) > 1 && houseNumberRe.MatchString(words[len(words)-1]) {
			addr.Number = words[len(words)-1]
			words = words[:len(words)-1]
		}
		addr.Street = strings.Join(words, " ")
	}

	return addr
}
