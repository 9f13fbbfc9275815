package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFoldDiacritics(t *testing.T) {
	assert.Equal(t, "Kosice", FoldDiacritics("Košice"))
	assert.Equal(t, "Petrzalka", FoldDiacritics("Petržalka"))
	assert.Equal(t, "stvorizbovy byt", FoldDiacritics("štvorizbový byt"))
	assert.Equal(t, "plain text", FoldDiacritics("plain text"))
}

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", CollapseWhitespace("  a \t b \n c  "))
	assert.Equal(t, "", CollapseWhitespace("   "))
}

func TestStripPunctuation(t *testing.T) {
	assert.Equal(t, "3izbový byt 75m2", CollapseWhitespace(StripPunctuation("3-izbový byt, 75m2!")))
}

func TestNormalizeStreet(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"hlavna ulica", "hlavna ul"},
		{"namestie slobody", "nam slobody"},
		{"hlavna ul", "hlavna ul"},
		{"mierova", "mierova"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeStreet(tt.in), tt.in)
	}
}

func TestApplyChain(t *testing.T) {
	got := ApplyChain("  Košická  Ulica ", "fold_diacritics", "lowercase", "collapse_whitespace")
	assert.Equal(t, "kosicka ulica", got)
}

func TestTokenizeAddress(t *testing.T) {
	t.Run("StreetNumberDistrict", func(t *testing.T) {
		addr := TokenizeAddress("Mierová 12, Ružinov", "Bratislava")
		assert.Equal(t, "mierova", addr.Street)
		assert.Equal(t, "12", addr.Number)
		assert.Equal(t, "ruzinov", addr.District)
		assert.Equal(t, "bratislava", addr.City)
	})

	t.Run("SlashHouseNumber", func(t *testing.T) {
		addr := TokenizeAddress("Hlavná 1234/5", "Košice")
		assert.Equal(t, "hlavna", addr.Street)
		assert.Equal(t, "1234/5", addr.Number)
	})

	t.Run("CityNamedInline", func(t *testing.T) {
		addr := TokenizeAddress("Petržalka, Bratislava", "Bratislava")
		assert.Equal(t, "petrzalka", addr.District)
		assert.Equal(t, "", addr.Street)
		assert.Equal(t, "bratislava", addr.City)
	})

	t.Run("EmptyAddressKeepsCity", func(t *testing.T) {
		addr := TokenizeAddress("", "Nitra")
		assert.Equal(t, "nitra", addr.City)
		assert.Equal(t, "nitra", addr.Key())
	})

	t.Run("KeyOrdering", func(t *testing.T) {
		a := TokenizeAddress("Mierová 12, Ružinov", "Bratislava")
		b := TokenizeAddress("Ružinov, Mierova 12", "Bratislava")
		assert.Equal(t, a.Key(), b.Key())
	})
}

func TestTextNormalizerStripsBoilerplate(t *testing.T) {
	n := NewTextNormalizer([]string{"EXKLUZÍVNE", "top ponuka", "znížená cena"})

	assert.Equal(t, "3izbovy byt petrzalka", n.NormalizeTitle("EXKLUZÍVNE! 3-izbový byt Petržalka"))
	assert.Equal(t, "novostavba pri parku", n.NormalizeDescription("TOP PONUKA: novostavba pri parku"))
}

func TestTextNormalizerDeterministic(t *testing.T) {
	n := NewTextNormalizer(nil)
	first := n.NormalizeTitle("Štýlový 2-izbový byt, Košice – Sever")
	second := n.NormalizeTitle("Štýlový 2-izbový byt, Košice – Sever")
	assert.Equal(t, first, second)
}
