package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalPair(t *testing.T) {
	a, b := CanonicalPair("lst-b", "lst-a")
	assert.Equal(t, "lst-a", a)
	assert.Equal(t, "lst-b", b)

	a, b = CanonicalPair("lst-a", "lst-b")
	assert.Equal(t, "lst-a", a)
	assert.Equal(t, "lst-b", b)
}

func TestOtherListing(t *testing.T) {
	m := Match{ListingAID: "lst-a", ListingBID: "lst-b"}
	assert.Equal(t, "lst-b", m.OtherListing("lst-a"))
	assert.Equal(t, "lst-a", m.OtherListing("lst-b"))
}

func TestRunReportMerge(t *testing.T) {
	total := RunReport{PairsScored: 2, MatchesFound: 1}
	total.Merge(RunReport{PairsScored: 3, MatchesFound: 1, PairsEscalated: 2, TransientErrors: 1})

	assert.Equal(t, 5, total.PairsScored)
	assert.Equal(t, 2, total.MatchesFound)
	assert.Equal(t, 2, total.PairsEscalated)
	assert.Equal(t, 1, total.TransientErrors)
}
