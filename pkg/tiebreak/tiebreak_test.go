package tiebreak

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikokaraba/srei-sub004/pkg/models"
)

func TestSummarizeTruncatesOnRuneBoundary(t *testing.T) {
	// The leading ASCII byte shifts every two-byte "ž" to an odd offset,
	// so byte 1200 lands in the middle of a rune
	l := &models.Listing{Description: "V" + strings.Repeat("ž", 700)}

	summary := summarize(l)

	assert.Equal(t, 1199, len(summary.Description))
	assert.True(t, utf8.ValidString(summary.Description))
}

func TestSummarizeKeepsShortDescription(t *testing.T) {
	l := &models.Listing{Description: "Priestranný byt s balkónom."}

	summary := summarize(l)
	require.Equal(t, l.Description, summary.Description)
}
