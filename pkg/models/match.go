package models

import (
	"time"
)

// MatchStatus constants
const (
	MatchStatusCandidate = "candidate"
	MatchStatusConfirmed = "confirmed"
	MatchStatusRejected  = "rejected"
)

// MatchDecisionSource records the provenance of a match verdict
const (
	DecisionSourceRule  = "deterministic-rule"
	DecisionSourceAI    = "ai-tiebreak"
	DecisionSourceHuman = "human-confirmed"
)

// Match is an undirected edge between two listings that plausibly describe
// the same physical property. The pair is stored in canonical order
// (ListingAID < ListingBID) so (A,B) and (B,A) are the same record.
type Match struct {
	ID             string     `json:"id" db:"id"`
	ListingAID     string     `json:"listing_a_id" db:"listing_a_id"`
	ListingBID     string     `json:"listing_b_id" db:"listing_b_id"`
	Confidence     float64    `json:"confidence" db:"confidence"`
	Status         string     `json:"status" db:"status"`
	DecisionSource string     `json:"decision_source" db:"decision_source"`
	Rationale      *string    `json:"rationale,omitempty" db:"rationale"`
	InputChecksum  string     `json:"input_checksum" db:"input_checksum"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolvedBy     *string    `json:"resolved_by,omitempty" db:"resolved_by"`
}

// CanonicalPair orders two listing ids lexicographically. Every read and
// write of a Match goes through this ordering.
func CanonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// OtherListing returns the endpoint of the edge that is not the given id
func (m *Match) OtherListing(id string) string {
	if m.ListingAID == id {
		return m.ListingBID
	}
	return m.ListingAID
}

// ResolveMatchRequest is the request body for the human review endpoints
type ResolveMatchRequest struct {
	ListingAID string `json:"listing_a_id" validate:"required"`
	ListingBID string `json:"listing_b_id" validate:"required"`
	ResolvedBy string `json:"resolved_by,omitempty"`
}
