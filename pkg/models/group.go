package models

import (
	"time"
)

// MasterRecord is the consolidated view of a duplicate group: one canonical
// listing plus price statistics across all members. It is a query-time
// projection over confirmed match edges and is never persisted.
type MasterRecord struct {
	Master           Listing   `json:"master"`
	MemberIDs        []string  `json:"member_ids"`
	Members          []Listing `json:"members,omitempty"`
	Count            int       `json:"count"`
	BestPrice        float64   `json:"best_price"`
	WorstPrice       float64   `json:"worst_price"`
	MedianPrice      float64   `json:"median_price"`
	PotentialSavings float64   `json:"potential_savings"`
	SavingsPercent   float64   `json:"savings_percent"`
	Sources          []string  `json:"sources"`
}

// DuplicateStats summarizes dedup coverage for a city (or everywhere)
type DuplicateStats struct {
	City             string  `json:"city,omitempty"`
	GroupCount       int     `json:"group_count"`
	DuplicateCount   int     `json:"duplicate_count"`
	LargestGroup     int     `json:"largest_group"`
	TotalSavings     float64 `json:"total_savings"`
	AvgSavingsPct    float64 `json:"avg_savings_percent"`
	MaxSavings       float64 `json:"max_savings"`
	DistinctListings int     `json:"distinct_listings"`
}

// RunReport is the summary returned by a deduplication run. The counters are
// threaded through the pipeline stages explicitly; there is no shared
// mutable run state.
type RunReport struct {
	RunID               string    `json:"run_id"`
	StartedAt           time.Time `json:"started_at"`
	FingerprintsCreated int       `json:"fingerprints_created"`
	CandidatesSearched  int       `json:"candidates_searched"`
	PairsScored         int       `json:"pairs_scored"`
	MatchesFound        int       `json:"matches_found"`
	PairsEscalated      int       `json:"pairs_escalated"`
	PairsUnresolved     int       `json:"pairs_unresolved"`
	TransientErrors     int       `json:"transient_errors"`
	DurationMs          int64     `json:"duration_ms"`
}

// Merge folds stage-level counters into the run total
func (r *RunReport) Merge(other RunReport) {
	r.FingerprintsCreated += other.FingerprintsCreated
	r.CandidatesSearched += other.CandidatesSearched
	r.PairsScored += other.PairsScored
	r.MatchesFound += other.MatchesFound
	r.PairsEscalated += other.PairsEscalated
	r.PairsUnresolved += other.PairsUnresolved
	r.TransientErrors += other.TransientErrors
}
