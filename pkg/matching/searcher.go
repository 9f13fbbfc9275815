package matching

import (
	"context"
	"sort"

	"github.com/Gobusters/ectologger"

	"github.com/kikokaraba/srei-sub004/pkg/models"
	"github.com/kikokaraba/srei-sub004/pkg/tracing"
)

// ListingStore is the listing-store surface candidate search depends on
type ListingStore interface {
	FindCandidates(ctx context.Context, q models.CandidateQuery) ([]models.Listing, error)
}

// MatchStore is the match-store surface used to exclude settled pairs
type MatchStore interface {
	GetByPair(ctx context.Context, listingA, listingB string) (*models.Match, error)
}

// SearchConfig holds the candidate search tolerance bands. This stage is
// recall-oriented: a genuine duplicate that never becomes a candidate is
// lost for good, while a false candidate is cheap to reject downstream.
type SearchConfig struct {
	AreaTolerancePercent  float64 // default 10
	PriceTolerancePercent float64 // default 15
	MaxCandidates         int     // default 100
}

// DefaultSearchConfig returns the starting tolerance bands
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		AreaTolerancePercent:  10,
		PriceTolerancePercent: 15,
		MaxCandidates:         100,
	}
}

// Candidate is a listing returned by candidate search, ranked by a cheap
// pre-score so the expensive scorer sees the most plausible pairs first
type Candidate struct {
	Listing  models.Listing
	PreScore float64 // lower is closer
}

// Searcher finds match candidates for a listing
type Searcher struct {
	logger   ectologger.Logger
	listings ListingStore
	matches  MatchStore
	config   SearchConfig
}

// NewSearcher creates a candidate searcher
func NewSearcher(logger ectologger.Logger, listings ListingStore, matches MatchStore, config SearchConfig) *Searcher {
	if config.MaxCandidates < 1 {
		config.MaxCandidates = 100
	}
	return &Searcher{
		logger:   logger,
		listings: listings,
		matches:  matches,
		config:   config,
	}
}

// FindCandidates returns the bounded, ranked candidate set for a listing.
// Range filters are applied against the listing's real area and price, not
// the discretized bucket, so bucket-boundary neighbours are not missed. A
// low-confidence fingerprint only filters on the fields it has.
func (s *Searcher) FindCandidates(ctx context.Context, listing *models.Listing, fp *models.Fingerprint) ([]Candidate, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Searcher.FindCandidates")
	defer span.End()

	q := models.CandidateQuery{
		LocationKey: fp.LocationKey,
		CityOnly:    fp.Coarse,
		City:        cityFromKey(fp.LocationKey),
		ListingType: listing.ListingType,
		ExcludeID:   listing.ID,
		Limit:       s.config.MaxCandidates * 2, // room for pair filtering
	}

	if listing.Area > 0 {
		tolerance := listing.Area * s.config.AreaTolerancePercent / 100
		q.MinArea = listing.Area - tolerance
		q.MaxArea = listing.Area + tolerance
	}
	if listing.Price > 0 {
		tolerance := listing.Price * s.config.PriceTolerancePercent / 100
		q.MinPrice = listing.Price - tolerance
		q.MaxPrice = listing.Price + tolerance
	}

	rows, err := s.listings.FindCandidates(ctx, q)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(rows))
	for i := range rows {
		other := rows[i]

		// Secondary filter: room counts may disagree by at most one across
		// portals ("studio vs 1-room")
		if listing.Rooms != nil && other.Rooms != nil {
			diff := *listing.Rooms - *other.Rooms
			if diff < 0 {
				diff = -diff
			}
			if diff > 1 {
				continue
			}
		}

		// Settled rejections stay rejected; do not resurface the pair
		existing, err := s.matches.GetByPair(ctx, listing.ID, other.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.Status == models.MatchStatusRejected {
			continue
		}

		candidates = append(candidates, Candidate{
			Listing:  other,
			PreScore: preScore(listing, &other),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].PreScore < candidates[j].PreScore
	})
	if len(candidates) > s.config.MaxCandidates {
		candidates = candidates[:s.config.MaxCandidates]
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"listing_id":      listing.ID,
		"candidate_count": len(candidates),
	}).Debug("Found candidates")

	return candidates, nil
}

// preScore is the cheap ranking heuristic: relative area delta plus relative
// price delta, missing values contributing a neutral penalty
func preScore(target, other *models.Listing) float64 {
	score := 0.0
	if target.Area > 0 && other.Area > 0 {
		score += relDelta(target.Area, other.Area)
	} else {
		score += 0.5
	}
	if target.Price > 0 && other.Price > 0 {
		score += relDelta(target.Price, other.Price)
	} else {
		score += 0.5
	}
	return score
}

func relDelta(a, b float64) float64 {
	larger := a
	if b > larger {
		larger = b
	}
	if larger == 0 {
		return 0
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff / larger
}

func cityFromKey(locationKey string) string {
	for i := 0; i < len(locationKey); i++ {
		if locationKey[i] == '|' {
			return locationKey[:i]
		}
	}
	return locationKey
}
