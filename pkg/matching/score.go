package matching

import (
	"github.com/kikokaraba/srei-sub004/pkg/models"
	"github.com/kikokaraba/srei-sub004/pkg/normalizer"
)

// Confidence levels assigned by the deterministic rules. Anything at or
// above these lands outside the ambiguous band and is finalized without the
// AI tie-breaker.
const (
	confidenceDescriptionMatch = 0.97
	confidenceAddressMatch     = 0.93
	confidenceAttributeMatch   = 0.90
	confidenceAttributeRooms   = 0.72 // attribute triple but rooms off by one
	confidencePriceMismatch    = 0.15
)

// streetTypoSimilarity is the minimum Levenshtein similarity for two street
// names to count as the same street misspelled
const streetTypoSimilarity = 0.85

// ScoreWeights are the tunable weights of the soft (non-rule) signals
type ScoreWeights struct {
	Title    float64
	Area     float64
	Price    float64
	Rooms    float64
	District float64
}

// DefaultScoreWeights returns the starting weights
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Title:    0.25,
		Area:     0.25,
		Price:    0.20,
		Rooms:    0.15,
		District: 0.15,
	}
}

// PairScore is the result of deterministic pair scoring
type PairScore struct {
	Confidence float64
	Signals    map[string]float64
	HardReject bool
	// StrongPositive marks pairs that hit one of the near-certain rules and
	// therefore finalize without AI escalation.
	StrongPositive bool
}

// PairScorer applies the deterministic weighted rules to a candidate pair
type PairScorer struct {
	scorer  *Scorer
	text    *normalizer.TextNormalizer
	weights ScoreWeights
}

// NewPairScorer creates a pair scorer
func NewPairScorer(text *normalizer.TextNormalizer, weights ScoreWeights) *PairScorer {
	return &PairScorer{
		scorer:  NewScorer(),
		text:    text,
		weights: weights,
	}
}

// Score evaluates one pair deterministically. The hard room-count rule
// short-circuits everything else: a studio is never a 3-room flat, no matter
// how similar the rest of the data looks.
func (p *PairScorer) Score(a, b *models.Listing, fpA, fpB *models.Fingerprint) PairScore {
	signals := make(map[string]float64)

	// Hard rule: room count mismatch greater than one rejects outright
	if a.Rooms != nil && b.Rooms != nil {
		diff := *a.Rooms - *b.Rooms
		if diff < 0 {
			diff = -diff
		}
		if diff > 1 {
			return PairScore{Confidence: 0, Signals: signals, HardReject: true}
		}
		signals["rooms"] = roomsSignal(diff)
	}

	sameDistrict := fpA.LocationKey == fpB.LocationKey && !fpA.Coarse && !fpB.Coarse
	if sameDistrict {
		signals["district"] = 1.0
	}

	priceDiff := p.scorer.RelativeDiff(a.Price, b.Price)

	signals["title"] = p.scorer.JaroWinkler(p.text.NormalizeTitle(a.Title), p.text.NormalizeTitle(b.Title))
	if a.Area > 0 && b.Area > 0 {
		signals["area"] = p.scorer.NumericProximity(a.Area, b.Area, 0.10*maxFloat(a.Area, b.Area))
	}
	if a.Price > 0 && b.Price > 0 {
		signals["price"] = p.scorer.NumericProximity(a.Price, b.Price, 0.25*maxFloat(a.Price, b.Price))
	}

	// Very strong positive: near-verbatim description reused across portals
	if a.Description != "" && b.Description != "" &&
		p.scorer.ExactMatch(fpA.DescriptionHash, fpB.DescriptionHash, true) == 1.0 {
		signals["description"] = 1.0
		return PairScore{Confidence: confidenceDescriptionMatch, Signals: signals, StrongPositive: true}
	}

	// Strong positive: same normalized street address. A city-only key never
	// counts; with no street resolved, equal address hashes only say the
	// listings are in the same city. Portals also misspell street names, so
	// the same house number in the same city with a near-identical street
	// still qualifies.
	addrA := normalizer.TokenizeAddress(a.Title, a.City)
	addrB := normalizer.TokenizeAddress(b.Title, b.City)
	if addrA.Street != "" && addrB.Street != "" {
		sameAddress := addrA.Key() == addrB.Key()
		if !sameAddress && addrA.Number != "" && addrA.Number == addrB.Number && addrA.City == addrB.City {
			sameAddress = p.scorer.Levenshtein(addrA.Street, addrB.Street) >= streetTypoSimilarity
		}
		if sameAddress {
			signals["address"] = 1.0
			return PairScore{Confidence: confidenceAddressMatch, Signals: signals, StrongPositive: true}
		}
	}

	// Strong positive: same area bucket, price within 5%, same district.
	// Down-weighted fingerprints (missing price or area) never qualify.
	if !fpA.LowConfidence && !fpB.LowConfidence &&
		fpA.AreaBucket == fpB.AreaBucket && priceDiff <= 0.05 && sameDistrict {
		signals["attributes"] = 1.0
		if a.Rooms != nil && b.Rooms != nil && *a.Rooms != *b.Rooms {
			// "studio vs 1-room" style disagreement keeps this ambiguous
			return PairScore{Confidence: confidenceAttributeRooms, Signals: signals}
		}
		return PairScore{Confidence: confidenceAttributeMatch, Signals: signals, StrongPositive: true}
	}

	// Negative: a price gap beyond negotiation margin with nothing strong
	// backing the pair almost certainly means a different unit
	if a.Price > 0 && b.Price > 0 && priceDiff > 0.25 {
		return PairScore{Confidence: confidencePriceMismatch, Signals: signals}
	}

	confidence := p.scorer.WeightedScore(signals, map[string]float64{
		"title":    p.weights.Title,
		"area":     p.weights.Area,
		"price":    p.weights.Price,
		"rooms":    p.weights.Rooms,
		"district": p.weights.District,
	})

	// Fewer comparable fields means less certainty either way
	if fpA.LowConfidence || fpB.LowConfidence {
		confidence *= 0.8
	}

	return PairScore{Confidence: confidence, Signals: signals}
}

func roomsSignal(diff int) float64 {
	if diff == 0 {
		return 1.0
	}
	return 0.4
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
