package matching

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/kikokaraba/srei-sub004/pkg/metrics"
	"github.com/kikokaraba/srei-sub004/pkg/models"
	"github.com/kikokaraba/srei-sub004/pkg/tiebreak"
	"github.com/kikokaraba/srei-sub004/pkg/tracing"
)

// TieBreaker is the advisory collaborator for pairs the deterministic rules
// cannot settle. Any error means no verdict was obtained.
type TieBreaker interface {
	Judge(ctx context.Context, a, b *models.Listing) (*tiebreak.Verdict, error)
}

// MatchWriter is the match-store surface the decision engine writes through
type MatchWriter interface {
	GetByPair(ctx context.Context, listingA, listingB string) (*models.Match, error)
	Upsert(ctx context.Context, m *models.Match) error
}

// EngineConfig holds the decision thresholds
type EngineConfig struct {
	ConfirmThreshold float64 // default 0.85
	RejectThreshold  float64 // default 0.4
}

// DefaultEngineConfig returns the starting decision thresholds
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ConfirmThreshold: 0.85,
		RejectThreshold:  0.4,
	}
}

// Decision summarizes how one pair was settled, or why it was not
type Decision struct {
	Match     *models.Match
	Escalated bool // sent to the tie-breaker
	Skipped   bool // inputs unchanged since the stored verdict
	Pending   bool // stayed in candidate status for the next run
}

// Engine turns a scored pair into a persisted match verdict. Near-certain
// pairs and clear non-matches are settled by the deterministic rules alone;
// only the ambiguous middle band is escalated.
type Engine struct {
	logger   ectologger.Logger
	scorer   *PairScorer
	matches  MatchWriter
	tieBreak TieBreaker
	config   EngineConfig
}

// NewEngine creates a decision engine. tieBreak may be nil, in which case
// ambiguous pairs stay in candidate status for human review.
func NewEngine(logger ectologger.Logger, scorer *PairScorer, matches MatchWriter, tieBreak TieBreaker, config EngineConfig) *Engine {
	if config.ConfirmThreshold <= 0 {
		config.ConfirmThreshold = 0.85
	}
	if config.RejectThreshold <= 0 {
		config.RejectThreshold = 0.4
	}
	return &Engine{
		logger:   logger,
		scorer:   scorer,
		matches:  matches,
		tieBreak: tieBreak,
		config:   config,
	}
}

// Decide scores one pair and persists the verdict. Re-scoring a pair whose
// fingerprints have not changed is a no-op, which is what makes a re-run of
// the same batch idempotent. Human verdicts are never overwritten.
func (e *Engine) Decide(ctx context.Context, a, b *models.Listing, fpA, fpB *models.Fingerprint) (*Decision, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Engine.Decide")
	defer span.End()

	checksum := pairChecksum(a.ID, b.ID, fpA, fpB)

	existing, err := e.matches.GetByPair(ctx, a.ID, b.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing match: %w", err)
	}
	if existing != nil {
		if existing.DecisionSource == models.DecisionSourceHuman {
			return &Decision{Match: existing, Skipped: true}, nil
		}
		if existing.Status != models.MatchStatusCandidate && existing.InputChecksum == checksum {
			return &Decision{Match: existing, Skipped: true}, nil
		}
	}

	score := e.scorer.Score(a, b, fpA, fpB)

	m := &models.Match{
		ID:             uuid.NewString(),
		Confidence:     score.Confidence,
		Status:         models.MatchStatusCandidate,
		DecisionSource: models.DecisionSourceRule,
		InputChecksum:  checksum,
	}
	m.ListingAID, m.ListingBID = models.CanonicalPair(a.ID, b.ID)
	if existing != nil {
		m.ID = existing.ID
		m.CreatedAt = existing.CreatedAt
	}

	decision := &Decision{Match: m}

	switch {
	case score.HardReject || score.Confidence <= e.config.RejectThreshold:
		m.Status = models.MatchStatusRejected
	case score.Confidence >= e.config.ConfirmThreshold:
		m.Status = models.MatchStatusConfirmed
	default:
		decision.Escalated = true
		e.escalate(ctx, a, b, m, decision)
	}

	if err := e.matches.Upsert(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to persist match verdict: %w", err)
	}

	metrics.RecordPairScored(decisionLabel(m, decision))
	return decision, nil
}

// escalate asks the tie-breaker for a verdict and folds it into the match.
// No verdict leaves the pair pending; it is scored again on the next run.
func (e *Engine) escalate(ctx context.Context, a, b *models.Listing, m *models.Match, decision *Decision) {
	if e.tieBreak == nil {
		decision.Pending = true
		return
	}

	verdict, err := e.tieBreak.Judge(ctx, a, b)
	if err != nil {
		if !errors.Is(err, tiebreak.ErrUnresolved) {
			e.logger.WithContext(ctx).WithError(err).Warn("Tie-break failed with unexpected error")
		}
		decision.Pending = true
		return
	}

	m.DecisionSource = models.DecisionSourceAI
	if verdict.Rationale != "" {
		rationale := verdict.Rationale
		m.Rationale = &rationale
	}
	now := time.Now().UTC()
	m.ResolvedAt = &now
	if verdict.Match {
		m.Status = models.MatchStatusConfirmed
	} else {
		m.Status = models.MatchStatusRejected
	}
}

func decisionLabel(m *models.Match, d *Decision) string {
	if d.Skipped {
		return "skipped"
	}
	if d.Pending {
		return "pending"
	}
	return m.Status
}

// pairChecksum hashes the fingerprint checksums of both endpoints in
// canonical pair order. It changes exactly when either listing's material
// content changes, so it doubles as the staleness marker for stored verdicts.
func pairChecksum(idA, idB string, fpA, fpB *models.Fingerprint) string {
	first, second := fpA.Checksum, fpB.Checksum
	if ca, _ := models.CanonicalPair(idA, idB); ca != idA {
		first, second = second, first
	}
	sum := sha256.Sum256([]byte(first + "|" + second))
	return hex.EncodeToString(sum[:])
}
