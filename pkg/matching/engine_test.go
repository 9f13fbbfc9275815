package matching

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikokaraba/srei-sub004/pkg/fingerprint"
	"github.com/kikokaraba/srei-sub004/pkg/logging"
	"github.com/kikokaraba/srei-sub004/pkg/models"
	"github.com/kikokaraba/srei-sub004/pkg/tiebreak"
)

type fakeMatchWriter struct {
	matches map[string]*models.Match
	upserts int
}

func newFakeMatchWriter() *fakeMatchWriter {
	return &fakeMatchWriter{matches: make(map[string]*models.Match)}
}

func (f *fakeMatchWriter) GetByPair(_ context.Context, a, b string) (*models.Match, error) {
	return f.matches[pairKey(a, b)], nil
}

func (f *fakeMatchWriter) Upsert(_ context.Context, m *models.Match) error {
	f.upserts++
	// Same timestamp rule as the repository: creation time survives updates
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	m.UpdatedAt = time.Now().UTC()
	stored := *m
	f.matches[pairKey(m.ListingAID, m.ListingBID)] = &stored
	return nil
}

type fakeTieBreaker struct {
	verdict *tiebreak.Verdict
	err     error
	calls   int
}

func (f *fakeTieBreaker) Judge(_ context.Context, _, _ *models.Listing) (*tiebreak.Verdict, error) {
	f.calls++
	return f.verdict, f.err
}

func newTestEngine(store MatchWriter, tb TieBreaker) *Engine {
	scorer, _ := newTestScorer()
	return NewEngine(logging.NewNop(), scorer, store, tb, DefaultEngineConfig())
}

// ambiguousPair builds a pair that lands in the escalation band: perfect
// attribute agreement but room counts off by one.
func ambiguousPair(gen *fingerprint.Generator) (models.Listing, models.Listing, models.Fingerprint, models.Fingerprint) {
	a := saleListing("a", "Garsónka Petržalka", 95000, 28, 0, "Petržalka")
	b := saleListing("b", "1-izbový byt Petržalka", 96000, 29, 1, "Petržalka")
	fpA := gen.Generate(&a)
	fpB := gen.Generate(&b)
	return a, b, fpA, fpB
}

func TestDecideConfirmsAboveThreshold(t *testing.T) {
	store := newFakeMatchWriter()
	tb := &fakeTieBreaker{}
	engine := newTestEngine(store, tb)
	_, gen := newTestScorer()

	a := saleListing("a", "3-izbový byt na predaj, Ružinov, 64m2", 180000, 64, 3, "Ružinov")
	b := saleListing("b", "Predaj: slnečný 3i byt v Ružinove", 182000, 65, 3, "Ružinov")
	fpA := gen.Generate(&a)
	fpB := gen.Generate(&b)

	decision, err := engine.Decide(context.Background(), &a, &b, &fpA, &fpB)
	require.NoError(t, err)

	assert.False(t, decision.Escalated)
	assert.Equal(t, models.MatchStatusConfirmed, decision.Match.Status)
	assert.Equal(t, models.DecisionSourceRule, decision.Match.DecisionSource)
	assert.Equal(t, 0, tb.calls)

	stored := store.matches[pairKey("a", "b")]
	require.NotNil(t, stored)
	assert.Equal(t, models.MatchStatusConfirmed, stored.Status)
	assert.Equal(t, "a", stored.ListingAID)
	assert.Equal(t, "b", stored.ListingBID)
}

func TestDecideRejectsBelowThreshold(t *testing.T) {
	store := newFakeMatchWriter()
	engine := newTestEngine(store, &fakeTieBreaker{})
	_, gen := newTestScorer()

	a := saleListing("a", "2-izbový byt, Staré Mesto", 180000, 55, 2, "Staré Mesto")
	b := saleListing("b", "Veľký 2-izbový byt v centre", 260000, 58, 2, "Staré Mesto")
	fpA := gen.Generate(&a)
	fpB := gen.Generate(&b)

	decision, err := engine.Decide(context.Background(), &a, &b, &fpA, &fpB)
	require.NoError(t, err)

	assert.Equal(t, models.MatchStatusRejected, decision.Match.Status)
	assert.False(t, decision.Escalated)
}

func TestDecideEscalatesMiddleBand(t *testing.T) {
	store := newFakeMatchWriter()
	tb := &fakeTieBreaker{verdict: &tiebreak.Verdict{Match: true, Rationale: "same floor plan and photos"}}
	engine := newTestEngine(store, tb)
	_, gen := newTestScorer()

	a, b, fpA, fpB := ambiguousPair(gen)

	decision, err := engine.Decide(context.Background(), &a, &b, &fpA, &fpB)
	require.NoError(t, err)

	assert.True(t, decision.Escalated)
	assert.False(t, decision.Pending)
	assert.Equal(t, 1, tb.calls)
	assert.Equal(t, models.MatchStatusConfirmed, decision.Match.Status)
	assert.Equal(t, models.DecisionSourceAI, decision.Match.DecisionSource)
	require.NotNil(t, decision.Match.Rationale)
	assert.Equal(t, "same floor plan and photos", *decision.Match.Rationale)
	assert.NotNil(t, decision.Match.ResolvedAt)
}

func TestDecideUnresolvedTieBreakStaysCandidate(t *testing.T) {
	store := newFakeMatchWriter()
	tb := &fakeTieBreaker{err: tiebreak.ErrUnresolved}
	engine := newTestEngine(store, tb)
	_, gen := newTestScorer()

	a, b, fpA, fpB := ambiguousPair(gen)

	decision, err := engine.Decide(context.Background(), &a, &b, &fpA, &fpB)
	require.NoError(t, err)

	assert.True(t, decision.Escalated)
	assert.True(t, decision.Pending)
	assert.Equal(t, models.MatchStatusCandidate, decision.Match.Status)

	// The unresolved pair is persisted so the next run retries it
	stored := store.matches[pairKey("a", "b")]
	require.NotNil(t, stored)
	assert.Equal(t, models.MatchStatusCandidate, stored.Status)
}

func TestDecideNilTieBreakerLeavesPending(t *testing.T) {
	store := newFakeMatchWriter()
	engine := newTestEngine(store, nil)
	_, gen := newTestScorer()

	a, b, fpA, fpB := ambiguousPair(gen)

	decision, err := engine.Decide(context.Background(), &a, &b, &fpA, &fpB)
	require.NoError(t, err)

	assert.True(t, decision.Pending)
	assert.Equal(t, models.MatchStatusCandidate, decision.Match.Status)
}

func TestDecideSkipsUnchangedInputs(t *testing.T) {
	store := newFakeMatchWriter()
	tb := &fakeTieBreaker{}
	engine := newTestEngine(store, tb)
	_, gen := newTestScorer()

	a := saleListing("a", "3-izbový byt na predaj, Ružinov, 64m2", 180000, 64, 3, "Ružinov")
	b := saleListing("b", "Predaj: slnečný 3i byt v Ružinove", 182000, 65, 3, "Ružinov")
	fpA := gen.Generate(&a)
	fpB := gen.Generate(&b)

	first, err := engine.Decide(context.Background(), &a, &b, &fpA, &fpB)
	require.NoError(t, err)
	require.Equal(t, models.MatchStatusConfirmed, first.Match.Status)
	require.Equal(t, 1, store.upserts)

	// Re-running the same pair with unchanged fingerprints is a no-op
	second, err := engine.Decide(context.Background(), &a, &b, &fpA, &fpB)
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, 1, store.upserts)
}

func TestDecideRescoresOnChangedInputs(t *testing.T) {
	store := newFakeMatchWriter()
	engine := newTestEngine(store, &fakeTieBreaker{})
	_, gen := newTestScorer()

	a := saleListing("a", "3-izbový byt na predaj, Ružinov, 64m2", 180000, 64, 3, "Ružinov")
	b := saleListing("b", "Predaj: slnečný 3i byt v Ružinove", 182000, 65, 3, "Ružinov")
	fpA := gen.Generate(&a)
	fpB := gen.Generate(&b)

	first, err := engine.Decide(context.Background(), &a, &b, &fpA, &fpB)
	require.NoError(t, err)
	require.Equal(t, models.MatchStatusConfirmed, first.Match.Status)

	// Price jumps far out of band: the stored verdict no longer describes
	// the data and gets re-scored
	b.Price = 260000
	fpB = gen.Generate(&b)

	second, err := engine.Decide(context.Background(), &a, &b, &fpA, &fpB)
	require.NoError(t, err)
	assert.False(t, second.Skipped)
	assert.Equal(t, models.MatchStatusRejected, second.Match.Status)
	assert.Equal(t, first.Match.ID, second.Match.ID)
}

func TestDecideRescoreKeepsCreationTime(t *testing.T) {
	store := newFakeMatchWriter()
	engine := newTestEngine(store, &fakeTieBreaker{})
	_, gen := newTestScorer()

	a := saleListing("a", "3-izbový byt na predaj, Ružinov, 64m2", 180000, 64, 3, "Ružinov")
	b := saleListing("b", "Predaj: slnečný 3i byt v Ružinove", 182000, 65, 3, "Ružinov")
	fpA := gen.Generate(&a)
	fpB := gen.Generate(&b)

	first, err := engine.Decide(context.Background(), &a, &b, &fpA, &fpB)
	require.NoError(t, err)
	createdAt := first.Match.CreatedAt
	require.False(t, createdAt.IsZero())

	b.Price = 260000
	fpB = gen.Generate(&b)

	second, err := engine.Decide(context.Background(), &a, &b, &fpA, &fpB)
	require.NoError(t, err)
	assert.True(t, createdAt.Equal(second.Match.CreatedAt))
	assert.False(t, second.Match.UpdatedAt.Before(second.Match.CreatedAt))
}

func TestDecideNeverOverwritesHumanVerdict(t *testing.T) {
	store := newFakeMatchWriter()
	tb := &fakeTieBreaker{}
	engine := newTestEngine(store, tb)
	_, gen := newTestScorer()

	a, b, fpA, fpB := ambiguousPair(gen)

	store.matches[pairKey("a", "b")] = &models.Match{
		ID:             "existing",
		ListingAID:     "a",
		ListingBID:     "b",
		Status:         models.MatchStatusRejected,
		DecisionSource: models.DecisionSourceHuman,
	}

	decision, err := engine.Decide(context.Background(), &a, &b, &fpA, &fpB)
	require.NoError(t, err)

	assert.True(t, decision.Skipped)
	assert.Equal(t, models.MatchStatusRejected, decision.Match.Status)
	assert.Equal(t, 0, store.upserts)
	assert.Equal(t, 0, tb.calls)
}
