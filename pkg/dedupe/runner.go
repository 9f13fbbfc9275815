// Package dedupe orchestrates the deduplication batch pipeline: stale
// listings are re-fingerprinted, candidates searched, pairs scored and
// verdicts persisted. A run is re-entrant: interrupting it and starting over
// repeats no settled work.
package dedupe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/kikokaraba/srei-sub004/pkg/appcontext"
	"github.com/kikokaraba/srei-sub004/pkg/fingerprint"
	"github.com/kikokaraba/srei-sub004/pkg/matching"
	"github.com/kikokaraba/srei-sub004/pkg/metrics"
	"github.com/kikokaraba/srei-sub004/pkg/models"
	"github.com/kikokaraba/srei-sub004/pkg/tracing"
)

// ErrRunInProgress is returned when a run is requested while another run is
// still executing. Runs never overlap.
var ErrRunInProgress = errors.New("deduplication run already in progress")

// ListingStore is the listing-store surface the runner depends on
type ListingStore interface {
	ListNeedingFingerprint(ctx context.Context, limit int) ([]models.Listing, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Listing, error)
}

// FingerprintStore is the fingerprint-store surface the runner depends on
type FingerprintStore interface {
	Get(ctx context.Context, listingID string) (*models.Fingerprint, error)
	Upsert(ctx context.Context, fp *models.Fingerprint) error
	ListByListingIDs(ctx context.Context, listingIDs []string) ([]models.Fingerprint, error)
}

// MatchStore is the match-store surface the runner depends on
type MatchStore interface {
	ReopenByListing(ctx context.Context, listingID string) (int64, error)
	ListUnresolved(ctx context.Context, limit int) ([]models.Match, error)
}

// EventPublisher emits downstream events for confirmed duplicates
type EventPublisher interface {
	PublishDuplicateFound(ctx context.Context, m *models.Match) error
}

// Config holds runner settings
type Config struct {
	BatchSize          int           // listings fingerprinted per batch, default 500
	FingerprintWorkers int           // default 8
	ScoreWorkers       int           // default 4
	RetryMaxAttempts   int           // storage retry budget, default 3
	Interval           time.Duration // 0 disables scheduled runs
}

// Runner executes deduplication runs
type Runner struct {
	logger       ectologger.Logger
	listings     ListingStore
	fingerprints FingerprintStore
	matches      MatchStore
	generator    *fingerprint.Generator
	searcher     *matching.Searcher
	engine       *matching.Engine
	publisher    EventPublisher
	config       Config

	running atomic.Bool
}

// NewRunner creates a batch runner. publisher may be nil when no event bus is
// configured.
func NewRunner(
	logger ectologger.Logger,
	listings ListingStore,
	fingerprints FingerprintStore,
	matches MatchStore,
	generator *fingerprint.Generator,
	searcher *matching.Searcher,
	engine *matching.Engine,
	publisher EventPublisher,
	config Config,
) *Runner {
	if config.BatchSize < 1 {
		config.BatchSize = 500
	}
	if config.FingerprintWorkers < 1 {
		config.FingerprintWorkers = 8
	}
	if config.ScoreWorkers < 1 {
		config.ScoreWorkers = 4
	}
	if config.RetryMaxAttempts < 1 {
		config.RetryMaxAttempts = 3
	}
	return &Runner{
		logger:       logger,
		listings:     listings,
		fingerprints: fingerprints,
		matches:      matches,
		generator:    generator,
		searcher:     searcher,
		engine:       engine,
		publisher:    publisher,
		config:       config,
	}
}

// Run executes one full deduplication pass over every stale listing. Only one
// run executes at a time; a second request gets ErrRunInProgress instead of
// queueing.
func (r *Runner) Run(ctx context.Context) (*models.RunReport, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer r.running.Store(false)

	ctx, span := tracing.StartSpan(ctx, "dedupe.Runner.Run")
	defer span.End()

	report := &models.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	ctx = appcontext.SetRunID(ctx, report.RunID)

	log := r.logger.WithContext(ctx).WithField("run_id", report.RunID)
	log.Info("Deduplication run started")

	// Snapshot the pairs left unresolved by earlier runs before the batch
	// loop touches anything; they are re-decided at the end of the run.
	pending := r.loadPending(ctx, report)

	for {
		batch, err := r.loadBatch(ctx, report)
		if err != nil {
			metrics.RecordRun("error", time.Since(report.StartedAt).Seconds())
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		stale := r.fingerprintBatch(ctx, batch, report)

		if ctx.Err() != nil {
			metrics.RecordRun("canceled", time.Since(report.StartedAt).Seconds())
			return nil, ctx.Err()
		}
		if len(stale) == 0 {
			// Every listing in the batch failed storage. The stale set
			// cannot shrink, so the next iteration would refetch the same
			// batch and the run would never terminate.
			metrics.RecordRun("error", time.Since(report.StartedAt).Seconds())
			return nil, fmt.Errorf("no progress on stale listings: all %d in batch failed", len(batch))
		}

		r.scoreBatch(ctx, stale, report)

		if ctx.Err() != nil {
			metrics.RecordRun("canceled", time.Since(report.StartedAt).Seconds())
			return nil, ctx.Err()
		}
	}

	r.rescorePending(ctx, pending, report)

	report.DurationMs = time.Since(report.StartedAt).Milliseconds()
	metrics.RecordRun("ok", time.Since(report.StartedAt).Seconds())

	log.WithFields(map[string]any{
		"fingerprints_created": report.FingerprintsCreated,
		"pairs_scored":         report.PairsScored,
		"matches_found":        report.MatchesFound,
		"pairs_escalated":      report.PairsEscalated,
		"pairs_unresolved":     report.PairsUnresolved,
		"transient_errors":     report.TransientErrors,
		"duration_ms":          report.DurationMs,
	}).Info("Deduplication run finished")

	return report, nil
}

// Start runs on the configured interval until the context is canceled. An
// overlapping tick is dropped, not queued.
func (r *Runner) Start(ctx context.Context) {
	if r.config.Interval <= 0 {
		return
	}

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Run(ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
				r.logger.WithContext(ctx).WithError(err).Error("Scheduled deduplication run failed")
			}
		}
	}
}

func (r *Runner) loadBatch(ctx context.Context, report *models.RunReport) ([]models.Listing, error) {
	var batch []models.Listing
	err := r.withRetry(ctx, report, func(ctx context.Context) error {
		var err error
		batch, err = r.listings.ListNeedingFingerprint(ctx, r.config.BatchSize)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load stale listings: %w", err)
	}
	return batch, nil
}

// staleListing pairs a listing with its freshly computed fingerprint
type staleListing struct {
	listing     models.Listing
	fingerprint models.Fingerprint
}

// fingerprintBatch recomputes fingerprints for a batch in parallel. Listings
// whose checksum actually changed get their non-human match verdicts
// reopened; unchanged ones are still returned so their pending candidate
// pairs get another scoring attempt.
func (r *Runner) fingerprintBatch(ctx context.Context, batch []models.Listing, report *models.RunReport) []staleListing {
	ctx, span := tracing.StartSpan(ctx, "dedupe.Runner.fingerprintBatch")
	defer span.End()

	jobs := make(chan models.Listing)
	results := make(chan staleListing, len(batch))
	partials := make(chan models.RunReport, r.config.FingerprintWorkers)

	var wg sync.WaitGroup
	for i := 0; i < r.config.FingerprintWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var partial models.RunReport
			for l := range jobs {
				if out, ok := r.fingerprintOne(ctx, l, &partial); ok {
					results <- out
				}
			}
			partials <- partial
		}()
	}

	for _, l := range batch {
		select {
		case jobs <- l:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()
	close(results)
	close(partials)

	for partial := range partials {
		report.Merge(partial)
	}

	stale := make([]staleListing, 0, len(batch))
	for out := range results {
		stale = append(stale, out)
	}
	return stale
}

func (r *Runner) fingerprintOne(ctx context.Context, l models.Listing, report *models.RunReport) (staleListing, bool) {
	fp := r.generator.Generate(&l)

	var existing *models.Fingerprint
	err := r.withRetry(ctx, report, func(ctx context.Context) error {
		var err error
		existing, err = r.fingerprints.Get(ctx, l.ID)
		return err
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("listing_id", l.ID).Error("Failed to load fingerprint")
		return staleListing{}, false
	}

	changed := existing == nil || fingerprint.HasChanged(existing.Checksum, fp.Checksum)
	if changed {
		if err := r.withRetry(ctx, report, func(ctx context.Context) error {
			return r.fingerprints.Upsert(ctx, &fp)
		}); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("listing_id", l.ID).Error("Failed to store fingerprint")
			metrics.FingerprintsGenerated.WithLabelValues("error").Inc()
			return staleListing{}, false
		}
		report.FingerprintsCreated++
		metrics.FingerprintsGenerated.WithLabelValues("written").Inc()

		// Material content changed; stored verdicts for this listing no
		// longer describe the data they were computed from.
		if existing != nil {
			if err := r.withRetry(ctx, report, func(ctx context.Context) error {
				_, err := r.matches.ReopenByListing(ctx, l.ID)
				return err
			}); err != nil {
				r.logger.WithContext(ctx).WithError(err).WithField("listing_id", l.ID).Error("Failed to reopen matches")
			}
		}
	} else {
		metrics.FingerprintsGenerated.WithLabelValues("unchanged").Inc()
		// Refresh the fingerprint timestamp so this listing leaves the
		// stale set even though nothing material changed. A failed refresh
		// keeps it in the stale set, which counts as no progress.
		if err := r.withRetry(ctx, report, func(ctx context.Context) error {
			return r.fingerprints.Upsert(ctx, &fp)
		}); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("listing_id", l.ID).Error("Failed to refresh fingerprint")
			return staleListing{}, false
		}
	}

	return staleListing{listing: l, fingerprint: fp}, true
}

// scoreBatch runs candidate search and pair decisions for each stale listing
func (r *Runner) scoreBatch(ctx context.Context, stale []staleListing, report *models.RunReport) {
	ctx, span := tracing.StartSpan(ctx, "dedupe.Runner.scoreBatch")
	defer span.End()

	jobs := make(chan staleListing)
	reports := make(chan models.RunReport, len(stale))

	var wg sync.WaitGroup
	for i := 0; i < r.config.ScoreWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range jobs {
				reports <- r.scoreOne(ctx, s)
			}
		}()
	}

	for _, s := range stale {
		select {
		case jobs <- s:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()
	close(reports)

	for partial := range reports {
		report.Merge(partial)
	}
}

func (r *Runner) scoreOne(ctx context.Context, s staleListing) models.RunReport {
	var partial models.RunReport

	candidates, err := r.searcher.FindCandidates(ctx, &s.listing, &s.fingerprint)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("listing_id", s.listing.ID).Error("Candidate search failed")
		partial.TransientErrors++
		return partial
	}
	partial.CandidatesSearched = len(candidates)
	metrics.CandidatesPerListing.Observe(float64(len(candidates)))

	for i := range candidates {
		candidate := &candidates[i].Listing

		fp, err := r.fingerprints.Get(ctx, candidate.ID)
		if err != nil {
			partial.TransientErrors++
			continue
		}
		if fp == nil {
			// Candidate has not been fingerprinted yet; compute in memory
			// and let its own batch slot persist it.
			generated := r.generator.Generate(candidate)
			fp = &generated
		}

		r.decidePair(ctx, &s.listing, candidate, &s.fingerprint, fp, &partial)
	}

	return partial
}

// decidePair settles one pair through the engine and folds the outcome into
// the stage counters
func (r *Runner) decidePair(ctx context.Context, a, b *models.Listing, fpA, fpB *models.Fingerprint, partial *models.RunReport) {
	decision, err := r.engine.Decide(ctx, a, b, fpA, fpB)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"listing_a_id": a.ID,
			"listing_b_id": b.ID,
		}).Error("Pair decision failed")
		partial.TransientErrors++
		return
	}
	if decision.Skipped {
		return
	}

	partial.PairsScored++
	if decision.Escalated {
		partial.PairsEscalated++
	}
	if decision.Pending {
		partial.PairsUnresolved++
	}
	if decision.Match.Status == models.MatchStatusConfirmed {
		partial.MatchesFound++
		r.publishDuplicate(ctx, decision.Match)
	}
}

// loadPending lists the candidate-status pairs carried over from earlier
// runs: tie-breaks that failed, pairs waiting on a tie-breaker that was not
// configured, reopened verdicts whose listings never went stale again.
func (r *Runner) loadPending(ctx context.Context, report *models.RunReport) []models.Match {
	var pending []models.Match
	err := r.withRetry(ctx, report, func(ctx context.Context) error {
		var err error
		pending, err = r.matches.ListUnresolved(ctx, r.config.BatchSize)
		return err
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to load unresolved pairs")
		return nil
	}
	return pending
}

// rescorePending re-decides the carried-over candidate pairs so an
// unresolved tie-break is retried on every run, not only when a listing goes
// stale. Pairs the batch loop already settled this run skip out on the
// unchanged checksum.
func (r *Runner) rescorePending(ctx context.Context, pending []models.Match, report *models.RunReport) {
	if len(pending) == 0 {
		return
	}

	ctx, span := tracing.StartSpan(ctx, "dedupe.Runner.rescorePending")
	defer span.End()

	idSet := make(map[string]struct{}, len(pending)*2)
	for _, m := range pending {
		idSet[m.ListingAID] = struct{}{}
		idSet[m.ListingBID] = struct{}{}
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	var listings []models.Listing
	if err := r.withRetry(ctx, report, func(ctx context.Context) error {
		var err error
		listings, err = r.listings.ListByIDs(ctx, ids)
		return err
	}); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to load listings for unresolved pairs")
		return
	}

	var fps []models.Fingerprint
	if err := r.withRetry(ctx, report, func(ctx context.Context) error {
		var err error
		fps, err = r.fingerprints.ListByListingIDs(ctx, ids)
		return err
	}); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to load fingerprints for unresolved pairs")
		return
	}

	listingByID := make(map[string]models.Listing, len(listings))
	for _, l := range listings {
		listingByID[l.ID] = l
	}
	fpByID := make(map[string]models.Fingerprint, len(fps))
	for _, fp := range fps {
		fpByID[fp.ListingID] = fp
	}

	jobs := make(chan models.Match)
	reports := make(chan models.RunReport, len(pending))

	var wg sync.WaitGroup
	for i := 0; i < r.config.ScoreWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				var partial models.RunReport
				a, okA := listingByID[m.ListingAID]
				b, okB := listingByID[m.ListingBID]
				fpA, okFpA := fpByID[m.ListingAID]
				fpB, okFpB := fpByID[m.ListingBID]
				if okA && okB && okFpA && okFpB {
					r.decidePair(ctx, &a, &b, &fpA, &fpB, &partial)
				}
				// An endpoint that was delisted or never fingerprinted
				// leaves the pair pending.
				reports <- partial
			}
		}()
	}

	for _, m := range pending {
		select {
		case jobs <- m:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()
	close(reports)

	for partial := range reports {
		report.Merge(partial)
	}
}

func (r *Runner) publishDuplicate(ctx context.Context, m *models.Match) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.PublishDuplicateFound(ctx, m); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"listing_a_id": m.ListingAID,
			"listing_b_id": m.ListingBID,
		}).Warn("Failed to publish duplicate event")
	}
}

// withRetry retries a storage operation with fibonacci backoff. The budget is
// small; anything still failing after it counts as a transient error and the
// listing is picked up again on the next run.
func (r *Runner) withRetry(ctx context.Context, report *models.RunReport, fn func(ctx context.Context) error) error {
	var lastErr error
	a, b := 1, 1
	for attempt := 1; attempt <= r.config.RetryMaxAttempts; attempt++ {
		if err := fn(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == r.config.RetryMaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(a) * 100 * time.Millisecond):
		}
		a, b = b, a+b
	}

	report.TransientErrors++
	return lastErr
}
