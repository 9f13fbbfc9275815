package match

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/kikokaraba/srei-sub004/pkg/database"
	"github.com/kikokaraba/srei-sub004/pkg/models"
	"github.com/kikokaraba/srei-sub004/pkg/tracing"
)

const matchColumns = "id, listing_a_id, listing_b_id, confidence, status, decision_source, rationale, input_checksum, created_at, updated_at, resolved_at, resolved_by"

// Repository handles match edge persistence. Every pair is stored with
// listing_a_id < listing_b_id; the unique constraint on that ordered pair is
// what makes concurrent scoring race-safe.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new match repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// GetByPair retrieves the match record for a pair, nil when never scored.
// The ids may be passed in either order.
func (r *Repository) GetByPair(ctx context.Context, listingA, listingB string) (*models.Match, error) {
	ctx, span := tracing.StartSpan(ctx, "match.Repository.GetByPair")
	defer span.End()

	a, b := models.CanonicalPair(listingA, listingB)

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(matchColumns)
	sb.From("matches")
	sb.Where(
		sb.Equal("listing_a_id", a),
		sb.Equal("listing_b_id", b),
	)

	query, args := sb.Build()
	var m models.Match
	if err := r.db.GetContext(ctx, &m, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get match by pair")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get match")
	}

	return &m, nil
}

// Upsert writes a match verdict keyed by the canonical pair. A concurrent
// insert of the same pair loses the race on the unique constraint and is
// treated as success; re-running with unchanged inputs only refreshes the
// row, it never duplicates it.
func (r *Repository) Upsert(ctx context.Context, m *models.Match) error {
	ctx, span := tracing.StartSpan(ctx, "match.Repository.Upsert")
	defer span.End()

	if m.ListingAID == m.ListingBID {
		return httperror.NewHTTPError(http.StatusBadRequest, "a listing cannot match itself")
	}

	m.ListingAID, m.ListingBID = models.CanonicalPair(m.ListingAID, m.ListingBID)
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	// ON CONFLICT leaves created_at alone; keep the in-memory copy on the
	// same rule so a re-scored match reports its original creation time
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("matches")
	sb.Cols("id", "listing_a_id", "listing_b_id", "confidence", "status", "decision_source", "rationale", "input_checksum", "created_at", "updated_at", "resolved_at", "resolved_by")
	sb.Values(m.ID, m.ListingAID, m.ListingBID, m.Confidence, m.Status, m.DecisionSource, m.Rationale, m.InputChecksum, m.CreatedAt, m.UpdatedAt, m.ResolvedAt, m.ResolvedBy)

	query, args := sb.Build()
	query += ` ON CONFLICT (listing_a_id, listing_b_id) DO UPDATE SET
		confidence = EXCLUDED.confidence,
		status = EXCLUDED.status,
		decision_source = EXCLUDED.decision_source,
		rationale = EXCLUDED.rationale,
		input_checksum = EXCLUDED.input_checksum,
		updated_at = EXCLUDED.updated_at,
		resolved_at = EXCLUDED.resolved_at,
		resolved_by = EXCLUDED.resolved_by`

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if database.IsUniqueViolation(err) {
			// Lost a race against a concurrent writer of the same pair
			return nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"listing_a_id": m.ListingAID,
			"listing_b_id": m.ListingBID,
		}).Error("Failed to upsert match")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert match")
	}

	return nil
}

// ListConfirmedByListing retrieves confirmed edges touching a listing
func (r *Repository) ListConfirmedByListing(ctx context.Context, listingID string) ([]models.Match, error) {
	ctx, span := tracing.StartSpan(ctx, "match.Repository.ListConfirmedByListing")
	defer span.End()

	query := fmt.Sprintf(`
		SELECT %s FROM matches
		WHERE status = $1
		AND (listing_a_id = $2 OR listing_b_id = $2)
	`, matchColumns)

	var matches []models.Match
	if err := r.db.SelectContext(ctx, &matches, query, models.MatchStatusConfirmed, listingID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list confirmed matches by listing")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list confirmed matches")
	}

	return matches, nil
}

// ListConfirmedByCity retrieves every confirmed edge whose endpoints are in
// the given city. An empty city returns all confirmed edges.
func (r *Repository) ListConfirmedByCity(ctx context.Context, city string) ([]models.Match, error) {
	ctx, span := tracing.StartSpan(ctx, "match.Repository.ListConfirmedByCity")
	defer span.End()

	var matches []models.Match
	var err error

	if city == "" {
		query := fmt.Sprintf("SELECT %s FROM matches WHERE status = $1", matchColumns)
		err = r.db.SelectContext(ctx, &matches, query, models.MatchStatusConfirmed)
	} else {
		query := fmt.Sprintf(`
			SELECT %s FROM matches m
			WHERE m.status = $1
			AND EXISTS (SELECT 1 FROM listings la WHERE la.id = m.listing_a_id AND la.city = $2)
		`, prefixMatchColumns("m"))
		err = r.db.SelectContext(ctx, &matches, query, models.MatchStatusConfirmed, city)
	}

	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list confirmed matches by city")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list confirmed matches")
	}

	return matches, nil
}

// ListUnresolved retrieves candidate-status matches for review, highest
// confidence first
func (r *Repository) ListUnresolved(ctx context.Context, limit int) ([]models.Match, error) {
	ctx, span := tracing.StartSpan(ctx, "match.Repository.ListUnresolved")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(matchColumns)
	sb.From("matches")
	sb.Where(sb.Equal("status", models.MatchStatusCandidate))
	sb.OrderBy("confidence DESC", "created_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var matches []models.Match
	if err := r.db.SelectContext(ctx, &matches, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list unresolved matches")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list unresolved matches")
	}

	return matches, nil
}

// UpdateStatusByPair resolves a pair manually. Used by the review endpoints.
func (r *Repository) UpdateStatusByPair(ctx context.Context, listingA, listingB, status string, resolvedBy *string) error {
	ctx, span := tracing.StartSpan(ctx, "match.Repository.UpdateStatusByPair")
	defer span.End()

	a, b := models.CanonicalPair(listingA, listingB)
	now := time.Now().UTC()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("matches")
	sb.Set(
		sb.Assign("status", status),
		sb.Assign("decision_source", models.DecisionSourceHuman),
		sb.Assign("resolved_at", now),
		sb.Assign("resolved_by", resolvedBy),
		sb.Assign("updated_at", now),
	)
	sb.Where(
		sb.Equal("listing_a_id", a),
		sb.Equal("listing_b_id", b),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update match status")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update match status")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "match not found")
	}

	return nil
}

// ReopenByListing moves every non-human-resolved match touching the listing
// back to candidate status. Called when the listing's fingerprint changed
// materially, so its old verdicts no longer reflect its data.
func (r *Repository) ReopenByListing(ctx context.Context, listingID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "match.Repository.ReopenByListing")
	defer span.End()

	now := time.Now().UTC()
	query := `
		UPDATE matches
		SET status = $1, resolved_at = NULL, updated_at = $2
		WHERE (listing_a_id = $3 OR listing_b_id = $3)
		AND decision_source != $4
	`

	result, err := r.db.ExecContext(ctx, query, models.MatchStatusCandidate, now, listingID, models.DecisionSourceHuman)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to reopen matches")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to reopen matches")
	}

	rows, _ := result.RowsAffected()
	return rows, nil
}

func prefixMatchColumns(alias string) string {
	return fmt.Sprintf("%[1]s.id, %[1]s.listing_a_id, %[1]s.listing_b_id, %[1]s.confidence, %[1]s.status, %[1]s.decision_source, %[1]s.rationale, %[1]s.input_checksum, %[1]s.created_at, %[1]s.updated_at, %[1]s.resolved_at, %[1]s.resolved_by", alias)
}
