// Package listing reads the listing store. Listings are owned by the
// ingestion pipeline; this repository never creates or deletes them.
package listing

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/kikokaraba/srei-sub004/pkg/database"
	"github.com/kikokaraba/srei-sub004/pkg/models"
	"github.com/kikokaraba/srei-sub004/pkg/tracing"
)

const listingColumns = "id, source, title, description, price, price_per_area, area, rooms, city, district, floor, listing_type, source_url, status, created_at, updated_at"

// Repository handles listing reads
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new listing repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves a listing by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.Listing, error) {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(listingColumns)
	sb.From("listings")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var listing models.Listing
	if err := r.db.GetContext(ctx, &listing, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("listing %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get listing")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get listing")
	}

	return &listing, nil
}

// ListByIDs retrieves multiple listings at once for group building
func (r *Repository) ListByIDs(ctx context.Context, ids []string) ([]models.Listing, error) {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.ListByIDs")
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(listingColumns)
	sb.From("listings")
	sb.Where(sb.In("id", idsToAny(ids)...))

	query, args := sb.Build()
	var listings []models.Listing
	if err := r.db.SelectContext(ctx, &listings, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list listings by ids")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list listings")
	}

	return listings, nil
}

// ListNeedingFingerprint selects active listings with no fingerprint or with
// a fingerprint older than their last update. This is the stale set the
// batch run works through; a crash mid-run just leaves a smaller stale set
// for the next run.
func (r *Repository) ListNeedingFingerprint(ctx context.Context, limit int) ([]models.Listing, error) {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.ListNeedingFingerprint")
	defer span.End()

	if limit < 1 {
		limit = 500
	}

	query := fmt.Sprintf(`
		SELECT %s FROM listings l
		LEFT JOIN fingerprints f ON f.listing_id = l.id
		WHERE l.status = $1
		AND (f.listing_id IS NULL OR l.updated_at > f.updated_at)
		ORDER BY l.updated_at ASC
		LIMIT $2
	`, prefixColumns("l"))

	var listings []models.Listing
	if err := r.db.SelectContext(ctx, &listings, query, models.ListingStatusActive, limit); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list listings needing fingerprint")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list stale listings")
	}

	return listings, nil
}

// FindCandidates runs the recall-oriented range query behind candidate
// search: same location (or whole city for coarse keys), area and price
// inside the tolerance bands, same listing type, active only.
func (r *Repository) FindCandidates(ctx context.Context, q models.CandidateQuery) ([]models.Listing, error) {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.FindCandidates")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(prefixColumns("l"))
	sb.From("listings l")
	sb.JoinWithOption(sqlbuilder.InnerJoin, "fingerprints f", "f.listing_id = l.id")

	where := []string{
		sb.Equal("l.status", models.ListingStatusActive),
		sb.Equal("l.listing_type", q.ListingType),
		sb.NotEqual("l.id", q.ExcludeID),
	}

	if q.CityOnly {
		// Coarse key: any fingerprint in the same city, with or without a
		// resolved district. A bare prefix match would also catch
		// municipalities sharing the prefix ("nitra" vs "nitrianske
		// hrnciarovce"), so the district separator is part of the pattern.
		where = append(where, fmt.Sprintf("(f.location_key = %s OR f.location_key LIKE %s)",
			sb.Var(q.City), sb.Var(q.City+"|%")))
	} else {
		where = append(where, fmt.Sprintf("(f.location_key = %s OR f.location_key = %s)",
			sb.Var(q.LocationKey), sb.Var(q.City)))
	}

	if q.MaxArea > 0 {
		where = append(where, sb.Between("l.area", q.MinArea, q.MaxArea))
	}
	if q.MaxPrice > 0 {
		where = append(where, sb.Between("l.price", q.MinPrice, q.MaxPrice))
	}

	sb.Where(where...)
	limit := q.Limit
	if limit < 1 || limit > 500 {
		limit = 100
	}
	sb.Limit(limit)

	query, args := sb.Build()
	var listings []models.Listing
	if err := r.db.SelectContext(ctx, &listings, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to find candidate listings")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find candidates")
	}

	return listings, nil
}

// ListCities returns the distinct cities with active listings
func (r *Repository) ListCities(ctx context.Context) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.ListCities")
	defer span.End()

	var cities []string
	if err := r.db.SelectContext(ctx, &cities, "SELECT DISTINCT city FROM listings WHERE status = $1 ORDER BY city", models.ListingStatusActive); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list cities")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list cities")
	}
	return cities, nil
}

// Touch bumps a listing's updated_at so the next run re-fingerprints it.
// Used by the change-event consumer.
func (r *Repository) Touch(ctx context.Context, id string, at time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.Touch")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("listings")
	sb.Set(sb.Assign("updated_at", at.UTC()))
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"listing_id": id}).Error("Failed to touch listing")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to touch listing")
	}
	return nil
}

func prefixColumns(alias string) string {
	return fmt.Sprintf("%[1]s.id, %[1]s.source, %[1]s.title, %[1]s.description, %[1]s.price, %[1]s.price_per_area, %[1]s.area, %[1]s.rooms, %[1]s.city, %[1]s.district, %[1]s.floor, %[1]s.listing_type, %[1]s.source_url, %[1]s.status, %[1]s.created_at, %[1]s.updated_at", alias)
}

func idsToAny(ids []string) []any {
	result := make([]any, len(ids))
	for i, id := range ids {
		result[i] = id
	}
	return result
}
