package fingerprint

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/kikokaraba/srei-sub004/pkg/database"
	"github.com/kikokaraba/srei-sub004/pkg/models"
	"github.com/kikokaraba/srei-sub004/pkg/tracing"
)

const fingerprintColumns = "listing_id, address_hash, title_hash, description_hash, area_bucket, price_bucket, floor_bucket, location_key, coarse, low_confidence, checksum, created_at, updated_at"

// Repository handles fingerprint persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new fingerprint repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves the fingerprint for a listing, nil when none exists yet
func (r *Repository) Get(ctx context.Context, listingID string) (*models.Fingerprint, error) {
	ctx, span := tracing.StartSpan(ctx, "fingerprint.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(fingerprintColumns)
	sb.From("fingerprints")
	sb.Where(sb.Equal("listing_id", listingID))

	query, args := sb.Build()
	var fp models.Fingerprint
	if err := r.db.GetContext(ctx, &fp, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get fingerprint")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get fingerprint")
	}

	return &fp, nil
}

// Upsert writes a fingerprint keyed by listing id. Re-running on unchanged
// input overwrites with identical values, keeping the operation idempotent.
func (r *Repository) Upsert(ctx context.Context, fp *models.Fingerprint) error {
	ctx, span := tracing.StartSpan(ctx, "fingerprint.Repository.Upsert")
	defer span.End()

	now := time.Now().UTC()
	fp.CreatedAt = now
	fp.UpdatedAt = now

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("fingerprints")
	sb.Cols("listing_id", "address_hash", "title_hash", "description_hash", "area_bucket", "price_bucket", "floor_bucket", "location_key", "coarse", "low_confidence", "checksum", "created_at", "updated_at")
	sb.Values(fp.ListingID, fp.AddressHash, fp.TitleHash, fp.DescriptionHash, fp.AreaBucket, fp.PriceBucket, fp.FloorBucket, fp.LocationKey, fp.Coarse, fp.LowConfidence, fp.Checksum, fp.CreatedAt, fp.UpdatedAt)

	query, args := sb.Build()
	query += ` ON CONFLICT (listing_id) DO UPDATE SET
		address_hash = EXCLUDED.address_hash,
		title_hash = EXCLUDED.title_hash,
		description_hash = EXCLUDED.description_hash,
		area_bucket = EXCLUDED.area_bucket,
		price_bucket = EXCLUDED.price_bucket,
		floor_bucket = EXCLUDED.floor_bucket,
		location_key = EXCLUDED.location_key,
		coarse = EXCLUDED.coarse,
		low_confidence = EXCLUDED.low_confidence,
		checksum = EXCLUDED.checksum,
		updated_at = EXCLUDED.updated_at`

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"listing_id": fp.ListingID}).Error("Failed to upsert fingerprint")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert fingerprint")
	}

	return nil
}

// ListByListingIDs retrieves fingerprints for a batch of listings
func (r *Repository) ListByListingIDs(ctx context.Context, listingIDs []string) ([]models.Fingerprint, error) {
	ctx, span := tracing.StartSpan(ctx, "fingerprint.Repository.ListByListingIDs")
	defer span.End()

	if len(listingIDs) == 0 {
		return nil, nil
	}

	ids := make([]any, len(listingIDs))
	for i, id := range listingIDs {
		ids[i] = id
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(fingerprintColumns)
	sb.From("fingerprints")
	sb.Where(sb.In("listing_id", ids...))

	query, args := sb.Build()
	var fps []models.Fingerprint
	if err := r.db.SelectContext(ctx, &fps, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list fingerprints")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list fingerprints")
	}

	return fps, nil
}
