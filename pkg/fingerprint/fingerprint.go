// Package fingerprint derives the deterministic signature used to narrow the
// candidate search space before pairwise scoring.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/kikokaraba/srei-sub004/pkg/models"
	"github.com/kikokaraba/srei-sub004/pkg/normalizer"
)

// Config controls bucket granularity. Buckets absorb cross-portal rounding
// noise: two observations of the same unit land in the same bucket even when
// one portal rounds 64.6 m² to 65.
type Config struct {
	AreaBucketSize     float64 // square meters, default 5
	PriceBucketPercent float64 // relative band width, default 5
}

// DefaultConfig returns the starting bucket granularity. These are tuning
// constants, not normative values.
func DefaultConfig() Config {
	return Config{
		AreaBucketSize:     5,
		PriceBucketPercent: 5,
	}
}

// Generator computes listing fingerprints
type Generator struct {
	config Config
	text   *normalizer.TextNormalizer
}

// NewGenerator creates a fingerprint generator
func NewGenerator(config Config, text *normalizer.TextNormalizer) *Generator {
	if config.AreaBucketSize <= 0 {
		config.AreaBucketSize = 5
	}
	if config.PriceBucketPercent <= 0 {
		config.PriceBucketPercent = 5
	}
	return &Generator{config: config, text: text}
}

// Generate computes the fingerprint for a listing. Recomputing from an
// unchanged listing yields a byte-identical fingerprint. A zero price or area
// never fails the generation; it only marks the fingerprint low-confidence so
// downstream stages down-weight it.
func (g *Generator) Generate(listing *models.Listing) models.Fingerprint {
	fp := models.Fingerprint{
		ListingID: listing.ID,
	}

	addr := normalizer.TokenizeAddress(listing.Title, listing.City)
	fp.AddressHash = hashString(addr.Key())
	fp.TitleHash = hashString(g.text.NormalizeTitle(listing.Title))
	fp.DescriptionHash = hashString(g.text.NormalizeDescription(listing.Description))

	fp.AreaBucket = g.AreaBucket(listing.Area)
	fp.PriceBucket = g.PriceBucket(listing.Price)

	if listing.Floor != nil {
		floor := *listing.Floor
		fp.FloorBucket = &floor
	}

	fp.LocationKey, fp.Coarse = g.LocationKey(listing.City, listing.District)
	fp.LowConfidence = listing.Area <= 0 || listing.Price <= 0

	fp.Checksum = g.checksum(&fp)
	return fp
}

// AreaBucket rounds area to the nearest configured granularity
func (g *Generator) AreaBucket(area float64) int {
	if area <= 0 {
		return 0
	}
	return int(math.Round(area/g.config.AreaBucketSize) * g.config.AreaBucketSize)
}

// PriceBucket bands price on a logarithmic grid whose step is the configured
// percentage, so a €50k flat and a €500k penthouse get proportionally
// equivalent banding. The returned value is the representative price of the
// band, not an index.
func (g *Generator) PriceBucket(price float64) int64 {
	if price <= 0 {
		return 0
	}
	step := math.Log1p(g.config.PriceBucketPercent / 100)
	idx := math.Round(math.Log(price) / step)
	return int64(math.Round(math.Exp(idx * step)))
}

// LocationKey combines normalized city and district. A missing district
// yields a city-only key flagged coarse so candidate search widens its
// radius.
func (g *Generator) LocationKey(city string, district *string) (string, bool) {
	normCity := normalizer.CollapseWhitespace(normalizer.Lowercase(normalizer.FoldDiacritics(city)))
	if district == nil || *district == "" {
		return normCity, true
	}
	normDistrict := normalizer.CollapseWhitespace(normalizer.Lowercase(normalizer.FoldDiacritics(*district)))
	return normCity + "|" + normDistrict, false
}

// checksum is a canonical hash over every comparable field. A changed
// checksum means the listing's matched attributes changed materially and its
// matches must be re-opened for re-scoring.
func (g *Generator) checksum(fp *models.Fingerprint) string {
	fields := map[string]string{
		"address_hash":     fp.AddressHash,
		"title_hash":       fp.TitleHash,
		"description_hash": fp.DescriptionHash,
		"area_bucket":      fmt.Sprintf("%d", fp.AreaBucket),
		"price_bucket":     fmt.Sprintf("%d", fp.PriceBucket),
		"location_key":     fp.LocationKey,
	}
	if fp.FloorBucket != nil {
		fields["floor_bucket"] = fmt.Sprintf("%d", *fp.FloorBucket)
	}

	// Canonical ordering keeps the hash deterministic
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(fields[k])
		sb.WriteString(";")
	}
	return hashString(sb.String())
}

// HasChanged compares two fingerprint checksums to detect material change
func HasChanged(oldChecksum, newChecksum string) bool {
	return oldChecksum != newChecksum
}

func hashString(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}
