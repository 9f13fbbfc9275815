package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikokaraba/srei-sub004/pkg/models"
	"github.com/kikokaraba/srei-sub004/pkg/normalizer"
)

func newTestGenerator() *Generator {
	return NewGenerator(DefaultConfig(), normalizer.NewTextNormalizer([]string{"exkluzivne", "top ponuka"}))
}

func testListing() models.Listing {
	rooms := 3
	district := "Ružinov"
	return models.Listing{
		ID:          "listing-1",
		Source:      models.ListingSourceNehnutelnosti,
		Title:       "3-izbový byt, Mierová 12, Ružinov",
		Description: "Priestranný byt s balkónom a výhľadom do vnútrobloku.",
		Price:       180000,
		Area:        64,
		Rooms:       &rooms,
		City:        "Bratislava",
		District:    &district,
		ListingType: models.ListingTypeSale,
	}
}

func TestGenerateDeterministic(t *testing.T) {
	g := newTestGenerator()
	l := testListing()

	first := g.Generate(&l)
	second := g.Generate(&l)

	assert.Equal(t, first, second)
	assert.NotEmpty(t, first.Checksum)
}

func TestAreaBucketRounding(t *testing.T) {
	g := newTestGenerator()

	// 5 m² granularity absorbs cross-portal rounding: 64 m² and 65 m²
	// land in the same bucket.
	assert.Equal(t, 65, g.AreaBucket(64))
	assert.Equal(t, 65, g.AreaBucket(65))
	assert.Equal(t, 65, g.AreaBucket(66))
	assert.Equal(t, 70, g.AreaBucket(68))
	assert.Equal(t, 0, g.AreaBucket(0))
	assert.Equal(t, 0, g.AreaBucket(-10))
}

func TestPriceBucketRelativeBanding(t *testing.T) {
	g := newTestGenerator()

	// Asking prices within the relative band share a bucket
	assert.Equal(t, g.PriceBucket(180000), g.PriceBucket(182000))
	assert.NotEqual(t, g.PriceBucket(180000), g.PriceBucket(250000))
	assert.Equal(t, int64(0), g.PriceBucket(0))
}

func TestLocationKey(t *testing.T) {
	g := newTestGenerator()

	district := "Ružinov"
	key, coarse := g.LocationKey("Bratislava", &district)
	assert.Equal(t, "bratislava|ruzinov", key)
	assert.False(t, coarse)

	key, coarse = g.LocationKey("Košice", nil)
	assert.Equal(t, "kosice", key)
	assert.True(t, coarse)

	empty := ""
	key, coarse = g.LocationKey("Košice", &empty)
	assert.Equal(t, "kosice", key)
	assert.True(t, coarse)
}

func TestChecksumChangesOnMaterialChange(t *testing.T) {
	g := newTestGenerator()
	l := testListing()
	base := g.Generate(&l)

	changed := l
	changed.Price = 250000
	fp := g.Generate(&changed)
	assert.True(t, HasChanged(base.Checksum, fp.Checksum))

	retitled := l
	retitled.Title = "Veľkometrážny 3-izbový byt v Ružinove"
	fp = g.Generate(&retitled)
	assert.True(t, HasChanged(base.Checksum, fp.Checksum))
}

func TestChecksumStableAcrossCosmeticChange(t *testing.T) {
	g := newTestGenerator()
	l := testListing()
	base := g.Generate(&l)

	// Same price within the bucket band and reformatted title whitespace
	// must not count as material change
	cosmetic := l
	cosmetic.Price = 181000
	cosmetic.Title = "3-izbový   byt, Mierová 12,  Ružinov"
	fp := g.Generate(&cosmetic)
	assert.False(t, HasChanged(base.Checksum, fp.Checksum))
}

func TestLowConfidenceFlag(t *testing.T) {
	g := newTestGenerator()

	l := testListing()
	fp := g.Generate(&l)
	require.False(t, fp.LowConfidence)

	noArea := testListing()
	noArea.Area = 0
	fp = g.Generate(&noArea)
	assert.True(t, fp.LowConfidence)

	noPrice := testListing()
	noPrice.Price = 0
	fp = g.Generate(&noPrice)
	assert.True(t, fp.LowConfidence)
}

func TestBoilerplateDoesNotAffectHashes(t *testing.T) {
	g := newTestGenerator()

	plain := testListing()
	decorated := testListing()
	decorated.Title = "EXKLUZÍVNE! " + plain.Title

	fpPlain := g.Generate(&plain)
	fpDecorated := g.Generate(&decorated)

	assert.Equal(t, fpPlain.TitleHash, fpDecorated.TitleHash)
}
