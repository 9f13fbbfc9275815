package matching

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikokaraba/srei-sub004/pkg/fingerprint"
	"github.com/kikokaraba/srei-sub004/pkg/logging"
	"github.com/kikokaraba/srei-sub004/pkg/models"
)

// fakeListingStore mimics the range filters the SQL candidate query applies.
// When locations is set it also emulates the location-key predicate, keyed by
// listing ID.
type fakeListingStore struct {
	listings  []models.Listing
	locations map[string]string
}

func (f *fakeListingStore) FindCandidates(_ context.Context, q models.CandidateQuery) ([]models.Listing, error) {
	var out []models.Listing
	for _, l := range f.listings {
		if l.ID == q.ExcludeID || l.ListingType != q.ListingType {
			continue
		}
		if q.MinArea > 0 && (l.Area < q.MinArea || l.Area > q.MaxArea) {
			continue
		}
		if q.MinPrice > 0 && (l.Price < q.MinPrice || l.Price > q.MaxPrice) {
			continue
		}
		if f.locations != nil {
			key := f.locations[l.ID]
			if q.CityOnly {
				if key != q.City && !strings.HasPrefix(key, q.City+"|") {
					continue
				}
			} else if key != q.LocationKey && key != q.City {
				continue
			}
		}
		out = append(out, l)
	}
	return out, nil
}

type fakePairStore struct {
	matches map[string]*models.Match
}

func pairKey(a, b string) string {
	a, b = models.CanonicalPair(a, b)
	return a + "|" + b
}

func (f *fakePairStore) GetByPair(_ context.Context, a, b string) (*models.Match, error) {
	return f.matches[pairKey(a, b)], nil
}

func newTestSearcher(listings []models.Listing, matches map[string]*models.Match) *Searcher {
	return NewSearcher(
		logging.NewNop(),
		&fakeListingStore{listings: listings},
		&fakePairStore{matches: matches},
		DefaultSearchConfig(),
	)
}

func TestFindCandidatesToleranceBand(t *testing.T) {
	// 10% area tolerance around 70 m²: 76 m² is in, 90 m² is out
	target := saleListing("t", "3-izbový byt Ružinov", 200000, 70, 3, "Ružinov")
	inBand := saleListing("in", "3i byt Ružinov", 205000, 76, 3, "Ružinov")
	outOfBand := saleListing("out", "Veľký byt Ružinov", 210000, 90, 3, "Ružinov")

	searcher := newTestSearcher([]models.Listing{target, inBand, outOfBand}, nil)
	gen := fingerprint.NewGenerator(fingerprint.DefaultConfig(), newTestText())
	fp := gen.Generate(&target)

	candidates, err := searcher.FindCandidates(context.Background(), &target, &fp)
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, "in", candidates[0].Listing.ID)
}

func TestFindCandidatesCoarseKeyStaysInCity(t *testing.T) {
	// A coarse key widens to the whole city, never to a municipality that
	// merely shares the city name as a prefix.
	rooms := 3
	district := "Staré Mesto"
	target := models.Listing{
		ID: "t", Title: "3-izbový byt Nitra", Price: 180000, Area: 70,
		Rooms: &rooms, City: "Nitra", ListingType: models.ListingTypeSale,
	}
	sameCity := models.Listing{
		ID: "same", Title: "3i byt v centre", Price: 182000, Area: 71,
		Rooms: &rooms, City: "Nitra", District: &district, ListingType: models.ListingTypeSale,
	}
	neighbour := models.Listing{
		ID: "nb", Title: "3i byt", Price: 181000, Area: 70,
		Rooms: &rooms, City: "Nitrianske Hrnčiarovce", ListingType: models.ListingTypeSale,
	}

	gen := fingerprint.NewGenerator(fingerprint.DefaultConfig(), newTestText())
	locations := map[string]string{}
	for _, l := range []models.Listing{target, sameCity, neighbour} {
		fp := gen.Generate(&l)
		locations[l.ID] = fp.LocationKey
	}

	searcher := NewSearcher(
		logging.NewNop(),
		&fakeListingStore{listings: []models.Listing{target, sameCity, neighbour}, locations: locations},
		&fakePairStore{},
		DefaultSearchConfig(),
	)
	fp := gen.Generate(&target)
	require.True(t, fp.Coarse)

	candidates, err := searcher.FindCandidates(context.Background(), &target, &fp)
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, "same", candidates[0].Listing.ID)
}

func TestFindCandidatesExcludesSelf(t *testing.T) {
	target := saleListing("t", "2-izbový byt", 150000, 55, 2, "Ružinov")

	searcher := newTestSearcher([]models.Listing{target}, nil)
	gen := fingerprint.NewGenerator(fingerprint.DefaultConfig(), newTestText())
	fp := gen.Generate(&target)

	candidates, err := searcher.FindCandidates(context.Background(), &target, &fp)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestFindCandidatesSkipsRejectedPairs(t *testing.T) {
	target := saleListing("t", "2-izbový byt", 150000, 55, 2, "Ružinov")
	other := saleListing("o", "2i byt", 152000, 56, 2, "Ružinov")

	rejected := map[string]*models.Match{
		pairKey("t", "o"): {
			ListingAID: "o",
			ListingBID: "t",
			Status:     models.MatchStatusRejected,
		},
	}

	searcher := newTestSearcher([]models.Listing{target, other}, rejected)
	gen := fingerprint.NewGenerator(fingerprint.DefaultConfig(), newTestText())
	fp := gen.Generate(&target)

	candidates, err := searcher.FindCandidates(context.Background(), &target, &fp)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestFindCandidatesRoomDiffFilter(t *testing.T) {
	target := saleListing("t", "3-izbový byt", 200000, 70, 3, "Ružinov")
	oneOff := saleListing("a", "2i byt", 198000, 68, 2, "Ružinov")
	twoOff := saleListing("b", "1i byt", 202000, 71, 1, "Ružinov")

	searcher := newTestSearcher([]models.Listing{target, oneOff, twoOff}, nil)
	gen := fingerprint.NewGenerator(fingerprint.DefaultConfig(), newTestText())
	fp := gen.Generate(&target)

	candidates, err := searcher.FindCandidates(context.Background(), &target, &fp)
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, "a", candidates[0].Listing.ID)
}

func TestFindCandidatesRankedAndCapped(t *testing.T) {
	target := saleListing("t", "3-izbový byt", 200000, 70, 3, "Ružinov")
	closest := saleListing("c1", "3i byt", 200500, 70, 3, "Ružinov")
	near := saleListing("c2", "3i byt", 205000, 72, 3, "Ružinov")
	farthest := saleListing("c3", "3i byt", 215000, 76, 3, "Ružinov")

	searcher := NewSearcher(
		logging.NewNop(),
		&fakeListingStore{listings: []models.Listing{target, closest, near, farthest}},
		&fakePairStore{},
		SearchConfig{AreaTolerancePercent: 10, PriceTolerancePercent: 15, MaxCandidates: 2},
	)
	gen := fingerprint.NewGenerator(fingerprint.DefaultConfig(), newTestText())
	fp := gen.Generate(&target)

	candidates, err := searcher.FindCandidates(context.Background(), &target, &fp)
	require.NoError(t, err)

	require.Len(t, candidates, 2)
	assert.Equal(t, "c1", candidates[0].Listing.ID)
	assert.Equal(t, "c2", candidates[1].Listing.ID)
}
