package grouping

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikokaraba/srei-sub004/pkg/logging"
	"github.com/kikokaraba/srei-sub004/pkg/models"
)

type fakeListingLoader struct {
	listings map[string]models.Listing
}

func (f *fakeListingLoader) Get(_ context.Context, id string) (*models.Listing, error) {
	if l, ok := f.listings[id]; ok {
		return &l, nil
	}
	return nil, nil
}

func (f *fakeListingLoader) ListByIDs(_ context.Context, ids []string) ([]models.Listing, error) {
	out := make([]models.Listing, 0, len(ids))
	for _, id := range ids {
		if l, ok := f.listings[id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeListingLoader) ListCities(_ context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var cities []string
	for _, l := range f.listings {
		if !seen[l.City] {
			seen[l.City] = true
			cities = append(cities, l.City)
		}
	}
	sort.Strings(cities)
	return cities, nil
}

type fakeMatchLoader struct {
	edges []models.Match
}

func (f *fakeMatchLoader) ListConfirmedByListing(_ context.Context, listingID string) ([]models.Match, error) {
	var out []models.Match
	for _, e := range f.edges {
		if e.ListingAID == listingID || e.ListingBID == listingID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeMatchLoader) ListConfirmedByCity(_ context.Context, _ string) ([]models.Match, error) {
	return f.edges, nil
}

func confirmedEdge(a, b string) models.Match {
	a, b = models.CanonicalPair(a, b)
	return models.Match{ListingAID: a, ListingBID: b, Status: models.MatchStatusConfirmed}
}

func listingFixture(id string, price float64, completeness int, createdAt time.Time) models.Listing {
	l := models.Listing{
		ID:          id,
		Source:      models.ListingSourceNehnutelnosti,
		Title:       "3-izbový byt " + id,
		Price:       price,
		Area:        70,
		City:        "Bratislava",
		ListingType: models.ListingTypeSale,
		CreatedAt:   createdAt,
	}
	// Optional fields drive the completeness score
	if completeness > 0 {
		l.Description = "Priestranný byt s balkónom."
		rooms := 3
		l.Rooms = &rooms
	}
	if completeness > 1 {
		district := "Ružinov"
		l.District = &district
		floor := 2
		l.Floor = &floor
	}
	return l
}

func newTestBuilder(listings []models.Listing, edges []models.Match) *Builder {
	byID := make(map[string]models.Listing, len(listings))
	for _, l := range listings {
		byID[l.ID] = l
	}
	return NewBuilder(logging.NewNop(), &fakeListingLoader{listings: byID}, &fakeMatchLoader{edges: edges})
}

func TestUnionFindTransitiveGroups(t *testing.T) {
	uf := newUnionFind()
	uf.union("a", "b")
	uf.union("b", "c")
	uf.union("x", "y")
	uf.find("lonely")

	groups := uf.groups()
	require.Len(t, groups, 2)

	sizes := make(map[int]int)
	for _, members := range groups {
		sizes[len(members)]++
	}
	assert.Equal(t, 1, sizes[3])
	assert.Equal(t, 1, sizes[2])
}

func TestBuildGroupTransitiveClosure(t *testing.T) {
	// a-b and b-c confirmed: all three form one group even though a-c was
	// never scored directly
	now := time.Now()
	builder := newTestBuilder(
		[]models.Listing{
			listingFixture("a", 180000, 2, now.Add(-48*time.Hour)),
			listingFixture("b", 185000, 1, now.Add(-24*time.Hour)),
			listingFixture("c", 179000, 0, now),
		},
		[]models.Match{confirmedEdge("a", "b"), confirmedEdge("b", "c")},
	)

	record, err := builder.BuildGroup(context.Background(), "c")
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, 3, record.Count)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, record.MemberIDs)
	// Most complete listing wins the master election
	assert.Equal(t, "a", record.Master.ID)
	assert.Equal(t, 179000.0, record.BestPrice)
	assert.Equal(t, 185000.0, record.WorstPrice)
	assert.Equal(t, 180000.0, record.MedianPrice)
	assert.Equal(t, 6000.0, record.PotentialSavings)
	assert.InDelta(t, 3.24, record.SavingsPercent, 0.01)
}

func TestBuildGroupSingletonIsNil(t *testing.T) {
	builder := newTestBuilder(
		[]models.Listing{listingFixture("a", 180000, 2, time.Now())},
		nil,
	)

	record, err := builder.BuildGroup(context.Background(), "a")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestMasterElectionTieBreaksOnAge(t *testing.T) {
	now := time.Now()
	older := listingFixture("older", 180000, 2, now.Add(-72*time.Hour))
	newer := listingFixture("newer", 181000, 2, now)

	builder := newTestBuilder(
		[]models.Listing{older, newer},
		[]models.Match{confirmedEdge("older", "newer")},
	)

	record, err := builder.BuildGroup(context.Background(), "newer")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "older", record.Master.ID)
}

func TestFindAllGroupsOrdersBySavings(t *testing.T) {
	now := time.Now()
	builder := newTestBuilder(
		[]models.Listing{
			listingFixture("a1", 100000, 2, now),
			listingFixture("a2", 105000, 1, now),
			listingFixture("b1", 200000, 2, now),
			listingFixture("b2", 230000, 1, now),
		},
		[]models.Match{confirmedEdge("a1", "a2"), confirmedEdge("b1", "b2")},
	)

	records, err := builder.FindAllGroups(context.Background(), "Bratislava", 0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, 30000.0, records[0].PotentialSavings)
	assert.Equal(t, 5000.0, records[1].PotentialSavings)
}

func TestStats(t *testing.T) {
	now := time.Now()
	builder := newTestBuilder(
		[]models.Listing{
			listingFixture("a1", 100000, 2, now),
			listingFixture("a2", 105000, 1, now),
			listingFixture("a3", 102000, 0, now),
			listingFixture("b1", 200000, 2, now),
			listingFixture("b2", 230000, 1, now),
		},
		[]models.Match{
			confirmedEdge("a1", "a2"),
			confirmedEdge("a2", "a3"),
			confirmedEdge("b1", "b2"),
		},
	)

	stats, err := builder.Stats(context.Background(), "Bratislava")
	require.NoError(t, err)

	assert.Equal(t, 2, stats.GroupCount)
	assert.Equal(t, 5, stats.DistinctListings)
	assert.Equal(t, 3, stats.DuplicateCount)
	assert.Equal(t, 3, stats.LargestGroup)
	assert.Equal(t, 35000.0, stats.TotalSavings)
	assert.Equal(t, 30000.0, stats.MaxSavings)
}

func TestCities(t *testing.T) {
	now := time.Now()
	a := listingFixture("a", 100000, 2, now)
	b := listingFixture("b", 105000, 1, now)
	b.City = "Košice"

	builder := newTestBuilder([]models.Listing{a, b}, nil)

	cities, err := builder.Cities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Bratislava", "Košice"}, cities)
}

func TestSourcesAggregated(t *testing.T) {
	now := time.Now()
	a := listingFixture("a", 100000, 2, now)
	b := listingFixture("b", 105000, 1, now)
	b.Source = models.ListingSourceTopReality

	builder := newTestBuilder([]models.Listing{a, b}, []models.Match{confirmedEdge("a", "b")})

	record, err := builder.BuildGroup(context.Background(), "a")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, []string{"nehnutelnosti", "topreality"}, record.Sources)
}
