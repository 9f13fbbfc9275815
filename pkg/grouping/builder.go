// Package grouping assembles duplicate groups from confirmed match edges and
// elects a master record per group. Groups are a pure function of the current
// confirmed edge set, so a rejected or reopened match changes group
// membership immediately without any cleanup pass.
package grouping

import (
	"context"
	"fmt"
	"sort"

	"github.com/Gobusters/ectologger"

	"github.com/kikokaraba/srei-sub004/pkg/models"
	"github.com/kikokaraba/srei-sub004/pkg/tracing"
)

// ListingLoader is the listing-store surface the group builder depends on
type ListingLoader interface {
	Get(ctx context.Context, id string) (*models.Listing, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Listing, error)
	ListCities(ctx context.Context) ([]string, error)
}

// MatchLoader is the match-store surface the group builder depends on
type MatchLoader interface {
	ListConfirmedByListing(ctx context.Context, listingID string) ([]models.Match, error)
	ListConfirmedByCity(ctx context.Context, city string) ([]models.Match, error)
}

// Builder builds duplicate groups and master records
type Builder struct {
	logger   ectologger.Logger
	listings ListingLoader
	matches  MatchLoader
}

// NewBuilder creates a group builder
func NewBuilder(logger ectologger.Logger, listings ListingLoader, matches MatchLoader) *Builder {
	return &Builder{
		logger:   logger,
		listings: listings,
		matches:  matches,
	}
}

// BuildGroup returns the master record for the group containing the given
// listing, or nil when the listing has no confirmed duplicates. Membership is
// the transitive closure over confirmed edges, walked breadth-first.
func (b *Builder) BuildGroup(ctx context.Context, listingID string) (*models.MasterRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "grouping.Builder.BuildGroup")
	defer span.End()

	seen := map[string]bool{listingID: true}
	frontier := []string{listingID}

	for len(frontier) > 0 {
		next := make([]string, 0)
		for _, id := range frontier {
			edges, err := b.matches.ListConfirmedByListing(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("failed to load confirmed matches for %s: %w", id, err)
			}
			for _, edge := range edges {
				other := edge.OtherListing(id)
				if !seen[other] {
					seen[other] = true
					next = append(next, other)
				}
			}
		}
		frontier = next
	}

	if len(seen) < 2 {
		return nil, nil
	}

	memberIDs := make([]string, 0, len(seen))
	for id := range seen {
		memberIDs = append(memberIDs, id)
	}

	members, err := b.listings.ListByIDs(ctx, memberIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load group members: %w", err)
	}

	return buildMasterRecord(members), nil
}

// FindAllGroups returns master records for every duplicate group in a city,
// largest savings first. An empty city means all cities.
func (b *Builder) FindAllGroups(ctx context.Context, city string, limit int) ([]models.MasterRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "grouping.Builder.FindAllGroups")
	defer span.End()

	edges, err := b.matches.ListConfirmedByCity(ctx, city)
	if err != nil {
		return nil, fmt.Errorf("failed to load confirmed matches: %w", err)
	}

	uf := newUnionFind()
	for _, edge := range edges {
		uf.union(edge.ListingAID, edge.ListingBID)
	}

	records := make([]models.MasterRecord, 0)
	for _, memberIDs := range uf.groups() {
		members, err := b.listings.ListByIDs(ctx, memberIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to load group members: %w", err)
		}
		if len(members) < 2 {
			// members may have been deleted since the edges were written
			continue
		}
		records = append(records, *buildMasterRecord(members))
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].PotentialSavings != records[j].PotentialSavings {
			return records[i].PotentialSavings > records[j].PotentialSavings
		}
		return records[i].Master.ID < records[j].Master.ID
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Cities returns the cities with active listings, for the group list filter
func (b *Builder) Cities(ctx context.Context) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "grouping.Builder.Cities")
	defer span.End()

	return b.listings.ListCities(ctx)
}

// Stats aggregates duplicate coverage over the groups of a city
func (b *Builder) Stats(ctx context.Context, city string) (*models.DuplicateStats, error) {
	ctx, span := tracing.StartSpan(ctx, "grouping.Builder.Stats")
	defer span.End()

	records, err := b.FindAllGroups(ctx, city, 0)
	if err != nil {
		return nil, err
	}

	stats := &models.DuplicateStats{City: city, GroupCount: len(records)}
	totalPct := 0.0
	for _, rec := range records {
		stats.DistinctListings += rec.Count
		stats.DuplicateCount += rec.Count - 1
		if rec.Count > stats.LargestGroup {
			stats.LargestGroup = rec.Count
		}
		stats.TotalSavings += rec.PotentialSavings
		if rec.PotentialSavings > stats.MaxSavings {
			stats.MaxSavings = rec.PotentialSavings
		}
		totalPct += rec.SavingsPercent
	}
	if len(records) > 0 {
		stats.AvgSavingsPct = totalPct / float64(len(records))
	}
	return stats, nil
}

// buildMasterRecord elects the master and computes price statistics for one
// group. Election is deterministic: most complete listing wins, oldest breaks
// ties, id breaks the rest.
func buildMasterRecord(members []models.Listing) *models.MasterRecord {
	sort.Slice(members, func(i, j int) bool {
		si, sj := members[i].CompletenessScore(), members[j].CompletenessScore()
		if si != sj {
			return si > sj
		}
		if !members[i].CreatedAt.Equal(members[j].CreatedAt) {
			return members[i].CreatedAt.Before(members[j].CreatedAt)
		}
		return members[i].ID < members[j].ID
	})

	rec := &models.MasterRecord{
		Master:  members[0],
		Members: members,
		Count:   len(members),
	}

	prices := make([]float64, 0, len(members))
	sourceSet := make(map[string]bool)
	for _, m := range members {
		rec.MemberIDs = append(rec.MemberIDs, m.ID)
		if m.Price > 0 {
			prices = append(prices, m.Price)
		}
		sourceSet[string(m.Source)] = true
	}
	for source := range sourceSet {
		rec.Sources = append(rec.Sources, source)
	}
	sort.Strings(rec.Sources)

	if len(prices) > 0 {
		sort.Float64s(prices)
		rec.BestPrice = prices[0]
		rec.WorstPrice = prices[len(prices)-1]
		rec.MedianPrice = median(prices)
		rec.PotentialSavings = rec.WorstPrice - rec.BestPrice
		if rec.WorstPrice > 0 {
			rec.SavingsPercent = rec.PotentialSavings / rec.WorstPrice * 100
		}
	}
	return rec
}

// median expects a sorted slice
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
