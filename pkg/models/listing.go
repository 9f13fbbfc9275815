package models

import (
	"time"
)

// ListingSource identifies the portal a listing was scraped from
type ListingSource string

const (
	ListingSourceNehnutelnosti ListingSource = "nehnutelnosti"
	ListingSourceReality       ListingSource = "reality"
	ListingSourceTopReality    ListingSource = "topreality"
	ListingSourceBazos         ListingSource = "bazos"
)

// ListingType distinguishes sale and rental listings
type ListingType string

const (
	ListingTypeSale ListingType = "sale"
	ListingTypeRent ListingType = "rent"
)

// ListingStatus is the lifecycle status maintained by the ingestion pipeline
const (
	ListingStatusActive  = "active"
	ListingStatusRemoved = "removed"
	ListingStatusUnknown = "unknown"
)

// Listing is one observation of a property from one source at one point in time.
// It is owned by the ingestion pipeline; the dedup engine only reads it and
// annotates it with fingerprints and matches.
type Listing struct {
	ID           string        `json:"id" db:"id"`
	Source       ListingSource `json:"source" db:"source"`
	Title        string        `json:"title" db:"title"`
	Description  string        `json:"description" db:"description"`
	Price        float64       `json:"price" db:"price"`
	PricePerArea float64       `json:"price_per_area" db:"price_per_area"`
	Area         float64       `json:"area" db:"area"`
	Rooms        *int          `json:"rooms,omitempty" db:"rooms"`
	City         string        `json:"city" db:"city"`
	District     *string       `json:"district,omitempty" db:"district"`
	Floor        *int          `json:"floor,omitempty" db:"floor"`
	ListingType  ListingType   `json:"listing_type" db:"listing_type"`
	SourceURL    string        `json:"source_url" db:"source_url"`
	Status       string        `json:"status" db:"status"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
}

// CompletenessScore counts the optional fields that carry data. Used as the
// first master-election tie-break.
func (l *Listing) CompletenessScore() int {
	score := 0
	if l.Rooms != nil {
		score++
	}
	if l.District != nil && *l.District != "" {
		score++
	}
	if l.Floor != nil {
		score++
	}
	if l.Description != "" {
		score++
	}
	if l.PricePerArea > 0 {
		score++
	}
	return score
}

// CandidateQuery describes the range filters used by candidate search
type CandidateQuery struct {
	LocationKey string
	CityOnly    bool // widen to the whole city when the location key is coarse
	City        string
	MinArea     float64
	MaxArea     float64
	MinPrice    float64
	MaxPrice    float64
	ListingType ListingType
	ExcludeID   string
	Limit       int
}
