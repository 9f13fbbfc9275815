package models

import (
	"time"
)

// Fingerprint is the derived, deterministic signature of a listing's
// comparable attributes. One row per listing, recomputed whenever the
// listing's matched fields change.
type Fingerprint struct {
	ListingID       string    `json:"listing_id" db:"listing_id"`
	AddressHash     string    `json:"address_hash" db:"address_hash"`
	TitleHash       string    `json:"title_hash" db:"title_hash"`
	DescriptionHash string    `json:"description_hash" db:"description_hash"`
	AreaBucket      int       `json:"area_bucket" db:"area_bucket"`
	PriceBucket     int64     `json:"price_bucket" db:"price_bucket"`
	FloorBucket     *int      `json:"floor_bucket,omitempty" db:"floor_bucket"`
	LocationKey     string    `json:"location_key" db:"location_key"`
	Coarse          bool      `json:"coarse" db:"coarse"`
	LowConfidence   bool      `json:"low_confidence" db:"low_confidence"`
	Checksum        string    `json:"checksum" db:"checksum"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}
