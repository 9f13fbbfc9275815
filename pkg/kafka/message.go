package kafka

import (
	"encoding/json"
	"time"
)

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Parsed content
	ChangeEvent *ListingChangeEvent
}

// ListingChangeEvent is emitted by the scraper pipeline whenever a listing is
// created or updated on a source portal
type ListingChangeEvent struct {
	EventType string    `json:"event_type"` // created, updated, deleted
	ListingID string    `json:"listing_id"`
	Source    string    `json:"source"`
	City      string    `json:"city,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ParseChangeEvent parses the message value as a listing change event
func (m *IncomingMessage) ParseChangeEvent() error {
	var event ListingChangeEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return err
	}
	m.ChangeEvent = &event
	return nil
}

// GetListingID returns the listing id from the event, falling back to the
// message key
func (m *IncomingMessage) GetListingID() string {
	if m.ChangeEvent != nil && m.ChangeEvent.ListingID != "" {
		return m.ChangeEvent.ListingID
	}
	return m.Key
}
