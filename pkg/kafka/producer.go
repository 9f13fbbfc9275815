package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/kikokaraba/srei-sub004/pkg/metrics"
	"github.com/kikokaraba/srei-sub004/pkg/models"
	"github.com/kikokaraba/srei-sub004/pkg/tracing"
)

// Producer handles Kafka event emission
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// DuplicateFoundEvent announces a newly confirmed duplicate pair
type DuplicateFoundEvent struct {
	EventType      string    `json:"event_type"` // duplicate.found
	ListingAID     string    `json:"listing_a_id"`
	ListingBID     string    `json:"listing_b_id"`
	Confidence     float64   `json:"confidence"`
	DecisionSource string    `json:"decision_source"`
	Timestamp      time.Time `json:"timestamp"`
}

// PublishDuplicateFound publishes an event for a confirmed duplicate pair.
// The canonical pair string keys the message so both endpoints of the same
// pair always land on the same partition.
func (p *Producer) PublishDuplicateFound(ctx context.Context, m *models.Match) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishDuplicateFound")
	defer span.End()

	event := DuplicateFoundEvent{
		EventType:      "duplicate.found",
		ListingAID:     m.ListingAID,
		ListingBID:     m.ListingBID,
		Confidence:     m.Confidence,
		DecisionSource: m.DecisionSource,
		Timestamp:      time.Now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(m.ListingAID + ":" + m.ListingBID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "decision_source", Value: []byte(m.DecisionSource)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.RecordKafkaPublish(p.topic, "error")
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"listing_a_id": m.ListingAID,
			"listing_b_id": m.ListingBID,
		}).Error("Failed to publish duplicate event")
		return err
	}

	metrics.RecordKafkaPublish(p.topic, "ok")
	return nil
}
