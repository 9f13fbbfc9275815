// Package tiebreak escalates ambiguous candidate pairs to an LLM for a
// binary verdict. The collaborator is treated as advisory and unreliable: a
// timeout, malformed reply or rate-limit error leaves the pair unresolved
// and never fails the batch.
package tiebreak

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/Gobusters/ectologger"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/kikokaraba/srei-sub004/pkg/metrics"
	"github.com/kikokaraba/srei-sub004/pkg/models"
	"github.com/kikokaraba/srei-sub004/pkg/tracing"
)

// ErrUnresolved is returned whenever no trustworthy verdict was obtained.
// Callers leave the pair in candidate status and retry on the next run.
var ErrUnresolved = errors.New("tie-break unresolved")

// Verdict is the tie-breaker's answer for one pair
type Verdict struct {
	Match     bool   `json:"match"`
	Rationale string `json:"rationale"`
}

// Config holds tie-breaker settings
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Timeout        time.Duration
	MaxConcurrent  int
	RequestsPerSec float64
}

// Client calls the LLM with a hard timeout, a rate limit and a concurrency
// cap. Exceeding the cap queues the request instead of failing it.
type Client struct {
	logger  ectologger.Logger
	client  *openai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	slots   chan struct{}
}

// NewClient creates a tie-breaker client
func NewClient(cfg Config, logger ectologger.Logger) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 4
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 3
	}

	return &Client{
		logger:  logger,
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.MaxConcurrent),
		slots:   make(chan struct{}, cfg.MaxConcurrent),
	}
}

const systemPrompt = `You compare two Slovak residential real-estate listings and decide whether they describe the same physical property listed on different portals. Different asking prices alone do not mean different properties. Answer with JSON: {"match": true|false, "rationale": "short reason"}.`

type listingSummary struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Area        float64 `json:"area"`
	Rooms       *int    `json:"rooms,omitempty"`
	City        string  `json:"city"`
	District    *string `json:"district,omitempty"`
	Floor       *int    `json:"floor,omitempty"`
	Source      string  `json:"source"`
}

// Judge asks for a verdict on one pair. Any failure mode maps to
// ErrUnresolved.
func (c *Client) Judge(ctx context.Context, a, b *models.Listing) (*Verdict, error) {
	ctx, span := tracing.StartSpan(ctx, "tiebreak.Client.Judge")
	defer span.End()

	// Acquire a concurrency slot; this queues rather than fails
	select {
	case c.slots <- struct{}{}:
		defer func() { <-c.slots }()
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrUnresolved, ctx.Err())
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnresolved, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(map[string]listingSummary{
		"listing_a": summarize(a),
		"listing_b": summarize(b),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnresolved, err)
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(payload)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
	})
	metrics.AIRequestDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.AIRequestsTotal.WithLabelValues("error").Inc()
		c.logger.WithContext(ctx).WithError(err).Warn("Tie-break call failed")
		return nil, fmt.Errorf("%w: %v", ErrUnresolved, err)
	}

	if len(resp.Choices) == 0 {
		metrics.AIRequestsTotal.WithLabelValues("empty").Inc()
		return nil, fmt.Errorf("%w: empty response", ErrUnresolved)
	}

	var verdict Verdict
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &verdict); err != nil {
		metrics.AIRequestsTotal.WithLabelValues("malformed").Inc()
		c.logger.WithContext(ctx).WithError(err).Warn("Tie-break response was not valid JSON")
		return nil, fmt.Errorf("%w: %v", ErrUnresolved, err)
	}

	metrics.AIRequestsTotal.WithLabelValues("ok").Inc()
	return &verdict, nil
}

func summarize(l *models.Listing) listingSummary {
	desc := l.Description
	if len(desc) > 1200 {
		// Back off to a rune boundary so the cut never splits a Slovak
		// diacritic character
		cut := 1200
		for cut > 0 && !utf8.RuneStart(desc[cut]) {
			cut--
		}
		desc = desc[:cut]
	}
	return listingSummary{
		Title:       l.Title,
		Description: desc,
		Price:       l.Price,
		Area:        l.Area,
		Rooms:       l.Rooms,
		City:        l.City,
		District:    l.District,
		Floor:       l.Floor,
		Source:      string(l.Source),
	}
}
