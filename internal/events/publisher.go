// Package events publishes scrape lifecycle events through the transactional
// outbox, so downstream consumers see a run exactly when its products and
// terminal status are committed.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pricelab/catalog-scraper/internal/database"
	"github.com/pricelab/catalog-scraper/internal/models"
)

type EventType string

const (
	// EventTypeRunCompleted is published when a scrape run reaches a terminal
	// state, successful or not.
	EventTypeRunCompleted EventType = "catalog.run.completed"
	// EventTypeProductsScraped carries the products a run discovered.
	EventTypeProductsScraped EventType = "catalog.products.scraped"
)

// RunCompletedPayload is the payload for catalog.run.completed.
type RunCompletedPayload struct {
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"`
	Timestamp    time.Time `json:"timestamp"`
	RunID        string    `json:"run_id"`
	Retailer     string    `json:"retailer"`
	Category     string    `json:"category"`
	Status       string    `json:"status"`
	ProductCount int       `json:"product_count"`
	Error        string    `json:"error,omitempty"`
	Source       string    `json:"source"`
}

// ProductsScrapedPayload is the payload for catalog.products.scraped.
type ProductsScrapedPayload struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	Timestamp time.Time        `json:"timestamp"`
	RunID     string           `json:"run_id"`
	Retailer  string           `json:"retailer"`
	Category  string           `json:"category"`
	Products  []models.Product `json:"products"`
	Source    string           `json:"source"`
}

// Publisher writes events into the outbox; the relay moves them to Redis.
type Publisher struct {
	outbox *database.OutboxRepository
	stream string
	logger *slog.Logger
}

// NewPublisher builds a publisher targeting the given Redis stream. A blank
// stream falls back to the outbox default.
func NewPublisher(db *database.DB, stream string, logger *slog.Logger) *Publisher {
	return &Publisher{
		outbox: database.NewOutboxRepository(db),
		stream: stream,
		logger: logger.With("component", "event_publisher"),
	}
}

// PublishRunCompletedWithTx enqueues the run-completed event inside the
// caller's transaction.
func (p *Publisher) PublishRunCompletedWithTx(ctx context.Context, tx pgx.Tx, payload *RunCompletedPayload) error {
	stampPayload(&payload.EventID, &payload.EventType, &payload.Timestamp, &payload.Source, EventTypeRunCompleted)

	return p.insert(ctx, tx, payload.RunID, EventTypeRunCompleted, payload)
}

// PublishProductsScrapedWithTx enqueues the products event inside the
// caller's transaction. Empty runs publish no product event.
func (p *Publisher) PublishProductsScrapedWithTx(ctx context.Context, tx pgx.Tx, payload *ProductsScrapedPayload) error {
	if len(payload.Products) == 0 {
		return nil
	}
	stampPayload(&payload.EventID, &payload.EventType, &payload.Timestamp, &payload.Source, EventTypeProductsScraped)

	return p.insert(ctx, tx, payload.RunID, EventTypeProductsScraped, payload)
}

func (p *Publisher) insert(ctx context.Context, tx pgx.Tx, runID string, eventType EventType, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	event := &database.OutboxEvent{
		AggregateType: "scrape_run",
		AggregateID:   runID,
		EventType:     string(eventType),
		Payload:       data,
		TargetStream:  p.stream,
	}

	if err := p.outbox.InsertWithTx(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	p.logger.Info("event published to outbox",
		"type", eventType,
		"run_id", runID,
		"outbox_id", event.ID,
	)

	return nil
}

func stampPayload(eventID, eventType *string, timestamp *time.Time, source *string, t EventType) {
	if *eventID == "" {
		*eventID = uuid.New().String()
	}
	if *eventType == "" {
		*eventType = string(t)
	}
	if timestamp.IsZero() {
		*timestamp = time.Now()
	}
	if *source == "" {
		*source = "catalog-scraper"
	}
}
