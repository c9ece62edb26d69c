// Package kafka publishes portfolio lifecycle events and consumes broker
// trade fills.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/jmcnair/stockfolio/internal/models"
)

// Producer handles publishing portfolio events to Kafka
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PublishHoldingOpened publishes an event for a newly opened position
func (p *Producer) PublishHoldingOpened(ctx context.Context, h *models.Holding) error {
	event := models.PortfolioEvent{
		EventType: models.EventHoldingOpened,
		UserID:    h.UserID,
		Symbol:    h.Symbol,
		Holding:   h,
		Timestamp: time.Now(),
	}
	return p.publish(ctx, h.Symbol, event)
}

// PublishHoldingUpdated publishes an event for an edited or averaged-in position
func (p *Producer) PublishHoldingUpdated(ctx context.Context, h *models.Holding) error {
	event := models.PortfolioEvent{
		EventType: models.EventHoldingUpdated,
		UserID:    h.UserID,
		Symbol:    h.Symbol,
		Holding:   h,
		Timestamp: time.Now(),
	}
	return p.publish(ctx, h.Symbol, event)
}

// PublishPositionClosed publishes an event for a full or partial sale. The
// remaining holding is nil when the position was closed out entirely.
func (p *Producer) PublishPositionClosed(ctx context.Context, closed *models.ClosedPosition, remaining *models.Holding) error {
	event := models.PortfolioEvent{
		EventType: models.EventPositionClosed,
		UserID:    closed.UserID,
		Symbol:    closed.Symbol,
		Closed:    closed,
		Holding:   remaining,
		Timestamp: time.Now(),
	}
	return p.publish(ctx, closed.Symbol, event)
}

// PublishWatchlistAdded publishes an event for a new watchlist entry
func (p *Producer) PublishWatchlistAdded(ctx context.Context, w *models.WatchlistEntry) error {
	event := models.PortfolioEvent{
		EventType: models.EventWatchlistAdded,
		UserID:    w.UserID,
		Symbol:    w.Symbol,
		Timestamp: time.Now(),
	}
	return p.publish(ctx, w.Symbol, event)
}

// PublishWatchlistRemoved publishes an event for a removed watchlist entry
func (p *Producer) PublishWatchlistRemoved(ctx context.Context, userID uuid.UUID, symbol string) error {
	event := models.PortfolioEvent{
		EventType: models.EventWatchlistRemoved,
		UserID:    userID,
		Symbol:    symbol,
		Timestamp: time.Now(),
	}
	return p.publish(ctx, symbol, event)
}

func (p *Producer) publish(ctx context.Context, key string, event models.PortfolioEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
