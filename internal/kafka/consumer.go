package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jmcnair/stockfolio/internal/models"
	"github.com/jmcnair/stockfolio/internal/portfolio"
)

// FillRepository defines the interface for trade fill persistence
type FillRepository interface {
	CreateTradeFill(f *models.TradeFill) error
	TradeFillExists(orderID, source string) (bool, error)
}

// Portfolio is the slice of the portfolio service a fill is routed through
type Portfolio interface {
	Buy(ctx context.Context, userID uuid.UUID, p portfolio.AddParams) (*models.Holding, error)
	Sell(ctx context.Context, userID uuid.UUID, symbol string, quantity int64, price decimal.Decimal, date time.Time) (*models.ClosedPosition, *models.Holding, error)
}

// Consumer reads broker trade fills from Kafka and applies them to the
// portfolio. Fills are stored for audit and deduplicated by (order_id,
// source) before being routed as a buy or a sell.
type Consumer struct {
	reader    *kafka.Reader
	repo      FillRepository
	portfolio Portfolio
	log       *zap.Logger
}

// NewConsumer creates a new Kafka consumer for trade fills
func NewConsumer(brokers []string, topic, groupID string, repo FillRepository, pf Portfolio, log *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader:    reader,
		repo:      repo,
		portfolio: pf,
		log:       log,
	}
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start(ctx context.Context) error {
	c.log.Info("starting trade fill consumer", zap.String("topic", c.reader.Config().Topic))

	for {
		select {
		case <-ctx.Done():
			c.log.Info("trade fill consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil // Context cancelled, normal shutdown
				}
				c.log.Error("error reading message", zap.Error(err))
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				// Continue processing other messages
				c.log.Error("error processing fill", zap.Error(err),
					zap.Int64("offset", msg.Offset))
			}
		}
	}
}

// processMessage handles a single trade fill message
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var fill models.TradeFill
	if err := json.Unmarshal(msg.Value, &fill); err != nil {
		return fmt.Errorf("failed to unmarshal trade fill: %w", err)
	}

	if err := validateFill(&fill); err != nil {
		return err
	}

	// Check for duplicate (idempotency)
	exists, err := c.repo.TradeFillExists(fill.OrderID, fill.Source)
	if err != nil {
		return fmt.Errorf("failed to check for duplicate fill: %w", err)
	}
	if exists {
		c.log.Info("fill already processed, skipping",
			zap.String("order_id", fill.OrderID), zap.String("source", fill.Source))
		return nil
	}

	if err := c.repo.CreateTradeFill(&fill); err != nil {
		return fmt.Errorf("failed to save trade fill: %w", err)
	}

	if err := c.applyFill(ctx, &fill); err != nil {
		return fmt.Errorf("failed to apply fill %s: %w", fill.OrderID, err)
	}

	c.log.Info("applied trade fill",
		zap.String("side", fill.Side), zap.Int64("quantity", fill.Quantity),
		zap.String("symbol", fill.Symbol), zap.String("price", fill.Price.String()),
		zap.String("order_id", fill.OrderID))

	return nil
}

func (c *Consumer) applyFill(ctx context.Context, fill *models.TradeFill) error {
	switch fill.Side {
	case models.FillSideBuy:
		_, err := c.portfolio.Buy(ctx, fill.UserID, portfolio.AddParams{
			Symbol:       fill.Symbol,
			Quantity:     fill.Quantity,
			BuyPrice:     fill.Price,
			PurchaseDate: fill.ExecutedAt,
		})
		return err
	case models.FillSideSell:
		_, _, err := c.portfolio.Sell(ctx, fill.UserID, fill.Symbol, fill.Quantity, fill.Price, fill.ExecutedAt)
		return err
	default:
		return fmt.Errorf("invalid fill side: %s", fill.Side)
	}
}

func validateFill(fill *models.TradeFill) error {
	if fill.OrderID == "" {
		return fmt.Errorf("fill missing order_id")
	}
	if fill.Symbol == "" {
		return fmt.Errorf("fill missing symbol")
	}
	if fill.UserID == uuid.Nil {
		return fmt.Errorf("fill missing user_id")
	}
	if fill.Quantity <= 0 {
		return fmt.Errorf("invalid fill quantity: %d", fill.Quantity)
	}
	if !fill.Price.IsPositive() {
		return fmt.Errorf("invalid fill price: %s", fill.Price)
	}

	fill.Side = strings.ToUpper(fill.Side)
	if fill.Side != models.FillSideBuy && fill.Side != models.FillSideSell {
		return fmt.Errorf("invalid fill side: %s", fill.Side)
	}
	if fill.ExecutedAt.IsZero() {
		fill.ExecutedAt = time.Now()
	}
	return nil
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
