package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go-retrytopic/internal/observability"
	"go-retrytopic/internal/retry"
	"go-retrytopic/pkg/models"

	"github.com/sirupsen/logrus"
)

// OrderProcessor handles business logic for processing order records.
type OrderProcessor struct {
	logger *logrus.Logger
}

func NewOrderProcessor() *OrderProcessor {
	return &OrderProcessor{
		logger: observability.GetLogger(),
	}
}

// Process handles the business logic for a consumed record. Payloads that
// cannot be parsed are marked fatal so the router sends them straight to
// the dead-letter destination instead of cycling through the retry topics.
func (p *OrderProcessor) Process(ctx context.Context, msg *models.Message) error {
	p.logger.WithFields(logrus.Fields{
		"key":   msg.Key,
		"topic": msg.Topic,
	}).Info("Processing message")

	var order map[string]interface{}
	if err := json.Unmarshal(msg.Value, &order); err != nil {
		return &retry.FatalError{Err: fmt.Errorf("failed to parse order payload: %w", err)}
	}

	if _, ok := order["order_id"]; !ok {
		return fmt.Errorf("order %q has no order_id", msg.Key)
	}

	// In a real application, this would store the order, call external
	// APIs, and so on.

	p.logger.WithFields(logrus.Fields{
		"key":      msg.Key,
		"order_id": order["order_id"],
	}).Debug("Order processed successfully")

	return nil
}
