package kafka

import (
	"context"
	"fmt"
	"math"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Client manages broker connectivity checks with automatic reconnection
type Client struct {
	brokers     []string
	logger      *zap.Logger
	maxRetries  int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

func NewClient(brokers []string, maxRetries int, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		brokers:     brokers,
		logger:      logger,
		maxRetries:  maxRetries,
		baseBackoff: 1 * time.Second,
		maxBackoff:  30 * time.Second,
	}
}

// HealthCheck verifies connectivity to Kafka brokers
func (c *Client) HealthCheck(ctx context.Context) error {
	conn, err := kafka.DialContext(ctx, "tcp", c.brokers[0])
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer conn.Close()

	if _, err = conn.ReadPartitions(); err != nil {
		return fmt.Errorf("failed to read partitions: %w", err)
	}

	return nil
}

// HealthCheckLoop runs health checks periodically with reconnection logic
func (c *Client) HealthCheckLoop(ctx context.Context, interval time.Duration, onReconnect func() error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Health check loop stopped")
			return
		case <-ticker.C:
			if err := c.HealthCheck(ctx); err != nil {
				c.logger.Warn("Health check failed, attempting reconnection", zap.Error(err))
				if err := c.reconnectWithBackoff(ctx, onReconnect); err != nil {
					c.logger.Error("Reconnection failed", zap.Error(err))
				}
			}
		}
	}
}

func (c *Client) reconnectWithBackoff(ctx context.Context, onReconnect func() error) error {
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		backoff := time.Duration(math.Min(
			float64(c.baseBackoff)*math.Pow(2, float64(attempt)),
			float64(c.maxBackoff),
		))

		c.logger.Info("Attempting reconnection",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		if err := c.HealthCheck(ctx); err != nil {
			c.logger.Warn("Reconnection attempt failed", zap.Error(err))
			continue
		}

		if onReconnect != nil {
			if err := onReconnect(); err != nil {
				c.logger.Warn("Reconnect callback failed", zap.Error(err))
				continue
			}
		}

		c.logger.Info("Reconnection successful")
		return nil
	}

	return fmt.Errorf("failed to reconnect after %d attempts", c.maxRetries)
}
