package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-retrytopic/internal/observability"
	"go-retrytopic/internal/retry"
	"go-retrytopic/pkg/models"

	retrygo "github.com/avast/retry-go/v4"
	kafka "github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// MessageHandler processes consumed messages
type MessageHandler func(ctx context.Context, msg *models.Message) error

// ConsumerClient defines the interface for Kafka consumer operations
type ConsumerClient interface {
	Start(ctx context.Context, handler MessageHandler) error
	Close() error
}

// Consumer implements ConsumerClient with a worker pool. Handler failures
// are handed to the recoverer, which routes the record to the next retry or
// dead-letter destination; deferred records are retried in place without
// advancing the committed offset.
type Consumer struct {
	reader      *kafka.Reader
	recoverer   *retry.Recoverer
	logger      *zap.Logger
	metrics     observability.MetricsCollector
	workers     int
	dedupeStore DedupeStore
	breaker     *gobreaker.CircuitBreaker
	commitFn    func(ctx context.Context, msg kafka.Message) error
	wg          sync.WaitGroup
}

type ConsumerConfig struct {
	Brokers       []string
	Topic         string
	GroupID       string
	Workers       int
	FetchMinBytes int
	FetchMaxBytes int
	Metrics       observability.MetricsCollector
	DedupeStore   DedupeStore
	Logger        *zap.Logger
}

func NewConsumer(cfg ConsumerConfig, recoverer *retry.Recoverer) *Consumer {
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewInMemoryMetrics()
	}
	if cfg.DedupeStore == nil {
		cfg.DedupeStore = NewInMemoryDedupeStore(1 * time.Hour)
	}
	if cfg.Workers == 0 {
		cfg.Workers = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       cfg.FetchMinBytes,
		MaxBytes:       cfg.FetchMaxBytes,
		CommitInterval: 0, // Manual commits
		StartOffset:    kafka.LastOffset,
	})

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "kafka-fetch",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	c := &Consumer{
		reader:      reader,
		recoverer:   recoverer,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		workers:     cfg.Workers,
		dedupeStore: cfg.DedupeStore,
		breaker:     breaker,
	}
	c.commitFn = func(ctx context.Context, msg kafka.Message) error {
		return retrygo.Do(
			func() error {
				return c.reader.CommitMessages(ctx, msg)
			},
			retrygo.Attempts(5),
			retrygo.Delay(500*time.Millisecond),
			retrygo.DelayType(retrygo.BackOffDelay),
			retrygo.Context(ctx),
		)
	}
	return c
}

// Start begins consuming messages with worker pool
func (c *Consumer) Start(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("Starting consumer", zap.Int("workers", c.workers))

	msgChan := make(chan kafka.Message, c.workers*2)

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i, msgChan, handler)
	}

	c.wg.Add(1)
	go c.fetcher(ctx, msgChan)

	c.wg.Wait()
	return nil
}

// fetcher reads messages from Kafka and sends to worker pool
func (c *Consumer) fetcher(ctx context.Context, msgChan chan<- kafka.Message) {
	defer c.wg.Done()
	defer close(msgChan)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Fetcher stopping due to context cancellation")
			return
		default:
		}

		result, err := c.breaker.Execute(func() (any, error) {
			return c.reader.FetchMessage(ctx)
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("Failed to fetch message", zap.Error(err))
			continue
		}
		msg := result.(kafka.Message)

		c.metrics.IncReceived()

		select {
		case msgChan <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// worker processes messages from the channel
func (c *Consumer) worker(ctx context.Context, id int, msgChan <-chan kafka.Message, handler MessageHandler) {
	defer c.wg.Done()
	c.logger.Info("Worker started", zap.Int("worker_id", id))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Worker stopping due to context cancellation")
			return
		case msg, ok := <-msgChan:
			if !ok {
				c.logger.Info("Worker stopping - channel closed")
				return
			}

			c.processMessage(ctx, msg, handler, id)
		}
	}
}

// processMessage runs the handler and routes failures. The loop re-runs the
// handler in place whenever the recoverer re-raises a deferred-redelivery
// signal; the record is committed only once it is handled, republished or
// dropped.
func (c *Consumer) processMessage(ctx context.Context, kafkaMsg kafka.Message, handler MessageHandler, workerID int) {
	msg := toInternalMessage(kafkaMsg)

	logger := c.logger.With(
		zap.String("topic", msg.Topic),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
		zap.Int("worker_id", workerID),
	)

	messageID := ""
	if id, ok := msg.Headers.Last(models.HeaderMessageID); ok {
		messageID = string(id)
		if c.dedupeStore.Exists(messageID) {
			logger.Info("Duplicate message detected, skipping")
			c.commitMessage(ctx, kafkaMsg)
			return
		}
	}

	// Records republished through a retry destination carry the earliest
	// time they should run; hold them back until then.
	if dueAt, ok := retry.ReadBackoffTimestamp(msg.Headers); ok {
		if !c.waitUntilDue(ctx, time.UnixMilli(dueAt)) {
			return
		}
	}

	for {
		err := handler(ctx, msg)
		if err == nil {
			c.metrics.IncProcessed()
			logger.Debug("Message processed successfully")
			if messageID != "" {
				c.dedupeStore.Add(messageID)
			}
			c.commitMessage(ctx, kafkaMsg)
			return
		}

		c.metrics.IncFailed()
		logger.Error("Message processing failed", zap.Error(err))

		recoverErr := c.recoverer.Recover(ctx, msg, err)
		if recoverErr == nil {
			// Republished or dropped; the source record is consumed.
			c.commitMessage(ctx, kafkaMsg)
			return
		}

		backoff, deferred := retry.AsBackoff(recoverErr)
		if !deferred {
			// Leave the record uncommitted so it is redelivered.
			logger.Error("Failed to route record, leaving it uncommitted", zap.Error(recoverErr))
			return
		}

		logger.Debug("Redelivery deferred, retrying in place", zap.Time("due_at", backoff.DueAt))
		if !c.waitUntilDue(ctx, backoff.DueAt) {
			return
		}
	}
}

// waitUntilDue blocks until dueAt, reporting false if the context ended first.
func (c *Consumer) waitUntilDue(ctx context.Context, dueAt time.Time) bool {
	wait := time.Until(dueAt)
	if wait <= 0 {
		return true
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// commitMessage commits the message offset, retrying transient failures.
func (c *Consumer) commitMessage(ctx context.Context, msg kafka.Message) {
	if err := c.commitFn(ctx, msg); err != nil {
		c.logger.Error("Failed to commit message after retries",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
	}
}

// toInternalMessage converts a Kafka record to the internal envelope,
// keeping header order intact.
func toInternalMessage(kafkaMsg kafka.Message) *models.Message {
	headers := make(models.Headers, 0, len(kafkaMsg.Headers))
	for _, h := range kafkaMsg.Headers {
		headers = headers.Add(h.Key, h.Value)
	}

	return &models.Message{
		Topic:     kafkaMsg.Topic,
		Partition: kafkaMsg.Partition,
		Offset:    kafkaMsg.Offset,
		Key:       string(kafkaMsg.Key),
		Value:     kafkaMsg.Value,
		Headers:   headers,
		Timestamp: kafkaMsg.Time,
	}
}

// Close gracefully shuts down the consumer
func (c *Consumer) Close() error {
	c.logger.Info("Closing consumer")
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("failed to close consumer: %w", err)
	}
	return nil
}
