package kafka

import (
	"context"
	"fmt"
	"math"
	"time"

	"go-retrytopic/internal/observability"
	"go-retrytopic/pkg/models"

	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ProducerClient defines the interface for Kafka producer operations. It is
// the publisher adapter the retry resolver binds to each destination.
type ProducerClient interface {
	Publish(ctx context.Context, topic string, partition int, key string, value []byte, headers models.Headers) error
	Close() error
}

// Producer implements ProducerClient with delivery guarantees and retry logic
type Producer struct {
	writer      *kafka.Writer
	logger      *zap.Logger
	metrics     observability.MetricsCollector
	maxRetries  int
	baseBackoff time.Duration
}

type ProducerConfig struct {
	Brokers     []string
	Acks        int // -1 for all, 0 for none, 1 for leader
	Retries     int
	Idempotent  bool
	MaxRetries  int
	BaseBackoff time.Duration
	Metrics     observability.MetricsCollector
	Logger      *zap.Logger
}

// recordPartitioner targets the partition the routing decision computed for
// the record. The partition identifier is carried in the message itself.
type recordPartitioner struct{}

func (recordPartitioner) Balance(msg kafka.Message, partitions ...int) int {
	if len(partitions) == 0 {
		return 0
	}
	for _, p := range partitions {
		if p == msg.Partition {
			return p
		}
	}
	return partitions[msg.Partition%len(partitions)]
}

func NewProducer(cfg ProducerConfig) *Producer {
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewInMemoryMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.BaseBackoff == 0 {
		cfg.BaseBackoff = 100 * time.Millisecond
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               recordPartitioner{},
		RequiredAcks:           kafka.RequiredAcks(cfg.Acks),
		MaxAttempts:            cfg.Retries,
		WriteTimeout:           10 * time.Second,
		ReadTimeout:            10 * time.Second,
		AllowAutoTopicCreation: false,
		Async:                  false, // Synchronous for reliable error handling
	}

	if cfg.Idempotent {
		writer.RequiredAcks = kafka.RequireAll // Idempotent requires acks=all
		writer.MaxAttempts = 10
	}

	return &Producer{
		writer:      writer,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		maxRetries:  cfg.MaxRetries,
		baseBackoff: cfg.BaseBackoff,
	}
}

// Publish sends a record to the given topic and partition, preserving the
// order of the supplied headers on the wire.
func (p *Producer) Publish(ctx context.Context, topic string, partition int, key string, value []byte, headers models.Headers) error {
	msg := kafka.Message{
		Topic:     topic,
		Partition: partition,
		Key:       []byte(key),
		Value:     value,
		Time:      time.Now(),
	}

	if len(headers) > 0 {
		msg.Headers = make([]kafka.Header, 0, len(headers))
		for _, h := range headers {
			msg.Headers = append(msg.Headers, kafka.Header{
				Key:   h.Key,
				Value: h.Value,
			})
		}
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Min(
				float64(p.baseBackoff)*math.Pow(2, float64(attempt-1)),
				float64(5*time.Second),
			))

			p.logger.Info("Retrying record publish",
				zap.Int("attempt", attempt),
				zap.String("topic", topic),
				zap.Int("partition", partition),
				zap.Duration("backoff", backoff),
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err := p.writer.WriteMessages(ctx, msg)
		if err == nil {
			p.metrics.IncPublished()
			p.logger.Debug("Record published",
				zap.String("topic", topic),
				zap.Int("partition", partition),
				zap.Int("attempt", attempt+1),
			)
			return nil
		}

		lastErr = err
		p.logger.Warn("Failed to publish record",
			zap.String("topic", topic),
			zap.Int("partition", partition),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	p.metrics.IncPublishFailed()
	return fmt.Errorf("failed to publish record after %d attempts: %w", p.maxRetries+1, lastErr)
}

// Close gracefully shuts down the producer
func (p *Producer) Close() error {
	p.logger.Info("Closing producer")
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close producer: %w", err)
	}
	return nil
}
