package retry

import (
	"context"
	"fmt"

	"go-retrytopic/internal/observability"
	"go-retrytopic/pkg/models"

	"go.uber.org/zap"
)

// Recoverer applies routing outcomes: it publishes republished records
// through the destination's own client, logs dropped records, and re-raises
// deferred-redelivery signals so the consumer keeps its read position.
type Recoverer struct {
	router   *Router
	resolver DestinationResolver
	logger   *zap.Logger
	metrics  observability.MetricsCollector
}

type RecovererConfig struct {
	Resolver DestinationResolver
	Logger   *zap.Logger
	Metrics  observability.MetricsCollector
}

func NewRecoverer(cfg RecovererConfig) *Recoverer {
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewInMemoryMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Recoverer{
		router:   NewRouter(cfg.Resolver),
		resolver: cfg.Resolver,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
}

// Recover routes the failed record and carries out the decision.
//
// A nil return means the record is handled (republished or dropped) and the
// caller should commit it. A returned *BackoffError means the record must
// stay at its current position. Any other error is a routing or publish
// failure: the caller decides whether to retry the whole recovery.
func (r *Recoverer) Recover(ctx context.Context, msg *models.Message, cause error) error {
	out, err := r.router.Route(msg, cause)
	if err != nil {
		return fmt.Errorf("route record %s-%d@%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
	}

	switch out.Decision {
	case PropagateInPlace:
		r.metrics.IncDeferred()
		r.logger.Debug("redelivery deferred, leaving record in place",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
		)
		return out.Cause

	case Drop:
		r.metrics.IncDropped()
		r.logger.Warn("processing failed for last destination, giving up",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.String("reason", out.Reason),
			zap.Error(cause),
		)
		return nil

	case Republish:
		pub, err := r.resolver.PublisherFor(out.Topic)
		if err != nil {
			return fmt.Errorf("look up publisher for %q: %w", out.Topic, err)
		}
		if err := pub.Publish(ctx, out.Topic, out.Partition, msg.Key, msg.Value, out.Headers); err != nil {
			return fmt.Errorf("republish record to %q: %w", out.Topic, err)
		}
		r.metrics.IncRepublished()
		r.logger.Info("record republished",
			zap.String("from", msg.Topic),
			zap.String("to", out.Topic),
			zap.Int("partition", out.Partition),
			zap.Int("attempt", ReadAttempt(out.Headers)),
		)
		return nil
	}

	return fmt.Errorf("unexpected routing decision %s", out.Decision)
}
