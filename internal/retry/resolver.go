package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-retrytopic/pkg/models"
)

// ErrRetriesExhausted is returned by a resolver when the retry chain has no
// further destination for a record.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Destination is a named retry or dead-letter target.
type Destination struct {
	Topic       string
	Partitions  int
	Delay       time.Duration
	MaxAttempts int // deliveries allowed at this destination, 0 means 1
}

// Publisher performs the actual send to a resolved destination.
type Publisher interface {
	Publish(ctx context.Context, topic string, partition int, key string, value []byte, headers models.Headers) error
}

// DestinationResolver decides where a failed record goes next. Exhaustion is
// reported as ErrRetriesExhausted, never as a reserved destination name.
type DestinationResolver interface {
	ResolveNext(topic string, attempt int, cause error, originalTimestamp int64) (Destination, error)
	ResolveNextExecutionTimestamp(topic string, attempt int, cause error, originalTimestamp int64) (int64, error)
	PublisherFor(topic string) (Publisher, error)
}

// ChainResolver resolves destinations over a fixed, ordered chain ending in
// a dead-letter destination. It is safe for concurrent use once built.
type ChainResolver struct {
	chain      []Destination
	index      map[string]int
	cumulative []int // attempts consumed through each chain position
	publishers map[string]Publisher
	now        func() time.Time
}

type ChainResolverConfig struct {
	Chain []Destination
	Clock func() time.Time
}

func NewChainResolver(cfg ChainResolverConfig) (*ChainResolver, error) {
	if len(cfg.Chain) < 2 {
		return nil, errors.New("destination chain needs at least a source and a dead-letter destination")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	index := make(map[string]int, len(cfg.Chain))
	cumulative := make([]int, len(cfg.Chain))
	total := 0
	for i, dest := range cfg.Chain {
		if dest.Topic == "" {
			return nil, fmt.Errorf("destination %d has no topic", i)
		}
		if dest.Partitions <= 0 {
			return nil, fmt.Errorf("destination %q has no partitions", dest.Topic)
		}
		if _, dup := index[dest.Topic]; dup {
			return nil, fmt.Errorf("duplicate destination topic %q", dest.Topic)
		}
		attempts := dest.MaxAttempts
		if attempts < 1 {
			attempts = 1
		}
		total += attempts
		index[dest.Topic] = i
		cumulative[i] = total
	}

	return &ChainResolver{
		chain:      cfg.Chain,
		index:      index,
		cumulative: cumulative,
		publishers: make(map[string]Publisher),
		now:        cfg.Clock,
	}, nil
}

// BindPublisher associates a destination topic with the client that
// publishes to it. The dead-letter destination needs a binding too; only
// the exhausted chain end has none.
func (r *ChainResolver) BindPublisher(topic string, p Publisher) error {
	if _, ok := r.index[topic]; !ok {
		return fmt.Errorf("unknown destination topic %q", topic)
	}
	r.publishers[topic] = p
	return nil
}

// ResolveNext walks the chain: a destination keeps the record while it has
// attempts left, then hands it to the next one. Fatal causes skip the
// remaining retry destinations and go straight to the dead-letter end.
// Past the dead-letter destination there is nowhere left to go.
func (r *ChainResolver) ResolveNext(topic string, attempt int, cause error, originalTimestamp int64) (Destination, error) {
	idx, ok := r.index[topic]
	if !ok {
		return Destination{}, fmt.Errorf("unknown destination topic %q", topic)
	}
	last := len(r.chain) - 1
	if idx == last {
		return Destination{}, ErrRetriesExhausted
	}
	if IsFatal(cause) {
		return r.chain[last], nil
	}
	if attempt < r.cumulative[idx] {
		return r.chain[idx], nil
	}
	return r.chain[idx+1], nil
}

// ResolveNextExecutionTimestamp computes the earliest time the next
// destination's consumer should process the record, in epoch milliseconds.
func (r *ChainResolver) ResolveNextExecutionTimestamp(topic string, attempt int, cause error, originalTimestamp int64) (int64, error) {
	next, err := r.ResolveNext(topic, attempt, cause, originalTimestamp)
	if err != nil {
		return 0, err
	}
	return r.now().Add(next.Delay).UnixMilli(), nil
}

func (r *ChainResolver) PublisherFor(topic string) (Publisher, error) {
	p, ok := r.publishers[topic]
	if !ok {
		return nil, fmt.Errorf("no publisher bound for destination topic %q", topic)
	}
	return p, nil
}
