package retry

import (
	"errors"
	"fmt"

	"go-retrytopic/pkg/models"
)

// Decision is the routing verdict for a failed record.
type Decision int

const (
	// Republish forwards the record to the next destination with fresh
	// retry headers.
	Republish Decision = iota
	// Drop terminates the retry chain; the record is consumed and not
	// forwarded anywhere.
	Drop
	// PropagateInPlace re-raises the failure so the caller retries the
	// record at its current read position.
	PropagateInPlace
)

func (d Decision) String() string {
	switch d {
	case Republish:
		return "republish"
	case Drop:
		return "drop"
	case PropagateInPlace:
		return "propagate-in-place"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Outcome carries the routing decision and, for a republish, the fully
// computed target and headers.
type Outcome struct {
	Decision  Decision
	Topic     string
	Partition int
	Headers   models.Headers
	Reason    string // set on Drop
	Cause     error  // original failure, set on PropagateInPlace
}

// Router decides where failed records go. It is stateless and performs no
// I/O of its own, so concurrent calls need no coordination.
type Router struct {
	resolver DestinationResolver
}

func NewRouter(resolver DestinationResolver) *Router {
	return &Router{resolver: resolver}
}

// Route classifies the failure and computes the next hop for the record.
//
// A deferred-redelivery signal anywhere in the cause chain short-circuits
// before the resolver is consulted: the record must stay where it is.
// Resolver failures surface unmodified; no partial state is left behind
// because the router writes nothing itself.
func (r *Router) Route(msg *models.Message, cause error) (Outcome, error) {
	if cause == nil {
		return Outcome{}, errors.New("nil failure cause")
	}
	if IsBackoff(cause) {
		return Outcome{Decision: PropagateInPlace, Cause: cause}, nil
	}

	attempt := ReadAttempt(msg.Headers)
	originalTimestamp := ReadOriginalTimestamp(msg.Headers, msg.Timestamp.UnixMilli())

	next, err := r.resolver.ResolveNext(msg.Topic, attempt, cause, originalTimestamp)
	if errors.Is(err, ErrRetriesExhausted) {
		return Outcome{Decision: Drop, Reason: "retries exhausted"}, nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("resolve next destination for %q: %w", msg.Topic, err)
	}
	if next.Partitions <= 0 {
		return Outcome{}, fmt.Errorf("destination %q resolved with no partitions", next.Topic)
	}

	nextExecutionTimestamp, err := r.resolver.ResolveNextExecutionTimestamp(msg.Topic, attempt, cause, originalTimestamp)
	if err != nil {
		return Outcome{}, fmt.Errorf("resolve next execution timestamp for %q: %w", msg.Topic, err)
	}

	return Outcome{
		Decision:  Republish,
		Topic:     next.Topic,
		Partition: msg.Partition % next.Partitions,
		Headers:   BuildHeaders(originalTimestamp, attempt+1, nextExecutionTimestamp),
	}, nil
}
