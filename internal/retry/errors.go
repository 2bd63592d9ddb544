package retry

import (
	"errors"
	"fmt"
	"time"
)

// BackoffError signals that redelivery of a record has been deferred by the
// scheduling policy: the record must stay at its current read position and
// be retried there, not republished. It may sit at any depth of a wrapped
// cause chain.
type BackoffError struct {
	Topic     string
	Partition int
	DueAt     time.Time
	Err       error
}

func (e *BackoffError) Error() string {
	return fmt.Sprintf("redelivery of %s-%d deferred until %s: %v",
		e.Topic, e.Partition, e.DueAt.Format(time.RFC3339), e.Err)
}

func (e *BackoffError) Unwrap() error {
	return e.Err
}

// FatalError marks a failure that retrying cannot fix; the resolver sends
// such records straight to the dead-letter destination.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal error: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsBackoff reports whether err wraps a deferred-redelivery signal at any
// nesting depth.
func IsBackoff(err error) bool {
	var backoffErr *BackoffError
	return errors.As(err, &backoffErr)
}

// AsBackoff extracts the deferred-redelivery signal from a cause chain.
func AsBackoff(err error) (*BackoffError, bool) {
	var backoffErr *BackoffError
	ok := errors.As(err, &backoffErr)
	return backoffErr, ok
}

// IsFatal reports whether err wraps a non-retryable failure.
func IsFatal(err error) bool {
	var fatalErr *FatalError
	return errors.As(err, &fatalErr)
}
