package retry

import (
	"fmt"
	"testing"
	"time"

	"go-retrytopic/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockResolver counts contract calls so tests can assert that short-circuit
// paths never reach the resolver.
type mockResolver struct {
	resolveNextCalls int
	resolveTSCalls   int
	publisherCalls   int

	next         Destination
	nextErr      error
	ts           int64
	tsErr        error
	publisher    Publisher
	publisherErr error
}

func (m *mockResolver) ResolveNext(topic string, attempt int, cause error, originalTimestamp int64) (Destination, error) {
	m.resolveNextCalls++
	return m.next, m.nextErr
}

func (m *mockResolver) ResolveNextExecutionTimestamp(topic string, attempt int, cause error, originalTimestamp int64) (int64, error) {
	m.resolveTSCalls++
	return m.ts, m.tsErr
}

func (m *mockResolver) PublisherFor(topic string) (Publisher, error) {
	m.publisherCalls++
	return m.publisher, m.publisherErr
}

func testMessage(topic string, partition int, headers models.Headers) *models.Message {
	return &models.Message{
		Topic:     topic,
		Partition: partition,
		Offset:    42,
		Key:       "order-1",
		Value:     []byte(`{"order_id":"ORD-1"}`),
		Headers:   headers,
		Timestamp: time.UnixMilli(1000),
	}
}

func TestRouter_FirstFailure(t *testing.T) {
	resolver := &mockResolver{
		next: Destination{Topic: "orders-retry-1", Partitions: 3},
		ts:   5000,
	}
	router := NewRouter(resolver)

	// No prior retry headers: attempt reads as 1 and the original
	// timestamp comes from the record itself.
	msg := testMessage("orders", 1, nil)
	out, err := router.Route(msg, fmt.Errorf("boom"))
	require.NoError(t, err)

	assert.Equal(t, Republish, out.Decision)
	assert.Equal(t, "orders-retry-1", out.Topic)
	assert.Equal(t, 1, out.Partition)
	assert.Equal(t, 2, ReadAttempt(out.Headers))
	assert.Equal(t, int64(1000), ReadOriginalTimestamp(out.Headers, -1))

	backoff, ok := ReadBackoffTimestamp(out.Headers)
	require.True(t, ok)
	assert.Equal(t, int64(5000), backoff)
}

func TestRouter_AttemptIncrementsByOne(t *testing.T) {
	resolver := &mockResolver{
		next: Destination{Topic: "orders-retry-2", Partitions: 3},
		ts:   7000,
	}
	router := NewRouter(resolver)

	msg := testMessage("orders-retry-1", 0, BuildHeaders(1000, 3, 2000))
	out, err := router.Route(msg, fmt.Errorf("boom"))
	require.NoError(t, err)

	assert.Equal(t, Republish, out.Decision)
	assert.Equal(t, 4, ReadAttempt(out.Headers))
	// Original timestamp is copied forward unchanged across the chain.
	assert.Equal(t, int64(1000), ReadOriginalTimestamp(out.Headers, -1))
}

func TestRouter_PartitionMapping(t *testing.T) {
	const sourcePartition = 5
	tests := []struct {
		partitions int
		expected   int
	}{
		{1, 0},
		{5, 0},
		{6, 5},
		{7, 5},
		{3, 2},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d partitions", tt.partitions), func(t *testing.T) {
			resolver := &mockResolver{
				next: Destination{Topic: "orders-retry-1", Partitions: tt.partitions},
				ts:   5000,
			}
			router := NewRouter(resolver)

			out, err := router.Route(testMessage("orders", sourcePartition, nil), fmt.Errorf("boom"))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out.Partition)
		})
	}
}

func TestRouter_BackoffSignalPropagatesInPlace(t *testing.T) {
	resolver := &mockResolver{}
	router := NewRouter(resolver)

	cause := &BackoffError{Topic: "orders", Partition: 0, DueAt: time.Now().Add(time.Second), Err: fmt.Errorf("not due")}
	out, err := router.Route(testMessage("orders", 0, nil), cause)
	require.NoError(t, err)

	assert.Equal(t, PropagateInPlace, out.Decision)
	assert.Equal(t, cause, out.Cause)
	assert.Zero(t, resolver.resolveNextCalls)
	assert.Zero(t, resolver.resolveTSCalls)
	assert.Zero(t, resolver.publisherCalls)
}

func TestRouter_BackoffSignalDeeplyNested(t *testing.T) {
	resolver := &mockResolver{}
	router := NewRouter(resolver)

	cause := fmt.Errorf("handler: %w",
		fmt.Errorf("dispatch: %w",
			fmt.Errorf("partition pause: %w",
				&BackoffError{Topic: "orders", DueAt: time.Now(), Err: fmt.Errorf("not due")})))

	out, err := router.Route(testMessage("orders", 0, nil), cause)
	require.NoError(t, err)

	assert.Equal(t, PropagateInPlace, out.Decision)
	assert.Equal(t, cause, out.Cause)
	assert.Zero(t, resolver.resolveNextCalls)
	assert.Zero(t, resolver.resolveTSCalls)
}

func TestRouter_ExhaustionDrops(t *testing.T) {
	resolver := &mockResolver{nextErr: ErrRetriesExhausted}
	router := NewRouter(resolver)

	msg := testMessage("orders-dlt", 0, BuildHeaders(1000, 3, 2000))
	out, err := router.Route(msg, fmt.Errorf("boom"))
	require.NoError(t, err)

	assert.Equal(t, Drop, out.Decision)
	assert.Equal(t, "retries exhausted", out.Reason)
	assert.Nil(t, out.Headers)
	assert.Zero(t, resolver.resolveTSCalls)
}

func TestRouter_NilCause(t *testing.T) {
	router := NewRouter(&mockResolver{})

	_, err := router.Route(testMessage("orders", 0, nil), nil)
	assert.Error(t, err)
}

func TestRouter_ResolverFailureSurfaces(t *testing.T) {
	resolver := &mockResolver{nextErr: fmt.Errorf("policy store down")}
	router := NewRouter(resolver)

	_, err := router.Route(testMessage("orders", 0, nil), fmt.Errorf("boom"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "policy store down")
}

func TestRouter_MalformedHeadersFallBackToDefaults(t *testing.T) {
	resolver := &mockResolver{
		next: Destination{Topic: "orders-retry-1", Partitions: 3},
		ts:   5000,
	}
	router := NewRouter(resolver)

	headers := models.Headers{}.
		Add(models.HeaderAttempts, []byte("not a number")).
		Add(models.HeaderOriginalTimestamp, []byte{})

	out, err := router.Route(testMessage("orders", 0, headers), fmt.Errorf("boom"))
	require.NoError(t, err)

	assert.Equal(t, Republish, out.Decision)
	assert.Equal(t, 2, ReadAttempt(out.Headers))
	assert.Equal(t, int64(1000), ReadOriginalTimestamp(out.Headers, -1))
}

func TestRouter_OriginalTimestampStableAcrossChain(t *testing.T) {
	resolver := &mockResolver{
		next: Destination{Topic: "next", Partitions: 1},
		ts:   5000,
	}
	router := NewRouter(resolver)

	headers := models.Headers(nil)
	msg := testMessage("orders", 0, headers)
	cause := fmt.Errorf("boom")

	for attempt := 1; attempt <= 5; attempt++ {
		out, err := router.Route(msg, cause)
		require.NoError(t, err)
		require.Equal(t, Republish, out.Decision)

		assert.Equal(t, attempt+1, ReadAttempt(out.Headers))
		assert.Equal(t, int64(1000), ReadOriginalTimestamp(out.Headers, -1))

		// Simulate the next redelivery carrying the republished headers.
		msg = testMessage("orders", 0, out.Headers)
		msg.Timestamp = time.Now() // must not leak into the original timestamp
	}
}

var _ DestinationResolver = (*mockResolver)(nil)
