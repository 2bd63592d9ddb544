package models

import "time"

// Message represents a consumed record in the system. Headers keep their
// wire order: the transport appends rather than overwrites, so for a
// repeated key only the last occurrence is authoritative.
type Message struct {
	Topic     string    `json:"topic"`
	Partition int       `json:"partition"`
	Offset    int64     `json:"offset"`
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	Headers   Headers   `json:"headers"`
	Timestamp time.Time `json:"timestamp"`
}

// Header is a single string-keyed metadata entry carried with a record.
type Header struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// Headers is an ordered set of metadata entries.
type Headers []Header

// Last returns the value of the last occurrence of key.
func (h Headers) Last(key string) ([]byte, bool) {
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].Key == key {
			return h[i].Value, true
		}
	}
	return nil, false
}

// Add appends an entry, preserving any previous occurrence of the key.
func (h Headers) Add(key string, value []byte) Headers {
	return append(h, Header{Key: key, Value: value})
}

// MessageHeader constants
const (
	HeaderMessageID         = "message-id"
	HeaderAttempts          = "retry_topic-attempts"
	HeaderOriginalTimestamp = "retry_topic-original-timestamp"
	HeaderBackoffTimestamp  = "retry_topic-backoff-timestamp"
)
