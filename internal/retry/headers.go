package retry

import (
	"math/big"

	"go-retrytopic/pkg/models"
)

// Header values are minimal big-endian two's-complement byte sequences,
// the same encoding java.math.BigInteger.toByteArray produces. Records
// republished by other implementations of this pipeline decode cleanly as
// long as the value fits in an int64; anything else counts as malformed.

// ReadAttempt returns the delivery attempt recorded in the headers, or 1
// when the header is absent or malformed (first delivery).
func ReadAttempt(h models.Headers) int {
	raw, ok := h.Last(models.HeaderAttempts)
	if !ok {
		return 1
	}
	v, ok := decodeInt(raw)
	if !ok || v < 1 {
		return 1
	}
	return int(v)
}

// ReadOriginalTimestamp returns the ingestion timestamp recorded in the
// headers, or fallback (the record's own publish timestamp) when the header
// is absent or malformed.
func ReadOriginalTimestamp(h models.Headers, fallback int64) int64 {
	raw, ok := h.Last(models.HeaderOriginalTimestamp)
	if !ok {
		return fallback
	}
	v, ok := decodeInt(raw)
	if !ok {
		return fallback
	}
	return v
}

// ReadBackoffTimestamp returns the earliest execution time recorded in the
// headers, reporting false when the header is absent or malformed.
func ReadBackoffTimestamp(h models.Headers) (int64, bool) {
	raw, ok := h.Last(models.HeaderBackoffTimestamp)
	if !ok {
		return 0, false
	}
	return decodeInt(raw)
}

// BuildHeaders produces the full retry header set for a republished record.
// Exactly three entries are written; the previous values do not carry over.
func BuildHeaders(originalTimestamp int64, attempt int, nextExecutionTimestamp int64) models.Headers {
	return models.Headers{
		{Key: models.HeaderOriginalTimestamp, Value: encodeInt(originalTimestamp)},
		{Key: models.HeaderAttempts, Value: encodeInt(int64(attempt))},
		{Key: models.HeaderBackoffTimestamp, Value: encodeInt(nextExecutionTimestamp)},
	}
}

func encodeInt(v int64) []byte {
	if v >= 0 {
		b := big.NewInt(v).Bytes()
		if len(b) == 0 {
			return []byte{0}
		}
		if b[0]&0x80 != 0 {
			// high bit would read as a sign bit
			return append([]byte{0}, b...)
		}
		return b
	}
	b := make([]byte, 8)
	u := uint64(v)
	for i := 7; i >= 0; i-- {
		b[i] = byte(u)
		u >>= 8
	}
	i := 0
	for i < 7 && b[i] == 0xff && b[i+1]&0x80 != 0 {
		i++
	}
	return b[i:]
}

func decodeInt(b []byte) (int64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	neg := b[0]&0x80 != 0
	stripped := false
	for len(b) > 8 {
		// leading bytes beyond 8 must be pure sign extension
		if (neg && b[0] != 0xff) || (!neg && b[0] != 0) {
			return 0, false
		}
		b = b[1:]
		stripped = true
	}
	if stripped && (b[0]&0x80 != 0) != neg {
		// magnitude does not fit in an int64
		return 0, false
	}
	var v uint64
	if neg {
		v = ^uint64(0)
	}
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return int64(v), true
}
