package models

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// Timestamp is a point in time that serializes as Unix epoch milliseconds,
// the layout of the stored collection.
type Timestamp struct {
	time.Time
}

// At wraps t, truncated to millisecond precision.
func At(t time.Time) Timestamp {
	return Timestamp{Time: time.UnixMilli(t.UnixMilli())}
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("0"), nil
	}
	return strconv.AppendInt(nil, t.UnixMilli(), 10), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	ms, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if ms == 0 {
		t.Time = time.Time{}
		return nil
	}
	t.Time = time.UnixMilli(int64(ms))
	return nil
}
