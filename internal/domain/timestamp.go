package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Timestamp is a time that decodes from any format the API has used:
//   - RFC3339 / RFC3339Nano: "2024-01-15T10:30:00Z"
//   - zone-less local date-times: "2024-01-15T10:30:00.123456" (read as UTC)
//   - epoch milliseconds as a number or numeric string
//
// It always encodes as RFC3339Nano in UTC, or null when zero.
type Timestamp struct {
	time.Time
}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Now returns the current time as a Timestamp.
func Now() Timestamp {
	return Timestamp{Time: time.Now().UTC()}
}

// UnmarshalJSON handles flexible time parsing.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		ts.Time = time.Time{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return ts.parseString(s)
	}

	var ms float64
	if err := json.Unmarshal(data, &ms); err == nil {
		ts.Time = time.UnixMilli(int64(ms)).UTC()
		return nil
	}

	return fmt.Errorf("cannot unmarshal %s into Timestamp", string(data))
}

func (ts *Timestamp) parseString(s string) error {
	if s == "" {
		ts.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		ts.Time = t
		return nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			ts.Time = t
			return nil
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		ts.Time = time.UnixMilli(ms).UTC()
		return nil
	}
	return fmt.Errorf("cannot parse time string: %s", s)
}

// MarshalJSON outputs RFC3339Nano in UTC.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.UTC().Format(time.RFC3339Nano))
}

// Timestamps are the creation and modification times carried by stories and comments.
type Timestamps struct {
	CreatedAt Timestamp `json:"createdAt"`
	UpdatedAt Timestamp `json:"updatedAt"`
}

// InitTimestamps sets both times to now.
func (t *Timestamps) InitTimestamps() {
	now := Now()
	t.CreatedAt = now
	t.UpdatedAt = now
}

// Touch sets UpdatedAt to now.
func (t *Timestamps) Touch() {
	t.UpdatedAt = Now()
}
