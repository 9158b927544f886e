package domain

import (
	"fmt"
	"time"
)

// TimeLayout is the wire format for all timestamps: ISO-8601 with
// millisecond precision.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Timestamp is a time.Time that marshals using TimeLayout.
type Timestamp time.Time

// Now returns the current time as a Timestamp, truncated to milliseconds.
func Now() Timestamp {
	return Timestamp(time.Now().UTC().Truncate(time.Millisecond))
}

// Time converts back to time.Time.
func (t Timestamp) Time() time.Time { return time.Time(t) }

// Before reports whether t is before o.
func (t Timestamp) Before(o Timestamp) bool { return t.Time().Before(o.Time()) }

func (t Timestamp) String() string { return t.Time().Format(TimeLayout) }

// MarshalJSON encodes the timestamp in the wire layout.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", t.Time().Format(TimeLayout))), nil
}

// UnmarshalJSON decodes a wire-layout timestamp. RFC3339 without fractional
// seconds is accepted too.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("timestamp must be a string: %s", s)
	}
	s = s[1 : len(s)-1]
	parsed, err := time.Parse(TimeLayout, s)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
	}
	*t = Timestamp(parsed)
	return nil
}
