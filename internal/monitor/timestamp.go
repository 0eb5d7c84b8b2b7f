package monitor

import (
	"fmt"
	"strings"
	"time"
)

// Layouts used in the record store.
const (
	PreciseLayout = "2006-01-02T15:04:05"
	LegacyLayout  = "06/01/02"
)

// TimestampKind distinguishes date-only values written by older versions of the
// record store from full date+time values.
type TimestampKind int

const (
	TimestampUnset TimestampKind = iota
	TimestampLegacy
	TimestampPrecise
)

// Timestamp is a modification time that is either a legacy date or a precise
// date+time in local time, truncated to the second.
type Timestamp struct {
	kind TimestampKind
	t    time.Time
}

// PreciseTimestamp converts a filesystem mtime into a precise Timestamp.
func PreciseTimestamp(t time.Time) Timestamp {
	return Timestamp{kind: TimestampPrecise, t: t.In(time.Local).Truncate(time.Second)}
}

// LegacyTimestamp keeps only the local calendar date of t.
func LegacyTimestamp(t time.Time) Timestamp {
	y, m, d := t.In(time.Local).Date()
	return Timestamp{kind: TimestampLegacy, t: time.Date(y, m, d, 0, 0, 0, 0, time.Local)}
}

// ParseTimestamp accepts the precise layout (with or without a fractional or zone
// suffix) and the legacy yy/mm/dd layout. An empty string yields the zero Timestamp.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, nil
	}
	if strings.Contains(s, "T") {
		if t, err := time.ParseInLocation(PreciseLayout, s, time.Local); err == nil {
			return PreciseTimestamp(t), nil
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return PreciseTimestamp(t), nil
		}
		if t, err := time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.Local); err == nil {
			return PreciseTimestamp(t), nil
		}
		return Timestamp{}, fmt.Errorf("unrecognized timestamp %q", s)
	}
	t, err := time.ParseInLocation(LegacyLayout, s, time.Local)
	if err != nil {
		return Timestamp{}, fmt.Errorf("unrecognized timestamp %q", s)
	}
	return Timestamp{kind: TimestampLegacy, t: t}, nil
}

func (ts Timestamp) Kind() TimestampKind { return ts.kind }
func (ts Timestamp) IsZero() bool        { return ts.kind == TimestampUnset }
func (ts Timestamp) IsLegacy() bool      { return ts.kind == TimestampLegacy }
func (ts Timestamp) Time() time.Time     { return ts.t }

// Legacy returns the date-only form of ts.
func (ts Timestamp) Legacy() Timestamp {
	if ts.IsZero() {
		return ts
	}
	return LegacyTimestamp(ts.t)
}

// Compare orders two timestamps. When either side is a legacy date, only calendar
// dates are compared, so re-encoding a value never registers as a change.
// An unset timestamp sorts before any set one.
func (ts Timestamp) Compare(other Timestamp) int {
	switch {
	case ts.IsZero() && other.IsZero():
		return 0
	case ts.IsZero():
		return -1
	case other.IsZero():
		return 1
	}
	if ts.IsLegacy() || other.IsLegacy() {
		return ts.Legacy().t.Compare(other.Legacy().t)
	}
	return ts.t.Compare(other.t)
}

// Equal reports whether Compare returns 0 and both sides are set.
func (ts Timestamp) Equal(other Timestamp) bool {
	if ts.IsZero() || other.IsZero() {
		return false
	}
	return ts.Compare(other) == 0
}

// String renders ts in the layout matching its kind.
func (ts Timestamp) String() string {
	switch ts.kind {
	case TimestampPrecise:
		return ts.t.Format(PreciseLayout)
	case TimestampLegacy:
		return ts.t.Format(LegacyLayout)
	default:
		return ""
	}
}
