package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// millisCutover is the magnitude above which a numeric timestamp is read as
// milliseconds instead of seconds. The heuristic misreads instants within a
// hair of the cutover era; that approximation is part of the contract.
const millisCutover = 1_000_000_000_000

// TimestampError reports an input the normalizer could not interpret. The
// message names both the offending value and its runtime type so a wrong
// instant is never silently produced.
type TimestampError struct {
	Value any
}

func (e *TimestampError) Error() string {
	return fmt.Sprintf("cannot parse timestamp %v (%T)", e.Value, e.Value)
}

// zonedLayouts carry their own offset; the parsed instant is converted to
// UTC, never reinterpreted.
var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02 15:04:05 -0700",
}

// naiveLayouts have no zone; they are read in the location the caller chose.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
}

// NormalizeTimestamp converts a Unix timestamp (seconds, or milliseconds
// when the magnitude exceeds 1e12), a time.Time, or a textual timestamp in
// a common layout into a UTC instant. Text without a zone is assumed UTC.
func NormalizeTimestamp(v any) (time.Time, error) {
	return normalizeTimestamp(v, time.UTC)
}

// NormalizeTimestampLocal is NormalizeTimestamp with the UTC assumption for
// zone-less text replaced by the local time zone. Inputs that carry a zone
// are still converted to UTC.
func NormalizeTimestampLocal(v any) (time.Time, error) {
	return normalizeTimestamp(v, time.Local)
}

func normalizeTimestamp(v any, naiveLoc *time.Location) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, &TimestampError{Value: v}
		}
		return t.UTC(), nil
	case int:
		return fromEpoch(float64(t)), nil
	case int32:
		return fromEpoch(float64(t)), nil
	case int64:
		return fromEpoch(float64(t)), nil
	case uint:
		return fromEpoch(float64(t)), nil
	case uint64:
		return fromEpoch(float64(t)), nil
	case float32:
		return fromEpoch(float64(t)), nil
	case float64:
		return fromEpoch(t), nil
	case string:
		return fromText(t, naiveLoc)
	}
	return time.Time{}, &TimestampError{Value: v}
}

func fromEpoch(f float64) time.Time {
	if math.Abs(f) > millisCutover {
		return time.UnixMilli(int64(f)).UTC()
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

func fromText(s string, naiveLoc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, &TimestampError{Value: s}
	}

	// Numeric strings are epoch values.
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromEpoch(f), nil
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, naiveLoc); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, &TimestampError{Value: s}
}
