package forecast

import (
	"encoding/json"
	"sort"
	"time"
)

// epochMsThreshold separates epoch seconds from epoch milliseconds: upstream
// Esri services emit milliseconds, some mirrors emit seconds. Anything below
// this is treated as seconds.
const epochMsThreshold = 1e11

// ParseValidTime interprets the validtime property of an upstream feature.
// Accepted forms: RFC 3339 strings, "2006-01-02 15:04:05" timestamps, and
// numeric epoch values in seconds or milliseconds. Returns false for
// anything else.
func ParseValidTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		return parseTimeString(t)
	case float64:
		return fromEpoch(t), true
	case int64:
		return fromEpoch(float64(t)), true
	case int:
		return fromEpoch(float64(t)), true
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return fromEpoch(f), true
		}
	case time.Time:
		return t.UTC(), true
	}
	return time.Time{}, false
}

func parseTimeString(s string) (time.Time, bool) {
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func fromEpoch(v float64) time.Time {
	if v < epochMsThreshold {
		v *= 1000
	}
	return time.UnixMilli(int64(v)).UTC()
}

// BuildTimeline sorts and deduplicates valid-times into the strictly
// increasing sequence the store requires. Zero times are dropped.
func BuildTimeline(times []time.Time) []time.Time {
	out := make([]time.Time, 0, len(times))
	for _, t := range times {
		if !t.IsZero() {
			out = append(out, t.UTC())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })

	dedup := out[:0]
	for _, t := range out {
		if len(dedup) == 0 || !t.Equal(dedup[len(dedup)-1]) {
			dedup = append(dedup, t)
		}
	}
	return dedup
}
