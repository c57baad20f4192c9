package util

import (
	"strconv"
	"time"
)

// secondsCutoff separates epoch seconds from epoch milliseconds: any
// value below it is read as seconds (year 5138 in seconds, 1973 in ms).
const secondsCutoff = 1e11

// FloorMs aligns an epoch-ms timestamp down to a multiple of width.
func FloorMs(ts, width int64) int64 {
	if width <= 0 {
		return ts
	}
	r := ts % width
	if r < 0 {
		r += width
	}
	return ts - r
}

// NormalizeEpochMs accepts epoch seconds or epoch milliseconds and returns
// milliseconds.
func NormalizeEpochMs(ts int64) int64 {
	if ts > 0 && ts < secondsCutoff {
		return ts * 1000
	}
	return ts
}

// MsToTime converts epoch milliseconds to a UTC time.
func MsToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds or milliseconds.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return MsToTime(NormalizeEpochMs(ts)), true
	}
	return time.Time{}, false
}
