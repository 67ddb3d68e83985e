package util

import (
	"fmt"
	"strconv"
	"time"
)

// packedLayout is the CDN's packed date form, "yyyyMMddHHmmss".
const packedLayout = "20060102150405"

// seoul is the platform's fixed time zone. Upload timestamps embedded in CDN
// paths are rendered in KST regardless of where the client runs.
var seoul = loadSeoul()

func loadSeoul() *time.Location {
	if loc, err := time.LoadLocation("Asia/Seoul"); err == nil {
		return loc
	}
	// KST has no DST, so a fixed offset is an exact fallback when the host
	// has no tzdata.
	return time.FixedZone("KST", 9*60*60)
}

// FromMillis converts an epoch-milliseconds value into platform-local time.
func FromMillis(millis int64) time.Time {
	return time.UnixMilli(millis).In(seoul)
}

// FormatPackedDate renders t as a packed "yyyyMMddHHmmss" integer.
func FormatPackedDate(t time.Time) int64 {
	packed, _ := strconv.ParseInt(t.Format(packedLayout), 10, 64)
	return packed
}

// ParsePackedDate parses a packed "yyyyMMddHHmmss" integer back into a
// wall-clock time. The zone is irrelevant to callers, which only step the
// value and re-pack it.
func ParsePackedDate(packed int64) (time.Time, error) {
	t, err := time.ParseInLocation(packedLayout, fmt.Sprintf("%014d", packed), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid packed date: %d", packed)
	}
	return t, nil
}

// StepPackedDate shifts a packed "yyyyMMddHHmmss" value by the given number
// of seconds, carrying across minute/hour/day boundaries.
func StepPackedDate(packed int64, seconds int) (int64, error) {
	t, err := ParsePackedDate(packed)
	if err != nil {
		return 0, err
	}
	return FormatPackedDate(t.Add(time.Duration(seconds) * time.Second)), nil
}
