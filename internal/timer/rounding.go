package timer

import "time"

// RoundToMinute rounds a run length in seconds to the nearest whole minute.
// Unlike plain nearest rounding, exact half minutes always round down:
// 90s gives 60s, 210s gives 180s, 91s gives 120s.
func RoundToMinute(seconds int64) int64 {
	if seconds <= 0 {
		return 0
	}
	return (seconds + 29) / 60 * 60
}

// elapsedSeconds is the whole number of seconds from since to now, never negative.
func elapsedSeconds(since, now time.Time) int64 {
	d := now.Sub(since)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
