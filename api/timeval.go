// File: api/timeval.go
// Author: momentics <momentics@gmail.com>
//
// Seconds/microseconds timeout representation.

package api

import (
	"math"
	"time"
)

// Timeval is a timeout split into whole seconds and a microsecond remainder.
type Timeval struct {
	Sec  int64
	Usec int64
}

// MaxTimeoutSeconds is the largest timeout that fits a time.Duration.
const MaxTimeoutSeconds = float64(math.MaxInt64 / int64(time.Second))

// TimevalFromSeconds decomposes a floating-point duration in seconds.
// Values that do not fit a time.Duration are rejected.
func TimevalFromSeconds(sec float64) (Timeval, error) {
	if math.IsNaN(sec) || math.IsInf(sec, 0) || sec < 0 || sec > MaxTimeoutSeconds {
		return Timeval{}, NewError(ErrCodeInvalidArgument, "invalid timeout").WithContext("seconds", sec)
	}
	whole := int64(sec)
	return Timeval{
		Sec:  whole,
		Usec: int64(1e6 * (sec - float64(whole))),
	}, nil
}

// TimevalFromDuration truncates d to microsecond precision.
func TimevalFromDuration(d time.Duration) Timeval {
	if d < 0 {
		d = 0
	}
	return Timeval{
		Sec:  int64(d / time.Second),
		Usec: int64(d%time.Second) / int64(time.Microsecond),
	}
}

// Duration converts tv back to a time.Duration, saturating at the largest
// representable duration.
func (tv Timeval) Duration() time.Duration {
	const maxSec = math.MaxInt64 / int64(time.Second)
	if tv.Sec < 0 || tv.Usec < 0 {
		return 0
	}
	if tv.Sec > maxSec {
		return time.Duration(math.MaxInt64)
	}
	d := time.Duration(tv.Sec) * time.Second
	us := time.Duration(tv.Usec) * time.Microsecond
	if tv.Usec > int64(math.MaxInt64-d)/int64(time.Microsecond) {
		return time.Duration(math.MaxInt64)
	}
	return d + us
}
