package timespec

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Parse parses a robot clock specification into milliseconds since the robot booted.
// Supports two formats:
//   - Go duration format: "90s", "1m30s", "250ms"
//   - Plain milliseconds as printed on the wire: "12345", "00012345"
//
// The robot clock is 32 bits wide, so values past 2^32-1 ms are rejected.
func Parse(spec string) (uint32, error) {
	if spec == "" {
		return 0, fmt.Errorf("empty time specification")
	}

	if ms, err := strconv.ParseUint(spec, 10, 32); err == nil {
		return uint32(ms), nil
	}

	if d, err := time.ParseDuration(spec); err == nil {
		if d < 0 || d.Milliseconds() > math.MaxUint32 {
			return 0, fmt.Errorf("time specification out of range: %s", spec)
		}
		return uint32(d.Milliseconds()), nil
	}

	return 0, fmt.Errorf("invalid time specification: %s (use a duration like '1m30s' or milliseconds like '12345')", spec)
}

// ParseRange parses both --since and --until flags into a clock range.
// Returns (sinceMs, untilMs, hasUntil, error). An empty until means "no upper bound".
//
// Validates that since < until if both are specified.
func ParseRange(since, until string) (uint32, uint32, bool, error) {
	var sinceMS, untilMS uint32
	var err error

	if since != "" {
		sinceMS, err = Parse(since)
		if err != nil {
			return 0, 0, false, fmt.Errorf("invalid --since: %w", err)
		}
	}

	if until == "" {
		return sinceMS, 0, false, nil
	}

	untilMS, err = Parse(until)
	if err != nil {
		return 0, 0, false, fmt.Errorf("invalid --until: %w", err)
	}

	if sinceMS >= untilMS {
		return 0, 0, false, fmt.Errorf("--since must be before --until")
	}

	return sinceMS, untilMS, true, nil
}
