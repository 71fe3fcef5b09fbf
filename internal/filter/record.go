package filter

import (
	"path/filepath"

	"github.com/dyluth/pigeon/internal/telemetry"
)

// Criteria defines filtering criteria for telemetry records.
// All filters are ANDed together - a record must match ALL criteria to pass.
type Criteria struct {
	SinceClockMs uint32 // robot clock lower bound, inclusive
	UntilClockMs uint32 // robot clock upper bound, inclusive; only applied when HasUntil
	HasUntil     bool
	ChannelGlob  string // glob on the channel, e.g. "flywheel.*"; empty = no filter
	Portal       string // exact portal id; empty = no filter
	FlushOnly    bool   // keep only stream rows
}

// Matches returns true if the record matches all filter criteria.
func (c *Criteria) Matches(rec telemetry.Record) bool {
	if rec.Timestamp < c.SinceClockMs {
		return false
	}
	if c.HasUntil && rec.Timestamp > c.UntilClockMs {
		return false
	}

	if c.ChannelGlob != "" {
		matched, err := filepath.Match(c.ChannelGlob, rec.Channel)
		if err != nil || !matched {
			return false
		}
	}

	if c.Portal != "" && rec.Portal() != c.Portal {
		return false
	}

	if c.FlushOnly && !rec.IsFlush() {
		return false
	}

	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c.SinceClockMs > 0 ||
		c.HasUntil ||
		c.ChannelGlob != "" ||
		c.Portal != "" ||
		c.FlushOnly
}

// Apply returns the records that match, in order.
func (c *Criteria) Apply(records []telemetry.Record) []telemetry.Record {
	if !c.HasFilters() {
		return records
	}
	out := make([]telemetry.Record, 0, len(records))
	for _, rec := range records {
		if c.Matches(rec) {
			out = append(out, rec)
		}
	}
	return out
}
