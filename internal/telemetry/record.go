// Package telemetry turns wire lines into records for the dashboard, Redis and offline tools.
package telemetry

import (
	"fmt"
	"strings"
	"time"

	"github.com/dyluth/pigeon/pkg/pigeon"
	"github.com/google/uuid"
)

// Record is one decoded output line.
type Record struct {
	// Timestamp is the robot clock in milliseconds, as printed on the line.
	Timestamp uint32 `json:"timestamp"`
	// Channel is the line's path: "portal" for flush rows, "portal.key" otherwise.
	Channel string `json:"channel"`
	Message string `json:"message"`
	Raw     string `json:"raw"`

	// Session identifies one bridge run, so a clock reset after a robot reboot stays distinguishable.
	Session    string `json:"session,omitempty"`
	ReceivedAt int64  `json:"received_at_ms,omitempty"`
}

// Portal returns the portal id part of Channel.
func (r Record) Portal() string {
	portal, _, _ := strings.Cut(r.Channel, ".")
	return portal
}

// IsFlush reports whether the record is a portal's stream row.
func (r Record) IsFlush() bool {
	return r.Portal() == r.Channel
}

// NewSession returns a fresh session id.
func NewSession() string {
	return uuid.NewString()
}

// Decoder stamps every decoded record with one session id and the receive time.
type Decoder struct {
	Session string
	Now     func() time.Time
}

// NewDecoder creates a decoder with a fresh session id.
func NewDecoder() *Decoder {
	return &Decoder{Session: NewSession(), Now: time.Now}
}

// Decode parses one raw wire line.
func (d *Decoder) Decode(raw string) (Record, error) {
	rec, err := Parse(raw)
	if err != nil {
		return Record{}, err
	}
	rec.Session = d.Session
	if d.Now != nil {
		rec.ReceivedAt = d.Now().UnixMilli()
	}
	return rec, nil
}

// Parse decodes one wire line without session or receive stamps.
func Parse(raw string) (Record, error) {
	line, err := pigeon.ParseLine(raw)
	if err != nil {
		return Record{}, fmt.Errorf("decode %q: %w", raw, err)
	}
	return Record{
		Timestamp: line.Clock,
		Channel:   line.Path(),
		Message:   line.Message,
		Raw:       pigeon.FormatLine(line.Clock, line.Portal, line.Key, line.Message),
	}, nil
}
