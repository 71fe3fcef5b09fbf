// Package watch streams telemetry from a running bridge to a terminal.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/pigeon/internal/bridge"
	"github.com/dyluth/pigeon/internal/filter"
	"github.com/dyluth/pigeon/internal/printer"
	"github.com/dyluth/pigeon/internal/telemetry"
	"github.com/go-logr/logr"
)

// OutputFormat selects how records are printed.
type OutputFormat string

const (
	OutputFormatDefault OutputFormat = "default"
	OutputFormatJSON    OutputFormat = "json"
)

// Options controls Stream.
type Options struct {
	Format   OutputFormat
	Criteria *filter.Criteria
	// History prints this many stored records before the live stream.
	History int64
	// Latest prints the latest record of every channel and returns instead of streaming.
	Latest bool
}

// Stream prints matching records to w until ctx ends or the subscription closes.
func Stream(ctx context.Context, w io.Writer, client *bridge.Client, opts Options, log logr.Logger) error {
	emit, err := emitter(opts.Format)
	if err != nil {
		return err
	}
	criteria := opts.Criteria
	if criteria == nil {
		criteria = &filter.Criteria{}
	}

	if opts.Latest {
		records, err := client.Latest(ctx)
		if err != nil {
			return fmt.Errorf("failed to read latest telemetry: %w", err)
		}
		return emitAll(w, criteria.Apply(records), emit)
	}

	// Subscribe before reading history so nothing falls between the two.
	sub, err := client.SubscribeTelemetry(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to telemetry: %w", err)
	}
	defer sub.Close()
	go bridge.LogErrors(log, sub.Errors())

	if opts.History > 0 {
		records, err := client.History(ctx, opts.History)
		if err != nil {
			return fmt.Errorf("failed to read history: %w", err)
		}
		if err := emitAll(w, criteria.Apply(records), emit); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case rec, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if !criteria.Matches(rec) {
				continue
			}
			if err := emit(w, rec); err != nil {
				return err
			}
		}
	}
}

// WaitForReply waits for the next record on channel.
// Returns the record or an error if timeout occurs.
func WaitForReply(ctx context.Context, events <-chan telemetry.Record, channel string, timeout time.Duration) (telemetry.Record, error) {
	timeoutCh := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return telemetry.Record{}, ctx.Err()

		case <-timeoutCh:
			return telemetry.Record{}, fmt.Errorf("timeout waiting for %s after %v", channel, timeout)

		case rec, ok := <-events:
			if !ok {
				return telemetry.Record{}, fmt.Errorf("telemetry subscription closed while waiting for %s", channel)
			}
			if rec.Channel == channel {
				return rec, nil
			}
		}
	}
}

type emitFunc func(io.Writer, telemetry.Record) error

// ParseFormat validates a --output value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case OutputFormatDefault, OutputFormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format: %s", s)
	}
}

func emitter(format OutputFormat) (emitFunc, error) {
	switch format {
	case OutputFormatDefault, "":
		return func(w io.Writer, rec telemetry.Record) error {
			printer.Record(w, rec)
			return nil
		}, nil
	case OutputFormatJSON:
		return func(w io.Writer, rec telemetry.Record) error {
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("failed to marshal record: %w", err)
			}
			_, err = fmt.Fprintf(w, "%s\n", data)
			return err
		}, nil
	default:
		return nil, fmt.Errorf("unknown format: %s", format)
	}
}

func emitAll(w io.Writer, records []telemetry.Record, emit emitFunc) error {
	for _, rec := range records {
		if err := emit(w, rec); err != nil {
			return err
		}
	}
	return nil
}
