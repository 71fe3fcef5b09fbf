package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dyluth/pigeon/internal/telemetry"
	"github.com/dyluth/pigeon/pkg/pigeon"
)

// PublishTimeout bounds one record's delivery to all sinks.
const PublishTimeout = 2 * time.Second

// Sink receives decoded records.
type Sink interface {
	Publish(ctx context.Context, rec telemetry.Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec telemetry.Record) error

func (f SinkFunc) Publish(ctx context.Context, rec telemetry.Record) error { return f(ctx, rec) }

// Fanout is a pigeon.LineWriter that decodes each line and hands the record to every sink.
// It lets a registry write straight to Redis and the dashboard.
type Fanout struct {
	decoder *telemetry.Decoder
	sinks   []Sink
	metrics *Metrics
}

var _ pigeon.LineWriter = (*Fanout)(nil)

// NewFanout creates a fanout. m may be nil.
func NewFanout(decoder *telemetry.Decoder, m *Metrics, sinks ...Sink) *Fanout {
	return &Fanout{decoder: decoder, sinks: sinks, metrics: m}
}

// WriteLine decodes line and publishes it. Lines that are not wire lines fail with an error
// wrapping pigeon.ErrMalformedLine. Every sink is tried; their errors are joined.
func (f *Fanout) WriteLine(line string) error {
	rec, err := f.decoder.Decode(line)
	if err != nil {
		f.metrics.decodeFailed()
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
	defer cancel()

	var errs []error
	for i, sink := range f.sinks {
		if err := sink.Publish(ctx, rec); err != nil {
			f.metrics.sinkFailed()
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	f.metrics.recordRelayed()
	return errors.Join(errs...)
}
