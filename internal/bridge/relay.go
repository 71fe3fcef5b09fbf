package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dyluth/pigeon/pkg/pigeon"
	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
)

// Relay connects a robot link to the outside: robot output lines go through a Fanout to the
// sinks, and command lines from any number of sources are written to the robot.
type Relay struct {
	from    pigeon.LineReader
	to      pigeon.LineWriter
	fanout  *Fanout
	log     logr.Logger
	metrics *Metrics
}

// NewRelay creates a relay reading robot output from `from` and writing commands to `to`.
func NewRelay(from pigeon.LineReader, to pigeon.LineWriter, fanout *Fanout, log logr.Logger, m *Metrics) *Relay {
	return &Relay{from: from, to: to, fanout: fanout, log: log, metrics: m}
}

// Run relays until the robot output ends or ctx is cancelled. A read that blocks without
// observing ctx (a serial port) is released by closing the port.
//
// Output that is not a wire line is skipped. Sink failures are logged. A failed read or a
// failed command write stops the relay with an error.
func (r *Relay) Run(ctx context.Context, commands ...<-chan string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return r.relayOutput(gctx)
	})
	for _, ch := range commands {
		ch := ch
		g.Go(func() error {
			return r.forwardCommands(gctx, ch)
		})
	}
	return g.Wait()
}

func (r *Relay) relayOutput(ctx context.Context) error {
	for {
		line, err := r.from.ReadLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read robot output: %w", err)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		if err := r.fanout.WriteLine(line); err != nil {
			if errors.Is(err, pigeon.ErrMalformedLine) {
				r.log.V(1).Info("skipping non-wire output", "line", line)
				continue
			}
			r.log.Error(err, "failed to publish record", "line", line)
		}
	}
}

func (r *Relay) forwardCommands(ctx context.Context, commands <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-commands:
			if !ok {
				return nil
			}
			if _, err := pigeon.ParseRequest(line); err != nil {
				r.log.V(1).Info("skipping command", "line", line, "reason", err.Error())
				continue
			}
			if err := r.to.WriteLine(strings.TrimSpace(line)); err != nil {
				return fmt.Errorf("failed to write command: %w", err)
			}
			r.metrics.commandForwarded()
			r.log.V(1).Info("command forwarded", "line", line)
		}
	}
}
