package pigeon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Dispatch routes one input line to its entry.
//
// The entry's handler receives the request body (possibly empty). Unless the entry is Manual
// the entry is then republished with Update. A non-empty handler reply is emitted as a line of
// its own. Lines naming an unknown portal or entry, or an entry without a handler, are dropped
// and the reason is returned. A portal that is not ready yet counts as unknown.
func (r *Registry) Dispatch(line string) error {
	err := r.dispatch(line)
	if err != nil {
		r.metrics.dropped(dropReason(err))
		return err
	}
	r.metrics.dispatched()
	return nil
}

func (r *Registry) dispatch(line string) error {
	req, err := ParseRequest(line)
	if err != nil {
		return err
	}

	p, ok := r.readyPortal(req.Portal)
	if !ok {
		return fmt.Errorf("%w: '%s'", ErrUnknownPortal, req.Portal)
	}
	e, ok := p.Entry(req.Key)
	if !ok {
		return fmt.Errorf("%w: '%s.%s'", ErrUnknownEntry, req.Portal, req.Key)
	}
	if e.handler == nil {
		return fmt.Errorf("%w: '%s'", ErrNoHandler, e.Path())
	}

	if p.locker != nil {
		p.locker.Lock()
		defer p.locker.Unlock()
	}

	response := e.handler.Set(req.Body)
	if !e.manual {
		p.Update(e.key)
	}
	if response != "" {
		r.metrics.replied()
		r.emit(p.id, e.key, response)
	}
	return nil
}

// run is the dispatcher loop.
func (r *Registry) run(ctx context.Context) {
	defer close(r.done)
	defer r.log.Info("dispatcher stopped")

	for {
		line, err := r.in.ReadLine(ctx)
		switch {
		case err == nil:
			if err := r.Dispatch(line); err != nil {
				r.log.V(1).Info("dropped input line", "line", line, "reason", err.Error())
			}
		case errors.Is(err, io.EOF), ctx.Err() != nil:
			return
		default:
			r.log.Error(err, "failed to read input line")
		}

		if !pause(ctx, r.delay) {
			return
		}
	}
}

// pause sleeps for d and reports false if ctx ended first.
func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
