package bridge

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/dyluth/pigeon/pkg/pigeon"
)

// CommandReader is a pigeon.LineReader over a command subscription, so a registry can take its
// input from Redis instead of a serial port. It returns io.EOF once the subscription closes.
type CommandReader struct {
	events <-chan string
}

var _ pigeon.LineReader = (*CommandReader)(nil)

// NewCommandReader reads from sub. Decode errors are left on sub.Errors().
func NewCommandReader(sub *Subscription[string]) *CommandReader {
	return &CommandReader{events: sub.Events()}
}

// NewChanReader reads lines from ch until it closes, e.g. the dashboard hub's commands.
func NewChanReader(ch <-chan string) *CommandReader {
	return &CommandReader{events: ch}
}

func (r *CommandReader) ReadLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-r.events:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	}
}

// Merge reads every reader concurrently and interleaves their lines. The merged reader returns
// io.EOF once all of them have ended. A read error other than io.EOF ends that reader and is
// passed to onErr when it is non-nil.
func Merge(ctx context.Context, onErr func(error), readers ...pigeon.LineReader) *CommandReader {
	out := make(chan string)
	var wg sync.WaitGroup

	for _, r := range readers {
		wg.Add(1)
		go func(r pigeon.LineReader) {
			defer wg.Done()
			for {
				line, err := r.ReadLine(ctx)
				if err != nil {
					if !errors.Is(err, io.EOF) && ctx.Err() == nil && onErr != nil {
						onErr(err)
					}
					return
				}
				select {
				case out <- line:
				case <-ctx.Done():
					return
				}
			}
		}(r)
	}

	go func() {
		wg.Wait()
		close(out)
	}()
	return &CommandReader{events: out}
}

// MultiWriter writes each line to every writer in order. A failing writer does not stop the
// others; the errors are joined.
func MultiWriter(writers ...pigeon.LineWriter) pigeon.LineWriter {
	return pigeon.LineWriterFunc(func(line string) error {
		var errs []error
		for _, w := range writers {
			if err := w.WriteLine(line); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
