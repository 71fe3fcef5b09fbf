package pigeon

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
)

// LineReader supplies input lines to the dispatcher. ReadLine may block; it returns io.EOF
// once the source is exhausted.
type LineReader interface {
	ReadLine(ctx context.Context) (string, error)
}

// LineWriter sends one output line.
type LineWriter interface {
	WriteLine(line string) error
}

// Clock returns milliseconds since some fixed origin. It wraps at 2^32.
type Clock func() uint32

// SinceClock returns a Clock counting milliseconds from start.
func SinceClock(start time.Time) Clock {
	return func() uint32 {
		return uint32(time.Since(start).Milliseconds())
	}
}

// LineReaderFunc adapts a function to LineReader.
type LineReaderFunc func(ctx context.Context) (string, error)

func (f LineReaderFunc) ReadLine(ctx context.Context) (string, error) { return f(ctx) }

// LineWriterFunc adapts a function to LineWriter.
type LineWriterFunc func(line string) error

func (f LineWriterFunc) WriteLine(line string) error { return f(line) }

type reader struct {
	br *bufio.Reader
}

// NewReader reads newline-terminated lines from r, truncating each to LineSize.
// The blocking read itself does not observe ctx.
func NewReader(r io.Reader) LineReader {
	return &reader{br: bufio.NewReaderSize(r, LineSize*2)}
}

func (r *reader) ReadLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var sb strings.Builder
	for {
		chunk, err := r.br.ReadSlice('\n')
		if sb.Len() < LineSize {
			sb.Write(chunk)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) && sb.Len() > 0 {
				break
			}
			return "", err
		}
		break
	}

	return truncate(strings.TrimRight(sb.String(), "\r\n"), LineSize), nil
}

type writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter writes each line to w followed by a newline. It is safe for concurrent use.
func NewWriter(w io.Writer) LineWriter {
	return &writer{w: w}
}

func (w *writer) WriteLine(line string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, err := io.WriteString(w.w, line+"\n")
	return err
}
