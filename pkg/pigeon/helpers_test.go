package pigeon

import (
	"context"
	"sync"
	"testing"
)

const testClock = 42

// captureWriter records every line written to it.
type captureWriter struct {
	mu    sync.Mutex
	lines []string
}

func (c *captureWriter) WriteLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
	return nil
}

func (c *captureWriter) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *captureWriter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
}

// blockingReader never produces a line.
var blockingReader = LineReaderFunc(func(ctx context.Context) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
})

func fixedClock() uint32 { return testClock }

// setupTestRegistry creates a registry whose dispatcher is never launched; spawns counts how
// many times it would have been.
func setupTestRegistry(t *testing.T, opts ...Option) (reg *Registry, out *captureWriter, spawns *int) {
	t.Helper()
	out = &captureWriter{}
	spawns = new(int)
	opts = append([]Option{WithSpawner(func(func()) { *spawns++ })}, opts...)
	reg = New(blockingReader, out, fixedClock, opts...)
	return reg, out, spawns
}

// setupMotor registers an enabled "motor" portal with a float "target" entry.
func setupMotor(t *testing.T, reg *Registry, target *float32) *Portal {
	t.Helper()
	p, err := reg.CreatePortal("motor")
	if err != nil {
		t.Fatalf("create motor portal: %v", err)
	}
	if err := p.Add(EntrySetup{Key: "target", Handler: Float{Target: target}, OnChange: true}); err != nil {
		t.Fatalf("add target: %v", err)
	}
	p.Ready()
	p.Enable()
	return p
}
