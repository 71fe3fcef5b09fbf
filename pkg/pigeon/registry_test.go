package pigeon

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryReadiness(t *testing.T) {
	t.Run("portal ready before registry", func(t *testing.T) {
		reg, _, spawns := setupTestRegistry(t)
		p, err := reg.CreatePortal("motor")
		require.NoError(t, err)

		p.Ready()
		assert.Equal(t, 0, *spawns)
		assert.False(t, reg.Ready())

		reg.MarkReady()
		assert.Equal(t, 1, *spawns)
		assert.True(t, reg.Ready())
		assert.True(t, reg.Running())
	})

	t.Run("registry ready before portal", func(t *testing.T) {
		reg, _, spawns := setupTestRegistry(t)
		p, err := reg.CreatePortal("motor")
		require.NoError(t, err)

		reg.MarkReady()
		assert.Equal(t, 0, *spawns)
		assert.False(t, reg.Running())

		p.Ready()
		assert.Equal(t, 1, *spawns)
	})

	t.Run("one portal not ready holds the dispatcher back", func(t *testing.T) {
		reg, _, spawns := setupTestRegistry(t)
		motor, err := reg.CreatePortal("motor")
		require.NoError(t, err)
		arm, err := reg.CreatePortal("arm")
		require.NoError(t, err)

		motor.Ready()
		reg.MarkReady()
		assert.Equal(t, 0, *spawns)
		assert.True(t, motor.IsReady())
		assert.False(t, arm.IsReady())

		arm.Ready()
		assert.Equal(t, 1, *spawns)
	})

	t.Run("control portal alone is enough", func(t *testing.T) {
		reg, _, spawns := setupTestRegistry(t)
		reg.MarkReady()
		assert.Equal(t, 1, *spawns)
	})

	t.Run("dispatcher starts only once", func(t *testing.T) {
		reg, _, spawns := setupTestRegistry(t)
		p, err := reg.CreatePortal("motor")
		require.NoError(t, err)

		p.Ready()
		reg.MarkReady()
		reg.MarkReady()
		p.Ready()
		assert.Equal(t, 1, *spawns)
	})
}

func TestRegistryPortals(t *testing.T) {
	reg, _, _ := setupTestRegistry(t)

	_, err := reg.CreatePortal("motor")
	require.NoError(t, err)
	_, err = reg.CreatePortal("arm")
	require.NoError(t, err)

	t.Run("ids are listed sorted with the control portal", func(t *testing.T) {
		assert.Equal(t, []string{"arm", "motor", "pigeon"}, reg.Portals())
	})

	t.Run("duplicate ids are rejected", func(t *testing.T) {
		_, err := reg.CreatePortal("motor")
		assert.ErrorIs(t, err, ErrDuplicateID)
		_, err = reg.CreatePortal(ControlPortalID)
		assert.ErrorIs(t, err, ErrDuplicateID)
	})

	t.Run("invalid ids are rejected", func(t *testing.T) {
		for _, id := range []string{"", "~", "my portal", "arm.left", "arm]", "a|b", "[arm"} {
			_, err := reg.CreatePortal(id)
			assert.Error(t, err, "id %q", id)
		}
	})

	t.Run("control portal is ready and enabled", func(t *testing.T) {
		control := reg.Control()
		assert.Equal(t, ControlPortalID, control.ID())
		assert.True(t, control.IsReady())
		assert.True(t, control.Enabled())
	})
}

func TestDispatcherLoop(t *testing.T) {
	t.Run("serves input until EOF", func(t *testing.T) {
		out := &captureWriter{}
		in := NewReader(strings.NewReader("motor.target 42.0\nbogus.line 1\n\nmotor.target 7\n"))
		reg := New(in, out, fixedClock, WithMessageDelay(0))

		var target float32
		setupMotor(t, reg, &target)
		reg.MarkReady()

		select {
		case <-reg.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("dispatcher did not stop at EOF")
		}

		assert.Equal(t, float32(7), target)
		assert.Equal(t, []string{
			"[00000042|motor.target] 42.0",
			"[00000042|motor.target] 7.0",
		}, out.Lines())
	})

	t.Run("stops when the context ends", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		reg := New(blockingReader, &captureWriter{}, fixedClock, WithContext(ctx))
		reg.MarkReady()

		cancel()
		select {
		case <-reg.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("dispatcher did not stop on cancel")
		}
	})

	t.Run("read errors are logged and skipped", func(t *testing.T) {
		var (
			mu    sync.Mutex
			calls int
			logs  []string
		)
		in := LineReaderFunc(func(ctx context.Context) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if calls == 1 {
				return "", errors.New("line noise")
			}
			return "", io.EOF
		})
		log := funcr.New(func(prefix, args string) {
			mu.Lock()
			defer mu.Unlock()
			logs = append(logs, args)
		}, funcr.Options{})

		reg := New(in, &captureWriter{}, fixedClock, WithMessageDelay(0), WithLogger(log))
		reg.MarkReady()
		<-reg.Done()

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 2, calls)
		assert.Contains(t, strings.Join(logs, "\n"), "line noise")
	})
}

func TestEmitWriteFailure(t *testing.T) {
	var logs []string
	log := funcr.New(func(prefix, args string) {
		logs = append(logs, args)
	}, funcr.Options{})

	out := LineWriterFunc(func(string) error { return errors.New("port closed") })
	reg := New(blockingReader, out, fixedClock, WithLogger(log), WithSpawner(func(func()) {}))

	var target float32
	p := setupMotor(t, reg, &target)
	p.Update("target")

	require.Len(t, logs, 1)
	assert.Contains(t, logs[0], "failed to write line")
	assert.Contains(t, logs[0], "motor.target")
}
