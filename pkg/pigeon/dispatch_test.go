package pigeon

import (
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch(t *testing.T) {
	t.Run("sets the value and republishes it", func(t *testing.T) {
		reg, out, _ := setupTestRegistry(t)
		var target float32
		setupMotor(t, reg, &target)

		require.NoError(t, reg.Dispatch("motor.target 42.0"))
		assert.Equal(t, float32(42), target)
		assert.Equal(t, []string{"[00000042|motor.target] 42.0"}, out.Lines())
	})

	t.Run("malformed value is ignored but still republished", func(t *testing.T) {
		reg, out, _ := setupTestRegistry(t)
		target := float32(3)
		setupMotor(t, reg, &target)

		require.NoError(t, reg.Dispatch("motor.target fast"))
		assert.Equal(t, float32(3), target)
		assert.Equal(t, []string{"[00000042|motor.target] 3.0"}, out.Lines())
	})

	t.Run("empty body is a set", func(t *testing.T) {
		reg, _, _ := setupTestRegistry(t)
		p, err := reg.CreatePortal("motor")
		require.NoError(t, err)

		called, got := false, "unset"
		require.NoError(t, p.Add(EntrySetup{Key: "reset", Manual: true, Handler: Custom{SetFunc: func(request string) string {
			called, got = true, request
			return ""
		}}}))
		p.Ready()
		p.Enable()

		require.NoError(t, reg.Dispatch("motor.reset"))
		assert.True(t, called)
		assert.Empty(t, got)
	})

	t.Run("manual entries are not republished", func(t *testing.T) {
		reg, out, _ := setupTestRegistry(t)
		p, err := reg.CreatePortal("motor")
		require.NoError(t, err)

		var v uint32
		require.NoError(t, p.Add(EntrySetup{Key: "mode", Handler: Uint{Target: &v}, OnChange: true, Manual: true}))
		p.Ready()
		p.Enable()

		require.NoError(t, reg.Dispatch("motor.mode 3"))
		assert.Equal(t, uint32(3), v)
		assert.Empty(t, out.Lines())
	})

	t.Run("handler reply follows the republish", func(t *testing.T) {
		reg, out, _ := setupTestRegistry(t)
		p, err := reg.CreatePortal("motor")
		require.NoError(t, err)
		require.NoError(t, p.Add(EntrySetup{Key: "cmd", OnChange: true, Handler: Custom{
			GetFunc: func() string { return "idle" },
			SetFunc: func(string) string { return "ok" },
		}}))
		p.Ready()
		p.Enable()

		require.NoError(t, reg.Dispatch("motor.cmd spin"))
		assert.Equal(t, []string{
			FormatLine(testClock, "motor", "cmd", "idle"),
			FormatLine(testClock, "motor", "cmd", "ok"),
		}, out.Lines())
	})

	t.Run("disabled portal still takes the value silently", func(t *testing.T) {
		reg, out, _ := setupTestRegistry(t)
		var target float32
		p := setupMotor(t, reg, &target)
		p.Disable()

		require.NoError(t, reg.Dispatch("motor.target 9"))
		assert.Equal(t, float32(9), target)
		assert.Empty(t, out.Lines())
	})

	t.Run("drops lines it cannot route", func(t *testing.T) {
		reg, out, _ := setupTestRegistry(t)
		var target float32
		setupMotor(t, reg, &target)

		tests := []struct {
			line string
			want error
		}{
			{"", ErrEmptyRequest},
			{"arm.angle 1", ErrUnknownPortal},
			{"motor.speed 1", ErrUnknownEntry},
			{"motor 1", ErrUnknownEntry},
		}
		for _, tt := range tests {
			err := reg.Dispatch(tt.line)
			assert.ErrorIs(t, err, tt.want, "line %q", tt.line)
			assert.True(t, IsDropped(err))
		}
		assert.Empty(t, out.Lines())
		assert.Equal(t, float32(0), target)
	})

	t.Run("portal still in setup is treated as unknown", func(t *testing.T) {
		reg, out, _ := setupTestRegistry(t)
		p, err := reg.CreatePortal("late")
		require.NoError(t, err)
		var v uint32
		require.NoError(t, p.Add(EntrySetup{Key: "k1", Handler: Uint{Target: &v}, OnChange: true}))

		err = reg.Dispatch("late.k1 1")
		assert.ErrorIs(t, err, ErrUnknownPortal)
		assert.Equal(t, uint32(0), v)

		p.Ready()
		p.Enable()
		require.NoError(t, reg.Dispatch("late.k1 1"))
		assert.Equal(t, uint32(1), v)
		assert.Equal(t, []string{FormatLine(testClock, "late", "k1", "1")}, out.Lines())
	})

	t.Run("requests for a portal being set up do not race its adds", func(t *testing.T) {
		reg, _, _ := setupTestRegistry(t)
		p, err := reg.CreatePortal("late")
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = reg.Dispatch("late.k1 1")
				_ = reg.Dispatch("pigeon.enable late")
			}
		}()
		for i := 0; i < 200; i++ {
			var v uint32
			require.NoError(t, p.Add(EntrySetup{Key: fmt.Sprintf("k%d", i), Handler: Uint{Target: &v}}))
		}
		wg.Wait()
		assert.Len(t, p.Entries(), 201)
	})

	t.Run("empty handler reading is not emitted", func(t *testing.T) {
		reg, out, _ := setupTestRegistry(t)
		p, err := reg.CreatePortal("motor")
		require.NoError(t, err)
		got := ""
		require.NoError(t, p.Add(EntrySetup{Key: "cmd", OnChange: true, Handler: Custom{SetFunc: func(request string) string {
			got = request
			return ""
		}}}))
		p.Ready()
		p.Enable()

		require.NoError(t, reg.Dispatch("motor.cmd go"))
		assert.Equal(t, "go", got)
		assert.Empty(t, out.Lines())
	})

	t.Run("entry without a handler is dropped", func(t *testing.T) {
		reg, _, _ := setupTestRegistry(t)
		p, err := reg.CreatePortal("motor")
		require.NoError(t, err)
		require.NoError(t, p.Add(EntrySetup{Key: "rpm", Stream: true}))
		p.Ready()

		assert.ErrorIs(t, reg.Dispatch("motor.rpm 1"), ErrNoHandler)
	})

	t.Run("handler runs under the portal locker", func(t *testing.T) {
		reg, _, _ := setupTestRegistry(t)
		var mu sync.Mutex
		p, err := reg.CreatePortal("motor", WithLocker(&mu))
		require.NoError(t, err)

		held := false
		require.NoError(t, p.Add(EntrySetup{Key: "cmd", Handler: Custom{SetFunc: func(string) string {
			if mu.TryLock() {
				mu.Unlock()
			} else {
				held = true
			}
			return ""
		}}}))
		p.Ready()
		p.Enable()

		require.NoError(t, reg.Dispatch("motor.cmd go"))
		assert.True(t, held)
		assert.True(t, mu.TryLock(), "locker must be released")
	})
}

func TestDispatchStreamKeys(t *testing.T) {
	reg, out, _ := setupTestRegistry(t)
	a, b := float32(1), float32(2)
	p, err := reg.CreatePortal("motor")
	require.NoError(t, err)
	require.NoError(t, p.AddBatch([]EntrySetup{
		{Key: "a", Handler: Float{Target: &a}, Stream: true},
		{Key: "b", Handler: Float{Target: &b}, Stream: true},
	}))
	p.Ready()
	p.Enable()
	p.Update("a")
	p.Update("b")

	t.Run("reorders the flush row", func(t *testing.T) {
		out.Reset()
		require.NoError(t, reg.Dispatch("motor.keys b a"))
		p.Flush()
		assert.Equal(t, []string{
			FormatLine(testClock, "motor", "keys", "b a"),
			FormatLine(testClock, "motor", "", "2.0 1.0"),
		}, out.Lines())
	})

	t.Run("unknown key leaves the order alone", func(t *testing.T) {
		out.Reset()
		require.NoError(t, reg.Dispatch("motor.keys a nope"))
		assert.Equal(t, "b a", p.StreamKeys())
		assert.Equal(t, []string{FormatLine(testClock, "motor", "keys", "b a")}, out.Lines())
	})
}

func TestDispatchMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	reg, _, _ := setupTestRegistry(t, WithMetrics(m))
	var target float32
	setupMotor(t, reg, &target)

	require.NoError(t, reg.Dispatch("motor.target 1"))
	require.NoError(t, reg.Dispatch("pigeon.disable nope"))
	_ = reg.Dispatch("arm.angle 1")
	_ = reg.Dispatch("motor.nope 1")
	_ = reg.Dispatch(" ")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.dispatchedOK))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.droppedLines.WithLabelValues("unknown_portal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.droppedLines.WithLabelValues("unknown_entry")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.droppedLines.WithLabelValues("empty")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.linesWritten))
}

func TestNilMetrics(t *testing.T) {
	assert.Nil(t, NewMetrics(nil))

	var m *Metrics
	assert.NotPanics(t, func() {
		m.lineWritten()
		m.writeFailed()
		m.dispatched()
		m.dropped("empty")
		m.replied()
		m.slotGranted(true)
	})
}

func TestPoolMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	reg, _, _ := setupTestRegistry(t, WithMetrics(m), WithPoolSize(3))

	// control portal: three grants, no evictions
	assert.Equal(t, 3.0, testutil.ToFloat64(m.slotGrants))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.slotEvictions))

	p, err := reg.CreatePortal("motor")
	require.NoError(t, err)
	p.Enable()
	assert.Equal(t, 4.0, testutil.ToFloat64(m.slotGrants))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.slotEvictions))
}
