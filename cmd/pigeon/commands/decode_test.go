package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dyluth/pigeon/internal/filter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const robotLog = `pigeon boot
[00000100|flywheel.target] 1500.0
[00000200|flywheel] 10.0 1490.0 0.9 1
[00000300|flywheel.state] active
[00000400|flywheel] 120.0 1380.0 0.9 2
[00000500|arm.x   ] 4
`

func TestDecodeCapture(t *testing.T) {
	t.Run("table with every record", func(t *testing.T) {
		var out, errOut bytes.Buffer
		err := decodeCapture(&out, &errOut, strings.NewReader(robotLog), &filter.Criteria{}, "table", nil)
		require.NoError(t, err)

		assert.Contains(t, out.String(), "5 lines decoded")
		assert.Equal(t, "skipped 1 line(s) that were not pigeon output\n", errOut.String())
	})

	t.Run("portal and clock filters", func(t *testing.T) {
		var out, errOut bytes.Buffer
		criteria := &filter.Criteria{Portal: "flywheel", SinceClockMs: 200, UntilClockMs: 300, HasUntil: true}
		err := decodeCapture(&out, &errOut, strings.NewReader(robotLog), criteria, "jsonl", nil)
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 2)
		assert.Contains(t, lines[0], `"channel":"flywheel"`)
		assert.Contains(t, lines[1], `"channel":"flywheel.state"`)
	})

	t.Run("csv stream rows", func(t *testing.T) {
		var out, errOut bytes.Buffer
		criteria := &filter.Criteria{Portal: "flywheel"}
		err := decodeCapture(&out, &errOut, strings.NewReader(robotLog), criteria, "csv",
			[]string{"velocity", "error", "action", "ticks"})
		require.NoError(t, err)

		assert.Equal(t,
			"clock,velocity,error,action,ticks\n200,10.0,1490.0,0.9,1\n400,120.0,1380.0,0.9,2\n",
			out.String())
	})
}

func TestDecodeCommand(t *testing.T) {
	t.Cleanup(func() {
		decodeOutputFormat = "table"
		decodePortal = ""
		decodeSince = ""
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetIn(strings.NewReader(robotLog))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
	})

	rootCmd.SetArgs([]string{"decode", "-", "--portal", "arm", "--since", "450", "--output", "jsonl"})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, out.String(), `"channel":"arm.x"`)
	assert.Contains(t, out.String(), `"message":"4"`)
	assert.NotContains(t, out.String(), "flywheel")
}
