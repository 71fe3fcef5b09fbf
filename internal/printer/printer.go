package printer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dyluth/pigeon/internal/decode"
	"github.com/dyluth/pigeon/internal/telemetry"
	"github.com/fatih/color"
)

func init() {
	// pigeon output is usually piped into a capture or a pager; keep colors unless NO_COLOR is set
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

// Stderr receives warnings and error reports. Stdout may be the robot link, so nothing in
// this package other than Record writes anywhere else.
var Stderr io.Writer = os.Stderr

var (
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
	bold   = color.New(color.Bold)
)

// Warning reports a non-fatal problem, prefixed "pigeon: warning:".
func Warning(format string, a ...any) {
	msg := strings.TrimRight(fmt.Sprintf(format, a...), "\n")
	yellow.Fprintf(Stderr, "pigeon: warning: %s\n", msg)
}

// Error reports a failed command and returns an error carrying only the title, for cobra to
// exit on (root runs with SilenceErrors).
func Error(title string, explanation string, suggestions []string) error {
	return ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext is Error with key/value details (device, instance, config path) listed
// between the explanation and the hints.
func ErrorWithContext(title string, explanation string, details map[string]string, suggestions []string) error {
	red.Fprintf(Stderr, "pigeon: %s\n", title)
	if explanation != "" {
		fmt.Fprintf(Stderr, "\n%s\n", explanation)
	}

	if len(details) > 0 {
		keys := make([]string, 0, len(details))
		for key := range details {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		fmt.Fprintln(Stderr)
		for _, key := range keys {
			fmt.Fprintf(Stderr, "  %-10s %s\n", key+":", details[key])
		}
	}

	switch len(suggestions) {
	case 0:
	case 1:
		fmt.Fprintf(Stderr, "\nhint: %s\n", suggestions[0])
	default:
		fmt.Fprintf(Stderr, "\nhints:\n")
		for _, suggestion := range suggestions {
			fmt.Fprintf(Stderr, "  - %s\n", suggestion)
		}
	}

	return fmt.Errorf("%s", title)
}

// Record prints one telemetry record: faint clock, cyan channel for entries,
// bold channel for stream rows.
func Record(w io.Writer, rec telemetry.Record) {
	faint.Fprintf(w, "%-12s ", decode.FormatClock(rec.Timestamp))
	if rec.IsFlush() {
		bold.Fprintf(w, "%-24s ", rec.Channel)
	} else {
		cyan.Fprintf(w, "%-24s ", rec.Channel)
	}
	fmt.Fprintln(w, rec.Message)
}
