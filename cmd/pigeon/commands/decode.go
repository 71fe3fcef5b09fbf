package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dyluth/pigeon/internal/decode"
	"github.com/dyluth/pigeon/internal/filter"
	"github.com/dyluth/pigeon/internal/printer"
	"github.com/dyluth/pigeon/internal/telemetry"
	"github.com/dyluth/pigeon/internal/timespec"
	"github.com/spf13/cobra"
)

var (
	decodeOutputFormat string
	decodeSince        string
	decodeUntil        string
	decodeChannel      string
	decodePortal       string
	decodeRows         bool
	decodeKeys         string
)

var decodeCmd = &cobra.Command{
	Use:   "decode [FILE]",
	Short: "Decode a captured telemetry log",
	Long: `Decode a capture of pigeon output (a serial log, 'pigeon serve' output, ...)
read from FILE or stdin. Lines that are not pigeon output are skipped.

Output Formats:
  table - Human-readable table with clock, channel and message
  jsonl - Line-delimited JSON, one record per line
  csv   - Stream rows only, one column per stream key (see --keys)

Time Filters (robot clock):
  --since  - Lines at or after this clock ("90s", "1m30s", "12345")
  --until  - Lines at or before this clock

Examples:
  # Everything the flywheel said in its first minute
  pigeon decode robot.log --portal flywheel --until 1m

  # Stream rows as CSV for plotting
  pigeon decode robot.log --portal flywheel --output csv --keys "velocity error action ticks"

  # Pipe JSONL into jq
  pigeon decode robot.log --output jsonl | jq 'select(.channel=="flywheel.state")'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().StringVarP(&decodeOutputFormat, "output", "o", "table", "Output format: table, jsonl or csv")
	decodeCmd.Flags().StringVar(&decodeSince, "since", "", "Show lines from this robot clock (duration or milliseconds)")
	decodeCmd.Flags().StringVar(&decodeUntil, "until", "", "Show lines up to this robot clock (duration or milliseconds)")
	decodeCmd.Flags().StringVar(&decodeChannel, "channel", "", "Filter by channel (glob pattern)")
	decodeCmd.Flags().StringVar(&decodePortal, "portal", "", "Filter by portal (exact match)")
	decodeCmd.Flags().BoolVar(&decodeRows, "rows", false, "Only stream rows")
	decodeCmd.Flags().StringVar(&decodeKeys, "keys", "", "CSV column names, space separated (csv only)")
	rootCmd.AddCommand(decodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	switch decodeOutputFormat {
	case "table", "jsonl", "csv":
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", decodeOutputFormat),
			[]string{"Valid formats: table, jsonl, csv"},
		)
	}

	since, until, hasUntil, err := timespec.ParseRange(decodeSince, decodeUntil)
	if err != nil {
		return printer.Error(
			"invalid time range",
			err.Error(),
			[]string{"Use a duration since boot ('90s') or robot milliseconds ('12345')"},
		)
	}
	criteria := &filter.Criteria{
		SinceClockMs: since,
		UntilClockMs: until,
		HasUntil:     hasUntil,
		ChannelGlob:  decodeChannel,
		Portal:       decodePortal,
		FlushOnly:    decodeRows,
	}

	var in io.Reader = cmd.InOrStdin()
	if len(args) > 0 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return printer.Error(
				"cannot open capture",
				err.Error(),
				[]string{"Pass a capture file, or '-' to read stdin"},
			)
		}
		defer f.Close()
		in = f
	}

	return decodeCapture(cmd.OutOrStdout(), cmd.ErrOrStderr(), in, criteria, decodeOutputFormat, strings.Fields(decodeKeys))
}

// decodeCapture decodes in, filters it and writes it in format. The skipped-line count goes to errW.
func decodeCapture(w, errW io.Writer, in io.Reader, criteria *filter.Criteria, format string, keys []string) error {
	res, err := decode.ReadRecords(in, telemetry.NewDecoder())
	if err != nil {
		return err
	}
	if res.Skipped > 0 {
		fmt.Fprintf(errW, "skipped %d line(s) that were not pigeon output\n", res.Skipped)
	}

	records := criteria.Apply(res.Records)
	switch format {
	case "jsonl":
		return decode.FormatJSONL(w, records)
	case "csv":
		return decode.FormatCSV(w, keys, records)
	default:
		decode.FormatTable(w, records)
		return nil
	}
}
