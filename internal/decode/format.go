// Package decode reads captured pigeon output and renders it for humans or jq.
package decode

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dyluth/pigeon/internal/telemetry"
	"github.com/dyluth/pigeon/pkg/pigeon"
)

// Result is what ReadRecords found in a capture.
type Result struct {
	Records []telemetry.Record
	// Skipped counts non-blank lines that were not pigeon output (boot banners, partial lines).
	Skipped int
}

// ReadRecords decodes every well-formed line of r.
// Malformed lines are counted and skipped, never fatal: captures from a serial port
// routinely start mid-line.
func ReadRecords(r io.Reader, dec *telemetry.Decoder) (Result, error) {
	var res Result
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4*pigeon.LineSize), 64*1024)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := dec.Decode(line)
		if err != nil {
			res.Skipped++
			continue
		}
		res.Records = append(res.Records, rec)
	}
	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("failed to read capture: %w", err)
	}
	return res, nil
}

// FormatTable writes records as a formatted table to the provided writer.
// The table includes columns: CLOCK, CHANNEL and MESSAGE (truncated).
// Returns the number of records formatted.
func FormatTable(w io.Writer, records []telemetry.Record) int {
	if len(records) == 0 {
		fmt.Fprintln(w, "No telemetry found")
		return 0
	}

	fmt.Fprintf(w, "%-12s %-24s %s\n", "CLOCK", "CHANNEL", "MESSAGE")
	fmt.Fprintf(w, "%-12s %-24s %s\n",
		"------------", "------------------------", "----------------------------------------")

	for _, rec := range records {
		fmt.Fprintf(w, "%-12s %-24s %s\n",
			FormatClock(rec.Timestamp),
			formatChannel(rec.Channel),
			formatMessage(rec.Message),
		)
	}

	countMsg := "line"
	if len(records) != 1 {
		countMsg = "lines"
	}
	fmt.Fprintf(w, "\n%d %s decoded\n", len(records), countMsg)

	return len(records)
}

// FormatJSONL writes records as line-delimited JSON (JSONL) to the provided writer.
// Each record is written as a single JSON object on its own line.
func FormatJSONL(w io.Writer, records []telemetry.Record) error {
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record to JSON: %w", err)
		}

		if _, err := fmt.Fprintf(w, "%s\n", string(data)); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// FormatCSV writes stream rows as CSV, one column per stream key.
// keys names the columns; rows whose field count differs are written as-is.
func FormatCSV(w io.Writer, keys []string, records []telemetry.Record) error {
	if len(keys) > 0 {
		if _, err := fmt.Fprintf(w, "clock,%s\n", strings.Join(keys, ",")); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
	}
	for _, rec := range records {
		if !rec.IsFlush() {
			continue
		}
		fields := strings.Fields(rec.Message)
		if _, err := fmt.Fprintf(w, "%d,%s\n", rec.Timestamp, strings.Join(fields, ",")); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	return nil
}

// FormatClock renders robot milliseconds as seconds with millisecond precision.
func FormatClock(ms uint32) string {
	return fmt.Sprintf("%d.%03ds", ms/1000, ms%1000)
}

// formatChannel truncates long channels for the table.
func formatChannel(channel string) string {
	if len(channel) > 24 {
		return channel[:21] + "..."
	}
	return channel
}

// formatMessage truncates the message to 60 characters. Empty messages return "-".
func formatMessage(msg string) string {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return "-"
	}
	if len(msg) > 60 {
		return msg[:57] + "..."
	}
	return msg
}
