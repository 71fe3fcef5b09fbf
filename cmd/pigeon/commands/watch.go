package commands

import (
	"fmt"

	"github.com/dyluth/pigeon/internal/filter"
	"github.com/dyluth/pigeon/internal/printer"
	"github.com/dyluth/pigeon/internal/watch"
	"github.com/spf13/cobra"
)

var (
	watchOutputFormat string
	watchChannel      string
	watchPortal       string
	watchHistory      int64
	watchLatest       bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live telemetry from Redis",
	Long: `Stream live telemetry published by a running bridge.

Output Formats:
  default - Colored lines: clock, channel, message
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Watch everything
  pigeon watch

  # Only the flywheel, starting with the last 100 lines
  pigeon watch --portal flywheel --history 100

  # Current value of every channel, then exit
  pigeon watch --latest

  # Export as JSON
  pigeon watch --output=json > telemetry.jsonl`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	watchCmd.Flags().StringVar(&watchChannel, "channel", "", "Filter by channel (glob pattern: \"flywheel.*\")")
	watchCmd.Flags().StringVar(&watchPortal, "portal", "", "Filter by portal (exact match)")
	watchCmd.Flags().Int64Var(&watchHistory, "history", 0, "Print this many stored lines before streaming")
	watchCmd.Flags().BoolVar(&watchLatest, "latest", false, "Print the latest value of every channel and exit")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	format, err := watch.ParseFormat(watchOutputFormat)
	if err != nil {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	client, err := connectRedis(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	opts := watch.Options{
		Format:   format,
		Criteria: &filter.Criteria{ChannelGlob: watchChannel, Portal: watchPortal},
		History:  watchHistory,
		Latest:   watchLatest,
	}
	return watch.Stream(ctx, cmd.OutOrStdout(), client, opts, newLogger().WithName("watch"))
}
