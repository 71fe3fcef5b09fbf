package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dyluth/pigeon/internal/bridge"
	"github.com/dyluth/pigeon/internal/printer"
	"github.com/dyluth/pigeon/internal/telemetry"
	"github.com/dyluth/pigeon/internal/watch"
	"github.com/dyluth/pigeon/pkg/pigeon"
	"github.com/spf13/cobra"
)

var (
	sendWait time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send PORTAL.KEY [VALUE...]",
	Short: "Send a command line to the robot through Redis",
	Long: `Send one console line to the robot through the running bridge.

The line is "portal.key" followed by an optional value. An empty value reads
the entry back (or triggers it, for actions).

Use --wait to print the robot's reply on the same channel.

Examples:
  # Set a flywheel target
  pigeon send flywheel.target 1500

  # Enable streaming for a portal
  pigeon send pigeon.enable flywheel

  # Read the stream order and print it
  pigeon send flywheel.keys --wait 2s`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().DurationVar(&sendWait, "wait", 0, "Wait this long for the reply and print it (0 = don't wait)")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	client, err := connectRedis(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	return sendLine(ctx, cmd.OutOrStdout(), client, strings.Join(args, " "), sendWait)
}

// sendLine publishes line and reports how many bridges received it. With wait > 0 it then
// prints the first record published on the command's channel.
func sendLine(ctx context.Context, w io.Writer, client *bridge.Client, line string, wait time.Duration) error {
	req, err := pigeon.ParseRequest(line)
	if err != nil {
		return printer.Error(
			"invalid command",
			err.Error(),
			[]string{"Commands look like:\n  pigeon send portal.key value"},
		)
	}

	// Subscribe first so a fast reply is not missed.
	var sub *bridge.Subscription[telemetry.Record]
	if wait > 0 {
		sub, err = client.SubscribeTelemetry(ctx)
		if err != nil {
			return fmt.Errorf("failed to subscribe to telemetry: %w", err)
		}
		defer sub.Close()
	}

	receivers, err := client.SendCommand(ctx, line)
	if err != nil {
		return fmt.Errorf("failed to send command: %w", err)
	}
	if receivers == 0 {
		printer.Warning("no bridge is listening on instance '%s'; command dropped\n", client.Instance())
		return nil
	}
	fmt.Fprintf(w, "sent %q to %d receiver(s)\n", line, receivers)

	if sub == nil {
		return nil
	}
	channel := pigeon.FormatRequest(req.Portal, req.Key, "")
	rec, err := watch.WaitForReply(ctx, sub.Events(), channel, wait)
	if err != nil {
		return printer.Error(
			"no reply",
			err.Error(),
			[]string{"Check the portal is enabled:\n  pigeon send pigeon.portals --wait 2s"},
		)
	}
	printer.Record(w, rec)
	return nil
}
