package commands

import (
	"fmt"

	"github.com/dyluth/pigeon/internal/bridge"
	"github.com/dyluth/pigeon/internal/telemetry"
	"github.com/dyluth/pigeon/pkg/pigeon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	bridgeNoDashboard bool
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Relay a robot's link to Redis and the dashboard",
	Long: `Relay the robot on the configured link to Redis and the browser dashboard.

Every telemetry line the robot writes is decoded, stamped with this run's
session id and published to Redis (pub/sub, latest snapshot and history)
and to connected dashboard clients. Commands sent with 'pigeon send' or
typed into the dashboard are written back to the robot.

Examples:
  # Bridge the robot on a USB serial adapter
  PIGEON_DEVICE=/dev/ttyUSB0 pigeon bridge

  # Redis only, no dashboard
  pigeon bridge --no-dashboard`,
	RunE: runBridge,
}

func init() {
	bridgeCmd.Flags().BoolVar(&bridgeNoDashboard, "no-dashboard", false, "Do not serve the websocket dashboard")
	rootCmd.AddCommand(bridgeCmd)
}

func runBridge(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger().WithName("bridge")

	ctx, cancel := signalContext()
	defer cancel()

	port, err := openLink(cfg)
	if err != nil {
		return err
	}
	defer port.Close()

	client, err := connectRedis(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	promReg := prometheus.NewRegistry()
	metrics := bridge.NewMetrics(promReg)
	sinks := []bridge.Sink{client}

	sub, err := client.SubscribeCommands(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to commands: %w", err)
	}
	defer sub.Close()
	go bridge.LogErrors(log, sub.Errors())
	commands := []<-chan string{sub.Events()}

	if !bridgeNoDashboard {
		hub, stop, err := startDashboard(cfg, client, promReg, log)
		if err != nil {
			return err
		}
		defer stop()

		sinks = append(sinks, hub)
		commands = append(commands, hub.Commands())
	}

	decoder := telemetry.NewDecoder()
	fanout := bridge.NewFanout(decoder, metrics, sinks...)
	relay := bridge.NewRelay(pigeon.NewReader(port), pigeon.NewWriter(port), fanout, log, metrics)

	// A blocked serial read only returns once the port closes.
	go func() {
		<-ctx.Done()
		port.Close()
	}()

	log.Info("bridge running", "link", port.Name(), "instance", client.Instance(), "session", decoder.Session)
	if err := relay.Run(ctx, commands...); err != nil {
		return fmt.Errorf("bridge stopped: %w", err)
	}
	return nil
}
