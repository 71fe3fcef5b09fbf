package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/pigeon/internal/bridge"
	"github.com/dyluth/pigeon/internal/config"
	"github.com/dyluth/pigeon/internal/dashboard"
	"github.com/dyluth/pigeon/internal/link"
	"github.com/dyluth/pigeon/internal/printer"
	"github.com/dyluth/pigeon/internal/sim"
	"github.com/dyluth/pigeon/internal/telemetry"
	"github.com/dyluth/pigeon/pkg/pigeon"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	serveSim       bool
	serveRedis     bool
	serveDashboard bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a registry on the link",
	Long: `Run a pigeon registry on the configured link (stdin/stdout by default).

Input lines of the form "portal.key value" are dispatched to entries and
telemetry lines are written back. The control portal "pigeon" is always
present: "pigeon.enable <portal>", "pigeon.disable <portal>" and
"pigeon.portals".

Optional surfaces:
  --sim        register a simulated flywheel portal
  --redis      publish telemetry to Redis and accept commands from it
  --dashboard  serve the websocket dashboard, /healthz and /metrics

Examples:
  # Try the registry interactively
  pigeon serve --sim
  flywheel.target 1500
  pigeon.enable flywheel

  # Expose the simulator to the dashboard and Redis
  pigeon serve --sim --redis --dashboard`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveSim, "sim", false, "Register the simulated flywheel portal")
	serveCmd.Flags().BoolVar(&serveRedis, "redis", false, "Publish telemetry to Redis and accept commands from it")
	serveCmd.Flags().BoolVar(&serveDashboard, "dashboard", false, "Serve the websocket dashboard")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger().WithName("serve")

	ctx, cancel := signalContext()
	defer cancel()

	port, err := openLink(cfg)
	if err != nil {
		return err
	}
	defer port.Close()

	promReg := prometheus.NewRegistry()
	readers := []pigeon.LineReader{pigeon.NewReader(port)}
	writers := []pigeon.LineWriter{pigeon.NewWriter(port)}
	var sinks []bridge.Sink

	var client *bridge.Client
	if serveRedis {
		client, err = connectRedis(ctx, cfg)
		if err != nil {
			return err
		}
		defer client.Close()

		sub, err := client.SubscribeCommands(ctx)
		if err != nil {
			return fmt.Errorf("failed to subscribe to commands: %w", err)
		}
		defer sub.Close()
		go bridge.LogErrors(log, sub.Errors())

		sinks = append(sinks, client)
		readers = append(readers, bridge.NewCommandReader(sub))
	}

	if serveDashboard {
		hub, stop, err := startDashboard(cfg, client, promReg, log)
		if err != nil {
			return err
		}
		defer stop()

		sinks = append(sinks, hub)
		readers = append(readers, bridge.NewChanReader(hub.Commands()))
	}

	if len(sinks) > 0 {
		fanout := bridge.NewFanout(telemetry.NewDecoder(), bridge.NewMetrics(promReg), sinks...)
		writers = append(writers, fanout)
	}

	var in pigeon.LineReader = readers[0]
	if len(readers) > 1 {
		in = bridge.Merge(ctx, func(err error) { log.Error(err, "input read failed") }, readers...)
	}

	reg := pigeon.New(in, bridge.MultiWriter(writers...), pigeon.SinceClock(time.Now()),
		pigeon.WithLogger(log),
		pigeon.WithMetrics(pigeon.NewMetrics(promReg)),
		pigeon.WithPoolSize(cfg.Registry.PoolSize),
		pigeon.WithMessageDelay(*cfg.Registry.MessageDelay),
		pigeon.WithContext(ctx),
	)

	if serveSim {
		flywheel, err := sim.NewFlywheel(reg, cfg.Sim.Portal)
		if err != nil {
			return fmt.Errorf("failed to register simulator: %w", err)
		}
		go flywheel.Run(ctx, cfg.Sim.Period)
	}

	enablePortals(reg, cfg.Registry.Enable, log)
	reg.MarkReady()
	log.Info("registry running", "link", port.Name(), "portals", reg.Portals())

	select {
	case <-ctx.Done():
	case <-reg.Done():
	}
	return nil
}

// openLink opens the configured device, printing a helpful error when it is missing.
func openLink(cfg *config.Config) (link.Port, error) {
	port, err := link.Open(cfg.Link.Device, cfg.Link.Baud)
	if err != nil {
		return nil, printer.ErrorWithContext(
			"failed to open link",
			err.Error(),
			map[string]string{"Device": cfg.Link.Device, "Baud": fmt.Sprint(cfg.Link.Baud)},
			[]string{
				"List the serial ports on this host:\n  pigeon ports",
				fmt.Sprintf("Use stdin/stdout instead:\n  %s=- pigeon serve", config.EnvDevice),
			},
		)
	}
	return port, nil
}

// connectRedis connects to the configured Redis and verifies it answers.
func connectRedis(ctx context.Context, cfg *config.Config) (*bridge.Client, error) {
	client, err := bridge.NewClientFromURL(cfg.Bridge.RedisURL, cfg.Bridge.Instance)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", cfg.Bridge.RedisURL),
			map[string]string{"Instance": cfg.Bridge.Instance},
			[]string{
				"Start a local Redis:\n  docker run -d -p 6379:6379 redis:7-alpine",
				fmt.Sprintf("Point pigeon at another server:\n  %s=redis://host:6379 pigeon ...", config.EnvRedisURL),
			},
		)
	}
	return client, nil
}

// startDashboard starts the dashboard server. client may be nil when Redis is not in use.
// The returned stop function shuts the server down.
func startDashboard(cfg *config.Config, client *bridge.Client, promReg *prometheus.Registry, log logr.Logger) (*dashboard.Hub, func(), error) {
	hub := dashboard.NewHub(log.WithName("dashboard"), dashboard.NewMetrics(promReg))

	var pinger dashboard.Pinger
	if client != nil {
		pinger = client
	}
	server := dashboard.NewServer(cfg.Bridge.DashboardAddr, hub, pinger, promReg, log.WithName("dashboard"))
	if err := server.Start(); err != nil {
		return nil, nil, printer.Error(
			"failed to start dashboard",
			err.Error(),
			[]string{"Pick a free address with bridge.dashboard_addr in pigeon.yml"},
		)
	}

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error(err, "dashboard shutdown failed")
		}
	}
	return hub, stop, nil
}

// enablePortals enables each configured portal. Unknown ids are logged and skipped; stdout may
// be the link, so nothing is printed there.
func enablePortals(reg *pigeon.Registry, ids []string, log logr.Logger) {
	for _, id := range ids {
		p, ok := reg.Portal(id)
		if !ok {
			log.Info("portal in registry.enable is not registered", "portal", id)
			continue
		}
		p.Enable()
	}
}
