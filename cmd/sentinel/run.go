package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/sentinel/pkg/analyzer"
	"github.com/cuemby/sentinel/pkg/api"
	"github.com/cuemby/sentinel/pkg/config"
	"github.com/cuemby/sentinel/pkg/events"
	"github.com/cuemby/sentinel/pkg/failover"
	"github.com/cuemby/sentinel/pkg/health"
	"github.com/cuemby/sentinel/pkg/log"
	"github.com/cuemby/sentinel/pkg/metrics"
	"github.com/cuemby/sentinel/pkg/notify"
	"github.com/cuemby/sentinel/pkg/ratelimit"
	"github.com/cuemby/sentinel/pkg/reconciler"
	"github.com/cuemby/sentinel/pkg/runtime"
	"github.com/cuemby/sentinel/pkg/storage"
	"github.com/cuemby/sentinel/pkg/supervisor"
	"github.com/cuemby/sentinel/pkg/types"
	"github.com/spf13/cobra"
)

const journalCapacity = 200

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start all control loops",
	Long: `Start the failover machine, reconciler and log analyzers, plus the
HTTP status server and, if configured, the gRPC health service.

Runs until SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return run(ctx, cfg)
	},
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := log.WithComponent("main")
	metrics.SetVersion(Version)

	// Persistence
	var store *storage.BoltStore
	if cfg.Storage.DataDir != "" {
		s, err := storage.NewBoltStore(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer s.Close()
		store = s
	}

	// Runtime
	rt, err := runtime.New(cfg.Runtime)
	if err != nil {
		metrics.RegisterComponent("runtime", false, err.Error())
		return fmt.Errorf("failed to connect to container runtime: %w", err)
	}
	defer rt.Close()
	metrics.RegisterComponent("runtime", true, "")

	// Events
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	journal := events.NewJournal(journalCapacity)
	journalSub := broker.Subscribe(journalCapacity)
	notifySub := broker.Subscribe(cfg.Notify.QueueSize)

	var sender notify.Sender = notify.NewLogSender()
	if cfg.Notify.WebhookURL != "" {
		sender = notify.NewWebhookSender(cfg.Notify.WebhookURL, cfg.Notify.Timeout)
	}
	notifier := notify.NewNotifier(sender, cfg.Notify.Timeout)

	// Shared restart budget
	limiterOpts := []ratelimit.Option{}
	if store != nil {
		limiterOpts = append(limiterOpts, ratelimit.WithStore(store))
	}
	limiter := ratelimit.New(cfg.Reconciler.MaxRestartsPerHour, limiterOpts...)

	// Failover
	machineOpts := []failover.Option{failover.WithPublisher(broker)}
	if store != nil {
		machineOpts = append(machineOpts, failover.WithStore(store))
	}
	machine, err := failover.NewMachine(cfg.PriorityList(), health.NewProber(rt, cfg.Failover.ProbeTimeout), machineOpts...)
	if err != nil {
		return fmt.Errorf("failed to create failover machine: %w", err)
	}
	metrics.RegisterComponent("failover", true, "")
	machine.OnTick(reportFailoverHealth(machine.Targets()[0].Name))

	grpcHealth := api.NewGRPCHealth(machine.Targets())
	machine.OnTick(grpcHealth.Follow(machine))

	// Reconciler
	recon := reconciler.NewReconciler(rt, health.NewProber(rt, cfg.Reconciler.ProbeTimeout), limiter, broker, reconciler.Config{
		Interval:         cfg.Reconciler.Interval,
		ManageNetwork:    cfg.Reconciler.ManageNetwork,
		Network:          cfg.Reconciler.Network,
		Containers:       cfg.Reconciler.Containers,
		DegradedAfter:    cfg.Reconciler.DegradedAfter,
		OperationTimeout: cfg.Reconciler.OperationTimeout,
		RestartTimeout:   cfg.Reconciler.RestartTimeout,
	})

	// Log analysis
	an := analyzer.New(rt, limiter, broker, analyzer.Config{
		WarningRate:      cfg.Analyzer.WarningRate,
		CriticalRate:     cfg.Analyzer.CriticalRate,
		Window:           cfg.Analyzer.Window,
		BurstWindow:      cfg.Analyzer.BurstWindow,
		Cooldown:         cfg.Analyzer.Cooldown,
		HistoryCapacity:  cfg.Analyzer.HistoryCapacity,
		ReconnectBackoff: cfg.Analyzer.ReconnectBackoff,
		IdleTimeout:      cfg.Analyzer.IdleTimeout,
		OpenTimeout:      cfg.Analyzer.OpenTimeout,
		DegradedAfter:    cfg.Analyzer.DegradedAfter,
	})

	status := api.NewHealthServer(api.Sources{
		Failover: machine,
		Limiter:  limiter,
		Analyzer: an,
		Events:   journal,
	}).WithMiddleware(api.NewMiddleware(cfg.Server.AllowedNetworks, cfg.Server.RateLimit, cfg.Server.RateBurst))

	sup := supervisor.New(ctx)
	sup.Go("journal", func(ctx context.Context) error { return journal.Follow(ctx, journalSub) })
	sup.Go("notifier", func(ctx context.Context) error { return notifier.Run(ctx, notifySub) })
	sup.Go("failover", func(ctx context.Context) error { return machine.Run(ctx, cfg.Failover.Interval) })
	sup.Go("reconciler", recon.Run)
	sup.Go("metrics", metrics.NewCollector(limiter, cfg.Reconciler.Containers, 15*time.Second).Run)

	if cfg.Analyzer.Enabled {
		for _, name := range cfg.AnalyzedContainers() {
			name := name
			sup.Go("analyzer/"+name, func(ctx context.Context) error { return an.Watch(ctx, name) })
		}
	}

	if cfg.Server.HTTPAddress != "" {
		sup.GoCritical("http", func(ctx context.Context) error {
			return status.Serve(ctx, cfg.Server.HTTPAddress, cfg.Server.GracefulTimeout)
		})
	}
	if cfg.Server.GRPCAddress != "" {
		sup.GoCritical("grpc", func(ctx context.Context) error {
			return grpcHealth.Serve(ctx, cfg.Server.GRPCAddress)
		})
	}

	logger.Info().
		Str("version", Version).
		Str("active", machine.Active().Name).
		Strs("tasks", sup.Names()).
		Msg("Sentinel started")

	<-sup.Context().Done()
	logger.Info().Msg("Shutting down")
	sup.Stop()

	err = sup.Wait()
	if err != nil {
		logger.Error().Err(err).Msg("Stopped with error")
		return err
	}
	logger.Info().Msg("Shutdown complete")
	return nil
}

// reportFailoverHealth marks failover degraded while serving from anything
// but the preferred resolver, and unhealthy when nothing answers.
func reportFailoverHealth(preferred string) func(types.FailoverState) {
	return func(state types.FailoverState) {
		switch {
		case state.NoTargetsAvailable:
			metrics.SetComponent("failover", metrics.StateUnhealthy, "no DNS targets available")
		case state.Active.Name != preferred:
			metrics.SetComponent("failover", metrics.StateDegraded, "serving from "+state.Active.Name)
		default:
			metrics.SetComponent("failover", metrics.StateHealthy, "")
		}
	}
}
