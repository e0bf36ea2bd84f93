package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/fieldgate/fieldgate/internal/config"
	"github.com/fieldgate/fieldgate/internal/gateway"
	"github.com/fieldgate/fieldgate/internal/logging"
	"github.com/fieldgate/fieldgate/internal/module"
	"github.com/fieldgate/fieldgate/internal/module/goplugin"
	"github.com/fieldgate/fieldgate/internal/module/inproc"
	"github.com/fieldgate/fieldgate/internal/module/luamod"
	"github.com/fieldgate/fieldgate/internal/observability"
	"github.com/fieldgate/fieldgate/internal/xdg"
	"github.com/fieldgate/fieldgate/pkg/errutil"
)

// shutdownTimeout bounds graceful teardown of the observability server.
const shutdownTimeout = 10 * time.Second

// RunDeps holds injectable dependencies for the run command.
// If nil, default implementations are used.
type RunDeps struct {
	// Loaders overrides the loader table. Used by tests.
	Loaders gateway.Loaders
	// ObservabilityFactory overrides observability server construction.
	ObservabilityFactory func(addr string, rc observability.ReadinessChecker) *observability.Server
}

// NewRunCmd creates the run subcommand.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the gateway and its configured modules",
		Long: `Start the gateway: load the properties file, create every module in
order, subscribe them to the bus, and run until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGateway(cmd.Context(), configFile, cmd.Flags(), nil)
		},
	}

	cmd.Flags().String("log.format", config.DefaultLogFormat, "log format (json or text)")
	cmd.Flags().String("log.level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	cmd.Flags().String("metrics.addr", config.DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")

	return cmd
}

// loadProperties wraps config.Load so validate and run share one path. When
// no --config flag is given, the XDG location is tried.
func loadProperties(path string, flags *pflag.FlagSet) (*config.Config, error) {
	if path == "" {
		path = xdg.DefaultPropertiesPath()
	}
	return config.Load(path, flags)
}

// defaultLoaders builds the production loader table: subprocess binaries, Lua
// scripts, and the compiled-in factories.
func defaultLoaders(logger *slog.Logger) (gateway.Loaders, error) {
	registry := inproc.NewRegistry()
	if err := registerBuiltins(registry); err != nil {
		return nil, err
	}
	return gateway.Loaders{
		module.KindBinary:    goplugin.NewLoader(),
		module.KindLua:       luamod.NewLoader(logger),
		module.KindInProcess: registry,
	}, nil
}

// runGateway starts the gateway process and blocks until the context is
// canceled or a signal arrives.
func runGateway(ctx context.Context, cfgPath string, flags *pflag.FlagSet, deps *RunDeps) error {
	if deps == nil {
		deps = &RunDeps{}
	}
	if deps.ObservabilityFactory == nil {
		deps.ObservabilityFactory = observability.NewServer
	}

	cfg, err := loadProperties(cfgPath, flags)
	if err != nil {
		return err
	}

	logging.SetDefault("fieldgate", version, cfg.Log.Format, cfg.Log.Level)
	logger := slog.Default()

	descs, err := cfg.Descriptors()
	if err != nil {
		return err
	}

	loaders := deps.Loaders
	if loaders == nil {
		loaders, err = defaultLoaders(logger)
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The observability server serves readiness probes from its own
	// goroutines while modules are still being created, so the flag must be
	// safe for concurrent reads.
	var ready atomic.Bool

	var metrics *observability.Metrics
	var obsErr <-chan error
	if cfg.Metrics.Addr != "" {
		obs := deps.ObservabilityFactory(cfg.Metrics.Addr, ready.Load)
		metrics = obs.Metrics()
		obsErr, err = obs.Start()
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if stopErr := obs.Stop(sctx); stopErr != nil {
				errutil.LogError(logger, "stopping observability server", stopErr)
			}
		}()
	}

	opts := []gateway.Option{gateway.WithLogger(logger)}
	if metrics != nil {
		opts = append(opts,
			gateway.WithEventCallback(gateway.EventCreated, func(g *gateway.Gateway, e gateway.Event) {
				metrics.LifecycleEvents.WithLabelValues(e.String()).Inc()
				metrics.ModulesLoaded.Set(float64(len(g.Modules())))
			}),
			gateway.WithEventCallback(gateway.EventDestroyed, func(_ *gateway.Gateway, e gateway.Event) {
				metrics.LifecycleEvents.WithLabelValues(e.String()).Inc()
				metrics.ModulesLoaded.Set(0)
			}))
	}

	gw, err := gateway.New(ctx, descs, loaders, opts...)
	if err != nil {
		return fmt.Errorf("starting gateway: %w", err)
	}
	ready.Store(true)

	logger.Info("gateway running",
		"modules", gw.Modules(),
		"metrics_addr", cfg.Metrics.Addr)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case serveErr, ok := <-obsErr:
		if ok && serveErr != nil {
			errutil.LogError(logger, "observability server failed", serveErr)
		}
	}

	// Teardown uses a fresh context: the signal context is already canceled.
	if err := gw.Destroy(context.Background()); err != nil {
		errutil.LogError(logger, "gateway teardown reported errors", err)
		return err
	}

	logger.Info("gateway stopped")
	return nil
}
