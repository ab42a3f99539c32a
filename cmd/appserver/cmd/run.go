package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/appserver"
	"github.com/GoCodeAlone/appserver/config"
	"github.com/GoCodeAlone/appserver/health"
)

var errContainerNotStarted = errors.New("container not started")

// RunOptions are the inputs of Run.
type RunOptions struct {
	ConfigPath string
	Watch      bool
}

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	var opts RunOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Deploy and run the configured containers",
		Long: `Load the configuration file, deploy one container per entry and run
them until SIGINT or SIGTERM. With --watch, edits to the file reconfigure
the affected containers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Run(ctx, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "appserver.yaml", "Configuration file (yaml, toml or json)")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Reconfigure containers when the configuration file changes")

	return cmd
}

// Run deploys the configured containers and blocks until ctx is done. It
// returns the joined container failures, if any.
func Run(ctx context.Context, opts RunOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	logger, err := appserver.NewZapLoggerFromConfig(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ic, err := newInitialContext()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := appserver.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	srv := appserver.NewServer(ic,
		appserver.WithServerName(cfg.Name),
		appserver.WithServerLogger(logger),
		appserver.WithMaxWorkers(cfg.Workers),
		appserver.WithMetrics(metrics),
	)
	_ = srv.RegisterObserver(appserver.NewFunctionalObserver("event-log", func(_ context.Context, event cloudevents.Event) error {
		logger.Debug("Lifecycle event", "type", event.Type(), "id", event.ID())
		return nil
	}))

	readiness := health.NewAggregator(0)
	for _, c := range cfg.Containers {
		if err := deploy(srv, readiness, c); err != nil {
			return err
		}
	}

	var metricsDone <-chan struct{}
	if cfg.MetricsAddr != "" {
		if metricsDone, err = serveMetrics(ctx, cfg.MetricsAddr, reg, readiness, logger); err != nil {
			return fmt.Errorf("failed to serve metrics on %s: %w", cfg.MetricsAddr, err)
		}
	}

	if err := srv.Start(ctx); err != nil {
		return err
	}

	current := func() *config.ServerConfig { return cfg }
	if opts.Watch {
		watcher, err := config.NewWatcher(opts.ConfigPath, cfg, config.WithWatcherLogger(logger))
		if err != nil {
			return err
		}
		defer watcher.Stop()
		watcher.OnChange(func(prev, next *config.ServerConfig) {
			applyChanges(srv, readiness, config.Compare(prev, next), logger)
		})
		current = watcher.Config
	}

	<-ctx.Done()
	logger.Info("Shutting down", "server", srv.Name(),
		"containers", len(srv.Containers()), "configured", len(current().Containers))

	err = srv.Wait()
	if metricsDone != nil {
		<-metricsDone
	}
	return err
}

// deploy adds the container to srv and registers its readiness check.
func deploy(srv *appserver.Server, readiness *health.Aggregator, c config.ContainerConfig) error {
	container, err := srv.Deploy(c.Name, c.Tree(), c.AppDescriptors())
	if err != nil {
		return err
	}
	return readiness.Register("container:"+c.Name, func(context.Context) error {
		if !container.IsStarted() {
			return errContainerNotStarted
		}
		return nil
	})
}

// applyChanges reconfigures changed containers and deploys new ones. Removed
// containers keep running until restart.
func applyChanges(srv *appserver.Server, readiness *health.Aggregator, d config.Diff, logger appserver.Logger) {
	for _, c := range d.Changed {
		if err := srv.Reconfigure(c.Name, c.Tree()); err != nil {
			logger.Error("Failed to reconfigure container", "container", c.Name, "error", err)
			continue
		}
		if container, err := srv.Container(c.Name); err == nil {
			container.SetApplications(c.AppDescriptors())
		}
	}
	for _, c := range d.Added {
		if err := deploy(srv, readiness, c); err != nil {
			logger.Error("Failed to deploy container", "container", c.Name, "error", err)
		}
	}
	for _, name := range d.Removed {
		logger.Warn("Container removed from configuration; it keeps running until restart", "container", name)
	}
}
