package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/ajitpratap0/mcp-userhub/internal/users"
	"github.com/ajitpratap0/mcp-userhub/pkg/config"
	"github.com/ajitpratap0/mcp-userhub/pkg/logging"
	"github.com/ajitpratap0/mcp-userhub/pkg/observability"
	"github.com/ajitpratap0/mcp-userhub/pkg/server"
	"github.com/ajitpratap0/mcp-userhub/pkg/store"
	"github.com/ajitpratap0/mcp-userhub/pkg/transport"
)

const serviceName = "userhub-provider"

// version is set at build time with -ldflags "-X ...cmd.version=...".
var version = "dev"

// RootCmd serves the users provider on stdin and stdout.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   serviceName,
		Short: "Serve user tools, resources and prompts over stdio.",
		Long: `userhub-provider speaks JSON-RPC on stdin and stdout and is normally
spawned by userhub-host. Logs go to stderr.

Settings come from the environment (STORE_BACKEND, STORE_PATH, REDIS_ADDR,
METRICS_ADDR, LOG_LEVEL, ...); flags override them.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadProvider()
			if err != nil {
				return err
			}
			if err := applyFlags(cmd, cfg); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("store", "", "record store backend: file, memory or redis")
	cmd.Flags().String("store-path", "", "users file for the file backend")
	cmd.Flags().String("redis-addr", "", "Redis address for the redis backend")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return cmd
}

func applyFlags(cmd *cobra.Command, cfg *config.Provider) error {
	flags := map[string]*string{
		"store":        &cfg.Store.Backend,
		"store-path":   &cfg.Store.Path,
		"redis-addr":   &cfg.Store.RedisAddr,
		"metrics-addr": &cfg.MetricsAddr,
	}
	for name, target := range flags {
		if cmd.Flags().Changed(name) {
			value, err := cmd.Flags().GetString(name)
			if err != nil {
				return err
			}
			*target = value
		}
	}
	return cfg.Validate()
}

func run(parent context.Context, cfg *config.Provider) (err error) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// stdout carries the protocol.
	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		return err
	}
	metrics, err := observability.NewMetrics(observability.MetricsConfig{Subsystem: "provider"})
	if err != nil {
		return err
	}
	tracer, err := cfg.Tracing.NewProvider(serviceName, version)
	if err != nil {
		return err
	}

	records, err := cfg.Store.Open(ctx)
	if err != nil {
		_ = tracer.Shutdown(context.Background())
		return err
	}
	records = store.Instrument(records, metrics, logger)

	defer func() {
		var result *multierror.Error
		if err != nil {
			result = multierror.Append(result, err)
		}
		if closeErr := records.Close(); closeErr != nil {
			result = multierror.Append(result, fmt.Errorf("closing store: %w", closeErr))
		}
		if shutdownErr := tracer.Shutdown(context.Background()); shutdownErr != nil {
			result = multierror.Append(result, fmt.Errorf("flushing traces: %w", shutdownErr))
		}
		err = result.ErrorOrNil()
	}()

	srv := server.New(
		server.WithName(serviceName),
		server.WithVersion(version),
		server.WithInstructions(users.Instructions),
		server.WithLogger(logger),
		server.WithMetrics(metrics),
		server.WithTracing(tracer),
		server.WithRequestTimeout(cfg.RequestTimeout),
	)
	if err := users.Register(srv, records, logger); err != nil {
		return err
	}

	serveCtx, cancelServe := context.WithCancel(ctx)
	defer cancelServe()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(serveCtx, cfg.MetricsAddr); err != nil {
				logger.WithError(err).Error("metrics endpoint stopped")
			}
		}()
		logger.Info("serving metrics", logging.String("addr", cfg.MetricsAddr))
	}

	err = srv.Serve(ctx, transport.NewStdio())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
