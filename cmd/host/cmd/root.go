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

	"github.com/ajitpratap0/mcp-userhub/internal/hostui"
	"github.com/ajitpratap0/mcp-userhub/pkg/agent"
	"github.com/ajitpratap0/mcp-userhub/pkg/client"
	"github.com/ajitpratap0/mcp-userhub/pkg/config"
	"github.com/ajitpratap0/mcp-userhub/pkg/llm"
	"github.com/ajitpratap0/mcp-userhub/pkg/logging"
	"github.com/ajitpratap0/mcp-userhub/pkg/observability"
)

const serviceName = "userhub-host"

var version = "dev"

// RootCmd starts the provider, discovers it and runs the interactive menu.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   serviceName + " [-- provider args...]",
		Short: "Interactive host for a userhub provider.",
		Long: `userhub-host spawns the provider, lists its tools, resources and prompts
and lets you call them directly or through a Gemini-backed agent.

GEMINI_API_KEY must be set. Arguments after -- are passed to the provider.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadHost()
			if err != nil {
				return err
			}
			if err := applyFlags(cmd, cfg, args); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("provider", "", "provider command to spawn")
	cmd.Flags().String("model", "", "Gemini model name")
	cmd.Flags().Int("max-iterations", 0, "agent tool rounds per query")
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

func applyFlags(cmd *cobra.Command, cfg *config.Host, args []string) error {
	flags := cmd.Flags()
	if flags.Changed("provider") {
		cfg.ProviderCommand, _ = flags.GetString("provider")
	}
	if flags.Changed("model") {
		cfg.GeminiModel, _ = flags.GetString("model")
	}
	if flags.Changed("max-iterations") {
		cfg.AgentMaxIterations, _ = flags.GetInt("max-iterations")
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
	if len(args) > 0 {
		cfg.ProviderArgs = args
	}
	return cfg.Validate()
}

func run(parent context.Context, cfg *config.Host) (err error) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM)
	defer stop()

	// stdout belongs to the menu.
	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		return err
	}
	metrics, err := observability.NewMetrics(observability.MetricsConfig{Subsystem: "host"})
	if err != nil {
		return err
	}
	tracer, err := cfg.Tracing.NewProvider(serviceName, version)
	if err != nil {
		return err
	}

	var result *multierror.Error
	defer func() {
		if err != nil {
			result = multierror.Append(result, err)
		}
		if shutdownErr := tracer.Shutdown(context.Background()); shutdownErr != nil {
			result = multierror.Append(result, fmt.Errorf("flushing traces: %w", shutdownErr))
		}
		err = result.ErrorOrNil()
	}()

	model, err := llm.NewGemini(ctx, llm.GeminiConfig{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return err
	}

	session, err := client.ConnectProcess(ctx, cfg.ProviderCommand, cfg.ProviderArgs,
		client.WithName(serviceName),
		client.WithVersion(version),
		client.WithLogger(logger),
		client.WithMetrics(metrics),
		client.WithTracing(tracer),
		client.WithRequestTimeout(cfg.RequestTimeout),
		client.WithCompletionHandler(client.SamplingFromModel(model)),
	)
	if err != nil {
		return fmt.Errorf("starting provider %s: %w", cfg.ProviderCommand, err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			result = multierror.Append(result, fmt.Errorf("closing session: %w", closeErr))
		}
	}()

	snapshot, err := session.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discovering provider capabilities: %w", err)
	}

	if cfg.MetricsAddr != "" {
		metricsCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := metrics.Serve(metricsCtx, cfg.MetricsAddr); err != nil {
				logger.WithError(err).Error("metrics endpoint stopped")
			}
		}()
	}

	if info := session.ServerInfo(); info != nil {
		fmt.Printf("Connected to %s %s\n", info.ServerInfo.Name, info.ServerInfo.Version)
		if info.Instructions != "" {
			fmt.Println(info.Instructions)
		}
	}

	app := &hostui.App{
		Session:  session,
		Snapshot: snapshot,
		Model:    model,
		UI:       &hostui.Terminal{},
		Out:      os.Stdout,
		Logger:   logger,
		AgentOptions: []agent.Option{
			agent.WithMaxIterations(cfg.AgentMaxIterations),
			agent.WithLogger(logger),
			agent.WithTracing(tracer),
		},
	}
	err = app.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		logger.WithError(err).Error("host stopped", logging.String("provider", cfg.ProviderCommand))
	}
	return err
}
