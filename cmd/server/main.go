package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dpshade/wakatime-mcp/internal/config"
	"github.com/dpshade/wakatime-mcp/internal/mcp"
	"github.com/dpshade/wakatime-mcp/internal/modules"
	"github.com/dpshade/wakatime-mcp/internal/modules/wakatime"
	"github.com/dpshade/wakatime-mcp/internal/observability"
	"github.com/dpshade/wakatime-mcp/pkg/wakatimeapi"
)

var (
	// Global flags
	configPath string
	logLevel   string

	// Set by PersistentPreRunE
	cfg     *config.Config
	logger  *zap.Logger
	loki    *observability.LokiClient
	metrics *observability.Metrics
)

// rootCmd serves MCP when run without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "wakatime-mcp",
	Short: "MCP server exposing WakaTime coding activity as tools",
	Long: `wakatime-mcp exposes the WakaTime API to AI agents as MCP tools:
coding stats, daily summaries, all-time totals, projects, durations and goals.

Configuration is read from --config (YAML), a .env file in the working
directory and the environment (WAKATIME_API_KEY, PORT, HOST, ...).

Run without arguments to start the server.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		loki.Flush()
	},
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")

	rootCmd.AddCommand(serveCmd, callCmd, tokenCmd, usageCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger and metrics.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	loki = observability.NewLoki(observability.LokiConfig{
		URL:     cfg.Logging.Loki.URL,
		User:    cfg.Logging.Loki.User,
		APIKey:  cfg.Logging.Loki.APIKey,
		AppName: cfg.Logging.AppEnv,
	})
	logger, err = observability.NewLogger(cfg.Logging.Level, loki)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	metrics, err = observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	return nil
}

// newRegistry builds the tool registry. A client that cannot be constructed
// (no API key) does not stop startup: every tool then answers with the
// authentication advisory.
func newRegistry(cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) (*modules.Registry, error) {
	var opts []wakatime.Option
	client, err := wakatimeapi.New(cfg.WakaTime.APIKey,
		wakatimeapi.WithBaseURL(cfg.WakaTime.BaseURL),
		wakatimeapi.WithTimeout(cfg.WakaTime.Timeout),
	)
	if err != nil {
		logger.Warn("WakaTime client unavailable, tools will report it", zap.Error(err))
		opts = append(opts, wakatime.WithClientError(err))
	}

	var api wakatime.API
	if client != nil {
		api = client
	}

	registry := modules.NewRegistry(
		modules.WithLogger(logger),
		modules.WithMetrics(metrics),
	)
	if err := registry.Register(wakatime.New(api, opts...)); err != nil {
		return nil, err
	}
	logger.Info("registered modules",
		zap.Strings("modules", registry.ListModules()),
		zap.Int("tools", len(registry.Tools())),
		zap.String("server_version", mcp.ServerVersion),
	)
	return registry, nil
}
