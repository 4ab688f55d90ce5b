package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oriys/courier/internal/config"
	"github.com/oriys/courier/internal/logging"
	"github.com/oriys/courier/internal/metrics"
	"github.com/oriys/courier/internal/observability"
)

var (
	configPath string
	logLevel   string
	logFormat  string
	envName    string
	baseURL    string

	cfg *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "courier",
		Short:         "Courier - expiring key/value store and API envelope client",
		Long:          "A CLI around a TTL key/value store and a client that interprets {code, msg, data} API envelopes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if err := pushMetrics(context.Background(), cmd.Name()); err != nil {
				logging.Op().Warn("metrics push failed", "error", err)
			}
			logging.Calls().Close()
			return observability.Shutdown(context.Background())
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&envName, "env", "", "Environment name (production, test, local)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "API base URL, overrides the environment")

	rootCmd.AddCommand(
		storeCmd(),
		callCmd(),
		menuCmd(),
		usersCmd(),
		registerCmd(),
		logoutCmd(),
		toolsCmd(),
		serveMetricsCmd(),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(ctx context.Context) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	if logFormat != "" {
		c.Log.Format = logFormat
	}
	if envName != "" {
		c.Environment = envName
	}
	if baseURL != "" {
		c.Client.BaseURL = baseURL
	}
	cfg = c

	logging.InitStructured(cfg.Log.Format, cfg.Log.Level)
	if cfg.Log.CallLog != "" {
		if err := logging.Calls().SetOutput(cfg.Log.CallLog); err != nil {
			return fmt.Errorf("open call log: %w", err)
		}
	}

	metrics.InitPrometheus(cfg.Metrics.Namespace, nil)

	if err := observability.Init(ctx, observability.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Exporter:    "otlp-http",
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		SampleRate:  cfg.Telemetry.SampleRate,
	}); err != nil {
		logging.Op().Warn("tracing disabled", "error", err)
	}
	return nil
}
