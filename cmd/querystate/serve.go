package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/querystate/internal/config"
	"github.com/vango-dev/querystate/internal/server"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		port       int
		host       string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the demo server",
		Long: `Start the demo server.

Open the page in a browser and edit the fields: every change is written
through the update queue and the URL follows.

Configuration is read from querystate.yaml or querystate.json in the
working directory, or from --config.

Examples:
  querystate serve
  querystate serve --port=9090
  querystate serve --config=deploy/querystate.yaml --log-level=debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			// Apply command-line overrides
			if port > 0 {
				cfg.Server.Port = port
			}
			if host != "" {
				cfg.Server.Host = host
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from config)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from config)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	return cmd
}

// loadConfig reads path, or the working directory's config file if there
// is one, or falls back to defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if config.Exists(".") {
		return config.Load(".")
	}
	return config.New(), nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	printBanner()
	success("Serving on http://%s", cfg.Address())
	if cfg.Metrics.Enabled {
		info("Metrics at http://%s%s", cfg.Address(), cfg.Metrics.Path)
	}
	if cfg.Path() != "" {
		info("Config from %s", cfg.Path())
	}

	return server.New(cfg, server.WithLogger(logger)).Run(ctx)
}
