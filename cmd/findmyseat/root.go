package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/you/findmyseat/internal/app"
	"github.com/you/findmyseat/internal/config"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "findmyseat",
		Short: "Client session core for the FindMySeat ticketing API",
		Long: `findmyseat runs the client-side session core: login, registration with OTP
verification, password flows, the admin review session and organizer applications.
It serves a local intent gateway and talks to the remote REST API.

Environment Variables:
  FINDMYSEAT_CONFIG       Config file path (default: config/config.yml)
  FINDMYSEAT_API_URL      Remote API base URL
  FINDMYSEAT_STORAGE      memory, redis, sqlite or postgres
  FINDMYSEAT_STORAGE_DSN  DSN for sqlite or postgres storage`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (overrides FINDMYSEAT_CONFIG)")

	root.AddCommand(
		newServeCmd(&configPath),
		newCheckStorageCmd(&configPath),
		newVersionCmd(),
	)
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the intent gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			logger, err := app.NewLogger(cfg)
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return app.Run(ctx, cfg, logger)
		},
	}
}

func newCheckStorageCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check-storage",
		Short: "Verify the configured client state storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			return app.CheckStorage(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
