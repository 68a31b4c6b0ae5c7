package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"wastewise/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Address = addr
			}
			app, cleanup, err := server.BuildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			slog.Info("starting wastewise server",
				"environment", cfg.Environment,
				"address", cfg.Server.Address,
				"storage_adapter", cfg.Storage.Adapter)
			return app.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}
