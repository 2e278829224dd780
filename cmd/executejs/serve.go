package main

import (
	"github.com/GriffinCanCode/executejs/backend/internal/infrastructure/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(opts *options) *cobra.Command {
	var host, port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the execution HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if host != "" {
				cfg.Server.Host = host
			}
			if port != "" {
				cfg.Server.Port = port
			}

			engine, err := opts.newEngine(cfg)
			if err != nil {
				return err
			}
			defer engine.Close()
			engine.Logger.Info("Initializing executejs server",
				zap.String("registry", cfg.Registry.BaseURL),
				zap.Stringer("timeout", cfg.Execution.Timeout),
				zap.Int("history_size", cfg.Execution.HistorySize),
			)
			return server.NewServer(engine).Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (default from config)")
	cmd.Flags().StringVar(&port, "port", "", "listen port (default from config)")
	return cmd
}
