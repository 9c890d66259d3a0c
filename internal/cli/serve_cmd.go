package cli

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/PreChart2DB/internal/tui"
	"github.com/JonMunkholm/PreChart2DB/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the browser UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			if addr == "" {
				addr = cfg.Server.Addr()
			}

			slog.Info("configuration loaded",
				"addr", addr,
				"database", a.cfg.Database.Conn().String(),
				"write_max_concurrent", cfg.Upload.MaxConcurrent,
				"rate_limit_enabled", cfg.Rate.Enabled,
			)

			server := web.NewServer(a.service, cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Background jobs stop with the signal context.
			go server.RunMaintenance(ctx)

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start(addr) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			slog.Info("shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()

			if st := a.service.Limiter().Status(); st.Active > 0 {
				slog.Info("waiting for database writes to complete", "active", st.Active)
			}
			if err := server.Shutdown(shutdownCtx); err != nil {
				slog.Error("shutdown error", "error", err)
				return err
			}
			return <-errCh
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: SERVER_HOST:SERVER_PORT)")
	return cmd
}

func newTUICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tui [FILE]",
		Short: "Run the terminal UI",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			return tui.Run(cmd.Context(), a.service, a.cfg, path)
		},
	}
}
