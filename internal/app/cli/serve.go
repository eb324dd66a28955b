package cli

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/m-mizutani/ctxlog"
	"github.com/urfave/cli/v3"

	"workforce/internal/app/server"
	"workforce/internal/platform/config"
)

func cmdServe(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start HTTP server and background jobs",
		Flags: joinFlags(serverFlags(cfg), databaseFlags(cfg), seedFlags(cfg), complianceFlags(cfg)),
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)
			logger.Info("Starting workforce server",
				slog.String("addr", cfg.Addr),
				slog.String("env", cfg.Environment),
				slog.String("timezone", cfg.OrgTimezone),
				slog.Int("warningDays", cfg.ComplianceWarningDays),
			)

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := server.New(ctx, *cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			return app.Serve(ctx)
		},
	}
}
