package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/ctxlog"
	"github.com/urfave/cli/v3"

	"workforce/internal/platform/config"
	"workforce/internal/platform/db"
)

func cmdMigrate(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending SQL migrations",
		Flags: databaseFlags(cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			pool, err := db.Connect(ctx, *cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
				return err
			}
			ctxlog.From(ctx).Info("migrations applied", slog.String("dir", cfg.MigrationsDir))
			return nil
		},
	}
}

func cmdSeed(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Create the default tenant, roles, admin user and requirement catalog",
		Flags: joinFlags(databaseFlags(cfg), seedFlags(cfg)),
		Action: func(ctx context.Context, c *cli.Command) error {
			pool, err := db.Connect(ctx, *cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.Seed(ctx, pool, *cfg); err != nil {
				return err
			}
			ctxlog.From(ctx).Info("seed complete", slog.String("tenant", cfg.SeedTenantName))
			return nil
		},
	}
}
