package cli

import (
	"github.com/urfave/cli/v3"

	"workforce/internal/platform/config"
)

// Flag defaults come from config.Load, so the environment and the command line agree.

func loggerFlags(cfg *config.Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Category:    "Logging",
			Value:       cfg.LogLevel,
			Sources:     cli.EnvVars("LOG_LEVEL"),
			Destination: &cfg.LogLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json, auto)",
			Category:    "Logging",
			Value:       cfg.LogFormat,
			Sources:     cli.EnvVars("LOG_FORMAT"),
			Destination: &cfg.LogFormat,
		},
	}
}

func databaseFlags(cfg *config.Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "database-url",
			Usage:       "Postgres connection string",
			Category:    "Database",
			Value:       cfg.DatabaseURL,
			Sources:     cli.EnvVars("DATABASE_URL"),
			Destination: &cfg.DatabaseURL,
		},
		&cli.StringFlag{
			Name:        "migrations-dir",
			Usage:       "Directory holding the SQL migrations",
			Category:    "Database",
			Value:       cfg.MigrationsDir,
			Sources:     cli.EnvVars("MIGRATIONS_DIR"),
			Destination: &cfg.MigrationsDir,
		},
		&cli.StringFlag{
			Name:        "env",
			Usage:       "Deployment environment (development, production)",
			Category:    "Database",
			Value:       cfg.Environment,
			Sources:     cli.EnvVars("APP_ENV"),
			Destination: &cfg.Environment,
		},
	}
}

func seedFlags(cfg *config.Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "seed-tenant-name",
			Category:    "Seed",
			Value:       cfg.SeedTenantName,
			Sources:     cli.EnvVars("SEED_TENANT_NAME"),
			Destination: &cfg.SeedTenantName,
		},
		&cli.StringFlag{
			Name:        "seed-admin-email",
			Category:    "Seed",
			Value:       cfg.SeedAdminEmail,
			Sources:     cli.EnvVars("SEED_ADMIN_EMAIL"),
			Destination: &cfg.SeedAdminEmail,
		},
		&cli.StringFlag{
			Name:        "seed-admin-password",
			Category:    "Seed",
			Value:       cfg.SeedAdminPassword,
			Sources:     cli.EnvVars("SEED_ADMIN_PASSWORD"),
			Destination: &cfg.SeedAdminPassword,
		},
		&cli.StringFlag{
			Name:        "compliance-catalog-file",
			Usage:       "YAML file with requirement definitions to seed",
			Category:    "Seed",
			Value:       cfg.ComplianceCatalogFile,
			Sources:     cli.EnvVars("COMPLIANCE_CATALOG_FILE"),
			Destination: &cfg.ComplianceCatalogFile,
		},
	}
}

func complianceFlags(cfg *config.Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "org-timezone",
			Usage:       "IANA timezone that defines the organization's calendar day",
			Category:    "Compliance",
			Value:       cfg.OrgTimezone,
			Sources:     cli.EnvVars("ORG_TIMEZONE"),
			Destination: &cfg.OrgTimezone,
		},
		&cli.IntFlag{
			Name:        "compliance-warning-days",
			Usage:       "Default warning window in days",
			Category:    "Compliance",
			Value:       cfg.ComplianceWarningDays,
			Sources:     cli.EnvVars("COMPLIANCE_WARNING_DAYS"),
			Destination: &cfg.ComplianceWarningDays,
		},
		&cli.IntFlag{
			Name:        "compliance-top-n",
			Usage:       "Number of entries in top-risk rankings",
			Category:    "Compliance",
			Value:       cfg.ComplianceTopN,
			Sources:     cli.EnvVars("COMPLIANCE_TOP_N"),
			Destination: &cfg.ComplianceTopN,
		},
	}
}

func serverFlags(cfg *config.Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP listen address",
			Category:    "Server",
			Value:       cfg.Addr,
			Sources:     cli.EnvVars("APP_ADDR"),
			Destination: &cfg.Addr,
		},
		&cli.StringFlag{
			Name:        "jwt-secret",
			Category:    "Server",
			Value:       cfg.JWTSecret,
			Sources:     cli.EnvVars("JWT_SECRET"),
			Destination: &cfg.JWTSecret,
		},
		&cli.StringFlag{
			Name:        "data-encryption-key",
			Usage:       "Key for sealing document numbers at rest",
			Category:    "Server",
			Value:       cfg.DataEncryptionKey,
			Sources:     cli.EnvVars("DATA_ENCRYPTION_KEY"),
			Destination: &cfg.DataEncryptionKey,
		},
		&cli.BoolFlag{
			Name:        "run-migrations",
			Category:    "Server",
			Value:       cfg.RunMigrations,
			Sources:     cli.EnvVars("RUN_MIGRATIONS"),
			Destination: &cfg.RunMigrations,
		},
		&cli.BoolFlag{
			Name:        "run-seed",
			Category:    "Server",
			Value:       cfg.RunSeed,
			Sources:     cli.EnvVars("RUN_SEED"),
			Destination: &cfg.RunSeed,
		},
		&cli.DurationFlag{
			Name:        "sweep-interval",
			Usage:       "Interval of the compliance sweep job",
			Category:    "Server",
			Value:       cfg.SweepInterval,
			Sources:     cli.EnvVars("SWEEP_INTERVAL"),
			Destination: &cfg.SweepInterval,
		},
		&cli.BoolFlag{
			Name:        "metrics",
			Usage:       "Expose /metrics",
			Category:    "Server",
			Value:       cfg.MetricsEnabled,
			Sources:     cli.EnvVars("METRICS_ENABLED"),
			Destination: &cfg.MetricsEnabled,
		},
		&cli.StringFlag{
			Name:        "slack-webhook-url",
			Usage:       "Incoming webhook for compliance digests",
			Category:    "Notifications",
			Value:       cfg.SlackWebhookURL,
			Sources:     cli.EnvVars("SLACK_WEBHOOK_URL"),
			Destination: &cfg.SlackWebhookURL,
		},
		&cli.StringFlag{
			Name:        "email-from",
			Category:    "Notifications",
			Value:       cfg.EmailFrom,
			Sources:     cli.EnvVars("EMAIL_FROM"),
			Destination: &cfg.EmailFrom,
		},
	}
}
