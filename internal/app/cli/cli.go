package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"workforce/internal/platform/config"
	"workforce/internal/platform/logging"
)

// Run runs the workforce command line.
func Run(ctx context.Context, args []string) error {
	cfg := config.Load()

	app := &cli.Command{
		Name:  "workforce",
		Usage: "Workforce compliance service",
		Flags: loggerFlags(&cfg),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			format, err := logging.ParseFormat(cfg.LogFormat)
			if err != nil {
				return nil, err
			}
			logger := logging.New(logging.ParseLevel(cfg.LogLevel), os.Stdout, format)
			slog.SetDefault(logger)
			return ctxlog.With(ctx, logger), nil
		},
		Commands: []*cli.Command{
			cmdServe(&cfg),
			cmdMigrate(&cfg),
			cmdSeed(&cfg),
			cmdEvaluate(&cfg),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		return goerr.Wrap(err, "CLI execution failed")
	}
	return nil
}

func joinFlags(flags ...[]cli.Flag) []cli.Flag {
	var result []cli.Flag
	for _, f := range flags {
		result = append(result, f...)
	}
	return result
}
