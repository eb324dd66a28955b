package main

import (
	"context"
	"log/slog"
	"os"

	"workforce/internal/app/cli"
)

func main() {
	if err := cli.Run(context.Background(), os.Args); err != nil {
		slog.Error("workforce exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}
