package main

import (
	"log/slog"
	"os"

	"github.com/nDmitry/feedsky/internal/app"
	"github.com/nDmitry/feedsky/internal/cli"
)

func main() {
	logger := app.Logger()
	slog.SetDefault(logger)

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
