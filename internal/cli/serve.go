package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nDmitry/feedsky/internal/api/rest"
	"github.com/nDmitry/feedsky/internal/app"
	"github.com/nDmitry/feedsky/internal/mirror"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Sync on a timer and serve health, status and activity endpoints",
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger := app.Logger()

		// Create a cancellable context for graceful shutdown
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		go func() {
			<-sigChan
			logger.Info("Received first shutdown signal, starting graceful shutdown...")
			cancel()

			// If we receive a second signal, exit immediately
			<-sigChan
			logger.Info("Received second shutdown signal, exiting immediately...")
			os.Exit(1)
		}()

		d, err := wire(ctx)

		if err != nil {
			return err
		}

		defer d.close()

		runner := mirror.NewRunner(d.orchestrator, logger)

		go runner.Schedule(ctx, d.cfg.SyncInterval)

		info := rest.FeedInfo{
			Title: "feedsky: " + d.cfg.Identifier,
			Link:  "https://bsky.app/profile/" + d.cfg.Identifier,
		}

		server := rest.NewServer(runner, d.activity, info, d.cfg.Port)

		if err := server.Run(ctx); err != nil {
			logger.Error("Server error", "error", err)
			return err
		}

		return nil
	},
}
