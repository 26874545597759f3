package cli

import (
	"context"
	"fmt"

	"github.com/nDmitry/feedsky/internal/activity"
	"github.com/nDmitry/feedsky/internal/app"
	"github.com/nDmitry/feedsky/internal/bsky"
	"github.com/nDmitry/feedsky/internal/compose"
	"github.com/nDmitry/feedsky/internal/config"
	"github.com/nDmitry/feedsky/internal/entity"
	"github.com/nDmitry/feedsky/internal/feed"
	"github.com/nDmitry/feedsky/internal/mirror"
	"github.com/nDmitry/feedsky/internal/store"
)

// deps holds everything a command needs; close releases the store.
type deps struct {
	cfg          *entity.Config
	store        store.Store
	activity     *activity.Log
	orchestrator *mirror.Orchestrator
}

func (d *deps) close() error {
	return d.store.Close()
}

func wire(ctx context.Context) (*deps, error) {
	cfg, err := config.Load(configPath)

	if err != nil {
		return nil, err
	}

	app.SetLevel(cfg.LogLevel)

	st, err := store.Open(ctx, cfg)

	if err != nil {
		return nil, fmt.Errorf("could not open %s store: %w", cfg.StoreBackend, err)
	}

	client := bsky.NewClient(cfg.Service, feed.HTTPClient)
	fetcher := feed.NewDefaultFetcher()
	history := activity.NewLog(st, cfg.StateKey+":recent")

	orchestrator := mirror.NewOrchestrator(
		client,
		client,
		fetcher,
		compose.NewComposer(fetcher, client),
		st,
		history,
		mirror.OptionsFromConfig(cfg),
	)

	return &deps{cfg: cfg, store: st, activity: history, orchestrator: orchestrator}, nil
}
