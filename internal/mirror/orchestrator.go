// Package mirror drives a sync run: it authenticates, loads the dedup state,
// fetches and validates the feed, groups new entries into batches, posts them
// oldest first and persists the state after every batch.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nDmitry/feedsky/internal/activity"
	"github.com/nDmitry/feedsky/internal/app"
	"github.com/nDmitry/feedsky/internal/batch"
	"github.com/nDmitry/feedsky/internal/bsky"
	"github.com/nDmitry/feedsky/internal/compose"
	"github.com/nDmitry/feedsky/internal/dedup"
	"github.com/nDmitry/feedsky/internal/entity"
	"github.com/nDmitry/feedsky/internal/store"
)

// State is a step of a run, used in logs and errors.
type State string

const (
	StateAuthenticating State = "authenticating"
	StateLoadingState   State = "loading_state"
	StateFetchingFeed   State = "fetching_feed"
	StateValidating     State = "validating"
	StateBatching       State = "batching"
	StatePosting        State = "posting"
	StatePersisting     State = "persisting"
	StateDone           State = "done"
)

type Authenticator interface {
	Authenticate(ctx context.Context, identifier, password string) (bsky.Session, error)
}

type Poster interface {
	CreateRecord(ctx context.Context, session bsky.Session, req bsky.PostRequest) (bsky.RecordRef, error)
}

type FeedFetcher interface {
	FetchFeed(ctx context.Context, feedURL string) ([]byte, error)
}

// Composer renders a batch. It returns compose.ErrNothingToPost for a batch
// that can be recorded without posting.
type Composer interface {
	Compose(ctx context.Context, session bsky.Session, b batch.Batch) (bsky.PostRequest, error)
}

type Recorder interface {
	Append(ctx context.Context, item activity.Item) error
}

// Options are the per-deployment settings of a run.
type Options struct {
	Identifier        string
	Password          string
	FeedURL           string
	StateKey          string
	CombineWindow     float64
	OnPostFailure     entity.PostFailurePolicy
	StrictPersistence bool
	RetentionCap      int
}

// OptionsFromConfig maps the loaded config to run options.
func OptionsFromConfig(cfg *entity.Config) Options {
	return Options{
		Identifier:        cfg.Identifier,
		Password:          cfg.Password,
		FeedURL:           cfg.FeedURL,
		StateKey:          cfg.StateKey,
		CombineWindow:     cfg.CombineWindow,
		OnPostFailure:     cfg.OnPostFailure,
		StrictPersistence: cfg.StrictPersistence,
		RetentionCap:      dedup.DefaultCap,
	}
}

// Result summarizes a run.
type Result struct {
	RunID      string `json:"run_id"`
	Entries    int    `json:"entries"`
	New        int    `json:"new"`
	Batches    int    `json:"batches"`
	Posted     int    `json:"posted"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	DurationMs int64  `json:"duration_ms"`
}

// RunError reports the state a run failed in.
type RunError struct {
	State State
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("sync failed while %s: %v", e.State, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

type Orchestrator struct {
	auth     Authenticator
	poster   Poster
	fetcher  FeedFetcher
	composer Composer
	store    store.Store
	recorder Recorder
	opts     Options
}

// NewOrchestrator wires a run. recorder may be nil.
func NewOrchestrator(
	auth Authenticator,
	poster Poster,
	fetcher FeedFetcher,
	composer Composer,
	st store.Store,
	recorder Recorder,
	opts Options,
) *Orchestrator {
	if opts.RetentionCap <= 0 {
		opts.RetentionCap = dedup.DefaultCap
	}

	if opts.OnPostFailure == "" {
		opts.OnPostFailure = entity.PolicyAbort
	}

	return &Orchestrator{
		auth:     auth,
		poster:   poster,
		fetcher:  fetcher,
		composer: composer,
		store:    st,
		recorder: recorder,
		opts:     opts,
	}
}

// Run performs one sync cycle. Posts made before a failure stay recorded.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	logger, runID := app.RunLogger()
	ctx = app.WithLogger(ctx, logger)
	start := time.Now()
	result := Result{RunID: runID}

	err := o.run(ctx, logger, &result)
	result.DurationMs = time.Since(start).Milliseconds()

	if err != nil {
		logger.Error("Sync failed", "error", err, "result", result)
		return result, err
	}

	logger.Info("Sync finished", "result", result)

	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, logger *slog.Logger, result *Result) error {
	logger.Debug("Entering state", "state", StateAuthenticating)
	session, err := o.auth.Authenticate(ctx, o.opts.Identifier, o.opts.Password)

	if err != nil {
		return &RunError{State: StateAuthenticating, Err: err}
	}

	logger.Debug("Entering state", "state", StateLoadingState)
	posted, err := dedup.Load(ctx, o.store, o.opts.StateKey, logger)

	if err != nil && o.opts.StrictPersistence {
		return &RunError{State: StateLoadingState, Err: err}
	}

	logger.Debug("Entering state", "state", StateFetchingFeed)
	payload, err := o.fetcher.FetchFeed(ctx, o.opts.FeedURL)

	if err != nil {
		return &RunError{State: StateFetchingFeed, Err: err}
	}

	logger.Debug("Entering state", "state", StateValidating)
	entries, err := entity.ParseFeed(payload)

	if err != nil {
		return &RunError{State: StateValidating, Err: err}
	}

	result.Entries = len(entries)
	fresh := newEntries(entries, posted)
	result.New = len(fresh)

	logger.Debug("Entering state", "state", StateBatching)
	batches := batch.NewBuilder(o.opts.CombineWindow).Build(fresh)
	result.Batches = len(batches)

	logger.Info("Feed loaded",
		"entries", result.Entries,
		"new", result.New,
		"batches", result.Batches,
		"known", posted.Len())

	var postErr error

	for i, b := range batches {
		if err := ctx.Err(); err != nil {
			return errors.Join(&RunError{State: StatePosting, Err: err}, postErr)
		}

		err := o.postBatch(ctx, logger, session, i, b, posted, result)

		if err == nil {
			err = o.persist(ctx, logger, posted)

			if err != nil {
				return errors.Join(err, postErr)
			}

			continue
		}

		result.Failed++
		wrapped := &RunError{State: StatePosting, Err: fmt.Errorf("batch %d %v: %w", i, b.MsgIDs(), err)}

		if o.opts.OnPostFailure == entity.PolicyAbort {
			return errors.Join(wrapped, postErr)
		}

		logger.Warn("Skipping failed batch", "batch", i, "msgids", b.MsgIDs(), "error", err)
		postErr = errors.Join(postErr, wrapped)
	}

	// Persist at least once per run, which also applies the retention cap.
	if err := o.persist(ctx, logger, posted); err != nil {
		return errors.Join(err, postErr)
	}

	logger.Debug("Entering state", "state", StateDone)

	return postErr
}

// postBatch composes and publishes one batch and records its ids on success.
// A batch with nothing to post is recorded without calling the API. A batch
// whose images could not be attached is a failure and is not recorded.
func (o *Orchestrator) postBatch(
	ctx context.Context,
	logger *slog.Logger,
	session bsky.Session,
	i int,
	b batch.Batch,
	posted *dedup.Set,
	result *Result,
) error {
	req, err := o.composer.Compose(ctx, session, b)

	if errors.Is(err, compose.ErrNothingToPost) {
		logger.Info("Skipping empty batch", "batch", i, "msgids", b.MsgIDs())
		record(posted, b)
		result.Skipped++

		return nil
	}

	if err != nil {
		return err
	}

	ref, err := o.poster.CreateRecord(ctx, session, req)

	if err != nil {
		return err
	}

	record(posted, b)
	result.Posted++

	images := len(req.Images())

	logger.Info("Posted batch",
		"batch", i,
		"msgids", b.MsgIDs(),
		"uri", ref.URI,
		"chars", len([]rune(req.Text())),
		"images", images)

	if o.recorder != nil {
		item := activity.Item{
			URI:      ref.URI,
			Text:     req.Text(),
			MsgIDs:   b.MsgIDs(),
			Images:   images,
			PostedAt: time.Now().UTC(),
		}

		if err := o.recorder.Append(ctx, item); err != nil {
			logger.Warn("Could not record activity", "uri", ref.URI, "error", err)
		}
	}

	return nil
}

// persist trims and saves the dedup state. Failures are logged and only
// returned when persistence is strict.
func (o *Orchestrator) persist(ctx context.Context, logger *slog.Logger, posted *dedup.Set) error {
	posted.Trim(o.opts.RetentionCap)

	err := dedup.Save(ctx, o.store, o.opts.StateKey, posted)

	if err == nil {
		return nil
	}

	if o.opts.StrictPersistence {
		return &RunError{State: StatePersisting, Err: err}
	}

	logger.Error("Could not persist dedup state, will retry next run", "error", err)

	return nil
}

func record(posted *dedup.Set, b batch.Batch) {
	for _, id := range b.MsgIDs() {
		posted.Record(id)
	}
}

// newEntries drops entries that were already posted, and repeated ids within
// the feed, keeping the first occurrence.
func newEntries(entries []entity.Entry, posted *dedup.Set) []entity.Entry {
	seen := make(map[string]struct{}, len(entries))
	fresh := make([]entity.Entry, 0, len(entries))

	for _, e := range entries {
		if posted.IsPosted(e.MsgID) {
			continue
		}

		if _, ok := seen[e.MsgID]; ok {
			continue
		}

		seen[e.MsgID] = struct{}{}
		fresh = append(fresh, e)
	}

	return fresh
}
