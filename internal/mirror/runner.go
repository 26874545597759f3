package mirror

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrRunInProgress is returned when a run is requested while another one is active.
var ErrRunInProgress = errors.New("a sync run is already in progress")

// Syncer runs one sync cycle.
type Syncer interface {
	Run(ctx context.Context) (Result, error)
}

// Status describes the most recent completed run.
type Status struct {
	Running    bool      `json:"running"`
	LastRunAt  time.Time `json:"last_run_at,omitzero"`
	LastResult *Result   `json:"last_result,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
}

// Runner serializes runs of a Syncer within the process.
type Runner struct {
	syncer Syncer
	logger *slog.Logger

	mu     sync.Mutex
	status Status
	active sync.Mutex
}

func NewRunner(syncer Syncer, logger *slog.Logger) *Runner {
	return &Runner{syncer: syncer, logger: logger}
}

// Run executes a run unless one is already active.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if !r.active.TryLock() {
		return Result{}, ErrRunInProgress
	}

	defer r.active.Unlock()

	r.setRunning(true)
	result, err := r.syncer.Run(ctx)

	r.mu.Lock()
	r.status = Status{LastRunAt: time.Now().UTC(), LastResult: &result}

	if err != nil {
		r.status.LastError = err.Error()
	}
	r.mu.Unlock()

	return result, err
}

// Status returns a snapshot of the runner state.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.status
}

// Schedule runs immediately and then every interval until ctx is canceled.
// Ticks that fire while a run is active are skipped.
func (r *Runner) Schedule(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Scheduler stopped")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	if _, err := r.Run(ctx); errors.Is(err, ErrRunInProgress) {
		r.logger.Warn("Skipping scheduled run, previous run still active")
	}
}

func (r *Runner) setRunning(running bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.Running = running
}
