package app

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var level = new(slog.LevelVar)

// Logger returns the logger singleton. The level starts from LOG_LEVEL and
// can be changed later with SetLevel.
var Logger = sync.OnceValue(func() *slog.Logger {
	level.Set(ParseLevel(os.Getenv("LOG_LEVEL")))

	baseHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	handler := &loggerHandler{handler: baseHandler}

	return slog.New(handler)
})

// SetLevel changes the level of the logger singleton and every logger
// derived from it.
func SetLevel(name string) {
	Logger()
	level.Set(ParseLevel(name))
}

// RunLogger returns a logger tagged with a fresh run ID, and the ID itself.
func RunLogger() (*slog.Logger, string) {
	runID := uuid.NewString()

	return Logger().With("run_id", runID), runID
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type loggerHandler struct {
	handler slog.Handler
}

func (h *loggerHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *loggerHandler) Handle(ctx context.Context, r slog.Record) error {
	// Convert the time to UTC and truncate microseconds
	r.Time = r.Time.UTC().Truncate(time.Second)
	return h.handler.Handle(ctx, r)
}

func (h *loggerHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &loggerHandler{handler: h.handler.WithAttrs(attrs)}
}

func (h *loggerHandler) WithGroup(name string) slog.Handler {
	return &loggerHandler{handler: h.handler.WithGroup(name)}
}
