package app_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/nDmitry/feedsky/internal/app"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, app.ParseLevel(tt.name))
		})
	}
}

func TestSetLevel(t *testing.T) {
	ctx := context.Background()
	t.Cleanup(func() { app.SetLevel("info") })

	app.SetLevel("debug")
	assert.True(t, app.Logger().Enabled(ctx, slog.LevelDebug))

	// Loggers derived before the change follow it too
	runLogger, _ := app.RunLogger()

	app.SetLevel("error")
	assert.False(t, app.Logger().Enabled(ctx, slog.LevelWarn))
	assert.False(t, runLogger.Enabled(ctx, slog.LevelWarn))
	assert.True(t, runLogger.Enabled(ctx, slog.LevelError))
}
