package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bulkrun/bulkrun/internal/config"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name  string
		level string
	}{
		{name: "debug level", level: "debug"},
		{name: "info level", level: "info"},
		{name: "warn level", level: "warn"},
		{name: "error level", level: "error"},
		{name: "invalid level falls back to info", level: "verbose"},
		{name: "empty level falls back to info", level: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			log := Setup(config.LogConfig{Level: tc.level})
			require.NotNil(t, log)
		})
	}
}

func TestSetup_LevelFiltering(t *testing.T) {
	log := Setup(config.LogConfig{Level: "warn"})
	require.NotNil(t, log)

	ctx := context.Background()
	assert.False(t, log.Enabled(ctx, slog.LevelDebug))
	assert.False(t, log.Enabled(ctx, slog.LevelInfo))
	assert.True(t, log.Enabled(ctx, slog.LevelWarn))
	assert.True(t, log.Enabled(ctx, slog.LevelError))
}
