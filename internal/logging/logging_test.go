package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, lvl string) *bytes.Buffer {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	var buf bytes.Buffer
	Setup(&buf, lvl)
	return &buf
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, l := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if l == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(l), &m))
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"Warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestSetup_ErrorCarriesStackAndRequestID(t *testing.T) {
	buf := capture(t, "info")
	ctx := WithRequestID(context.Background(), "req-1")

	slog.DebugContext(ctx, "hidden")
	slog.ErrorContext(ctx, "boom")

	got := lines(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "boom", got[0]["msg"])
	assert.Equal(t, "req-1", got[0]["request_id"])
	assert.NotEmpty(t, got[0]["stacktrace"])
}

func TestSetLevel(t *testing.T) {
	buf := capture(t, "warn")
	slog.Info("dropped")
	SetLevel("debug")
	assert.Equal(t, slog.LevelDebug, Level())
	slog.Debug("kept")

	var msgs []string
	for _, l := range lines(t, buf) {
		msgs = append(msgs, l["msg"].(string))
	}
	assert.NotContains(t, msgs, "dropped")
	assert.Contains(t, msgs, "kept")
}
