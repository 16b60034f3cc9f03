package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoggerFromContext_AddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	SetLogger(NewLogger(&buf, slog.LevelDebug))
	t.Cleanup(func() { SetLogger(prev) })

	ctx := WithRequestID(context.Background(), "req-123")
	require.Equal(t, "req-123", RequestID(ctx))
	LoggerFromContext(ctx).Info("handled", "route", "/api/users")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "req-123", line["request_id"])
	require.Equal(t, "handled", line["msg"])
}

func TestLoggerFromContext_WithoutRequestID(t *testing.T) {
	require.Same(t, Logger(), LoggerFromContext(context.Background()))
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	require.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	require.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
