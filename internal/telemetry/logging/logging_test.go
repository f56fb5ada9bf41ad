package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoggerWithoutSpanOmitsCorrelation(t *testing.T) {
	var buf bytes.Buffer
	l := New(slog.New(slog.NewTextHandler(&buf, nil)))

	l.InfoCtx(context.Background(), "hello")

	require.Contains(t, buf.String(), "hello")
	require.NotContains(t, buf.String(), "trace_id=")
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	ctx := context.Background()

	l.InfoCtx(ctx, "info line")
	l.WarnCtx(ctx, "warn line")
	l.ErrorCtx(ctx, "error line")

	out := buf.String()
	for _, want := range []string{"info line", "warn line", "error line"} {
		require.True(t, strings.Contains(out, want), "expected output to contain %q", want)
	}
}

func TestNop(t *testing.T) {
	l := NewNop()
	require.NotPanics(t, func() {
		l.InfoCtx(context.Background(), "ignored")
		l.ErrorCtx(context.Background(), "ignored", "k", "v")
	})
}
