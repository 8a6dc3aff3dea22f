package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlogLogger_WritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlog(slog.New(slog.NewTextHandler(&buf, nil)))

	l.Info("connected", "server", "127.0.0.1:4222")

	out := buf.String()
	require.Contains(t, out, "connected")
	require.Contains(t, out, "server=127.0.0.1:4222")
}

func TestSlogLogger_LevelsRoute(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlog(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	l.Debug("d")
	l.Warn("w")
	l.Error("e")

	out := buf.String()
	for _, level := range []string{"DEBUG", "WARN", "ERROR"} {
		require.True(t, strings.Contains(out, level), "expected %s in output", level)
	}
}

func TestNopLogger_DoesNotPanic(t *testing.T) {
	l := NewNop()
	l.Debug("x")
	l.Info("x")
	l.Warn("x")
	l.Error("x")
	l.Fatal("x")
}

func TestTestLogger_WritesViaT(t *testing.T) {
	l := NewTest(t)
	l.Info("hello", "k", "v")
}
