package logger

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func textHandler(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	return slog.NewTextHandler(w, opts)
}

func jsonHandler(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	return slog.NewJSONHandler(w, opts)
}

// Swap stderr with pipe and return everything written while fn runs
func captureStderr(t *testing.T, fn func()) string {
	orig := os.Stderr
	defer func() { os.Stderr = orig }()

	r, w, err := os.Pipe()
	require.NoError(t, err, "failed to create stderr pipe")
	os.Stderr = w

	fn()

	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)

	return string(out)
}

func TestLogger_parseLevel(t *testing.T) {
	t.Run("valid value", func(t *testing.T) {
		tests := []struct {
			input    string
			expected slog.Level
		}{
			{"DEBUG", slog.LevelDebug},
			{"debug", slog.LevelDebug},
			{"INFO", slog.LevelInfo},
			{"info", slog.LevelInfo},
			{"Warn", slog.LevelWarn},
			{"error", slog.LevelError},
		}

		for _, tt := range tests {
			t.Run(tt.input, func(t *testing.T) {
				got, err := parseLevel(tt.input)

				require.NoError(t, err)
				require.Equal(t, tt.expected, got)
			})
		}
	})

	t.Run("not valid", func(t *testing.T) {
		for _, value := range []string{"", "verbose"} {
			_, err := parseLevel(value)
			require.Error(t, err, "level %q should not be accepted", value)
		}
	})
}

func TestLogger_New(t *testing.T) {
	t.Run("development is text", func(t *testing.T) {
		out := captureStderr(t, func() {
			l, err := New(EnvDevelopment, LevelInfo)
			require.NoError(t, err)

			l.Info("server started", "addr", "localhost:8000")
		})

		require.Contains(t, out, "level=INFO")
		require.Contains(t, out, "addr=localhost:8000")
	})

	t.Run("production is json", func(t *testing.T) {
		out := captureStderr(t, func() {
			l, err := New(EnvProduction, LevelInfo)
			require.NoError(t, err)

			l.Info("server started")
		})

		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &entry), "production log must be valid json")
		require.Equal(t, "server started", entry["msg"])
	})

	t.Run("unknown environment", func(t *testing.T) {
		_, err := New("staging", LevelInfo)
		require.Error(t, err)
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := New(EnvDevelopment, "verbose")
		require.Error(t, err)
	})
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		logFn    func(Logger)
		isLogged bool
	}{
		{"debug logger logs debug", LevelDebug, func(l Logger) { l.Debug("test") }, true},
		{"info logger skips debug", LevelInfo, func(l Logger) { l.Debug("test") }, false},
		{"info logger logs warn", LevelInfo, func(l Logger) { l.Warn("test") }, true},
		{"warn logger skips info", LevelWarn, func(l Logger) { l.Info("test") }, false},
		{"error logger skips warn", LevelError, func(l Logger) { l.Warn("test") }, false},
		{"error logger logs error", LevelError, func(l Logger) { l.Error("test") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			l, err := newLogger(buf, tt.level, textHandler)
			require.NoError(t, err)

			tt.logFn(l)

			require.Equal(t, tt.isLogged, buf.Len() > 0)
		})
	}
}

func TestLogger_With(t *testing.T) {
	buf := &bytes.Buffer{}
	l, err := newLogger(buf, LevelInfo, jsonHandler)
	require.NoError(t, err)

	l.With("component", "apiclient").WithGroup("request").Info("call failed", "status", 502)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "apiclient", entry["component"])
	require.Equal(t, map[string]any{"status": float64(502)}, entry["request"])

	source, ok := entry["source"].(map[string]any)
	require.True(t, ok, "source must be logged")
	require.Equal(t, "logger_test.go", source["file"], "source should point to the caller without directory")
}

func TestLogger_NoOp(t *testing.T) {
	out := captureStderr(t, func() {
		l := NewNoOpLogger()
		l.Error("error message")
	})

	require.Empty(t, out)
}
