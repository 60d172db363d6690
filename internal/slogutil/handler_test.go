package slogutil

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestHandler_Format(t *testing.T) {
	tests := []struct {
		name string
		log  func(*slog.Logger)
		want []string
	}{
		{
			name: "plain attrs",
			log:  func(l *slog.Logger) { l.Info("Request built", "doc", "a.js", "files", 2) },
			want: []string{"[info] Request built | doc=a.js files=2"},
		},
		{
			name: "no attrs has no separator",
			log:  func(l *slog.Logger) { l.Warn("Engine slow") },
			want: []string{"[warn] Engine slow\n"},
		},
		{
			name: "strings with spaces are quoted",
			log:  func(l *slog.Logger) { l.Info("Fetch failed", "error", "connection refused", "name", "") },
			want: []string{`error="connection refused"`, `name=""`},
		},
		{
			name: "durations",
			log:  func(l *slog.Logger) { l.Info("Synced", "took", 1500*time.Millisecond) },
			want: []string{"took=1.5s"},
		},
		{
			name: "component prefixes the message",
			log:  func(l *slog.Logger) { Component(l, "tracker").Debug("Sync scheduled", "doc", "big.js") },
			want: []string{"[debug] tracker: Sync scheduled | doc=big.js"},
		},
		{
			name: "groups prefix keys",
			log:  func(l *slog.Logger) { l.With("doc", "a.js").WithGroup("req").Info("built", "files", 2) },
			want: []string{"doc=a.js", "req.files=2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewLogger(&buf, slog.LevelDebug))
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("output %q does not contain %q", buf.String(), w)
				}
			}
		})
	}
}

func TestHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	for _, filtered := range []string{"debug message", "info message"} {
		if strings.Contains(output, filtered) {
			t.Errorf("%q should be filtered", filtered)
		}
	}
	for _, kept := range []string{"[warn] warn message", "[error] error message"} {
		if !strings.Contains(output, kept) {
			t.Errorf("%q should be included, got: %s", kept, output)
		}
	}
}

func TestHandler_LevelVar(t *testing.T) {
	var buf bytes.Buffer
	var lv slog.LevelVar
	lv.Set(slog.LevelError)
	logger := slog.New(NewHandler(&buf, &slog.HandlerOptions{Level: &lv}))

	logger.Info("hidden")
	lv.Set(slog.LevelInfo)
	logger.Info("shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("level changes should apply to existing loggers, got: %s", buf.String())
	}
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := LevelFromString(tt.input); got != tt.expected {
				t.Errorf("LevelFromString(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLevelFromVerbosity(t *testing.T) {
	tests := []struct {
		verbosity int
		quiet     bool
		expected  slog.Level
	}{
		{0, false, slog.LevelWarn},
		{1, false, slog.LevelInfo},
		{2, false, slog.LevelDebug},
		{3, false, slog.LevelDebug},
		{0, true, silent},
		{5, true, silent},
	}

	for _, tt := range tests {
		if got := LevelFromVerbosity(tt.verbosity, tt.quiet); got != tt.expected {
			t.Errorf("LevelFromVerbosity(%d, %v) = %v, want %v", tt.verbosity, tt.quiet, got, tt.expected)
		}
	}
}

func TestNewDiscardLogger(t *testing.T) {
	logger := NewDiscardLogger()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("discard logger should not enable any level")
	}
	logger.Error("ignored")
}

func TestNewFormatLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	Component(NewFormatLogger(&buf, slog.LevelInfo, "JSON"), "transport").Info("hello", "k", "v")

	for _, want := range []string{`"msg":"hello"`, `"component":"transport"`} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("expected %s in JSON output, got: %s", want, buf.String())
		}
	}
}

func TestComponent_NilLogger(t *testing.T) {
	Component(nil, "x").Info("ignored")
}
