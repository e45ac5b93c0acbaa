package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"

	"MarketETL/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"Warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "etl.log")
	logger, err := New(config.LoggingConfig{
		Level:     "info",
		Format:    "json",
		Output:    path,
		MaxSizeMB: 1,
	}, "run-123")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("stage finished")
	logger.Debug("suppressed")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"run_id":"run-123"`) {
		t.Errorf("log line missing run id: %s", out)
	}
	if !strings.Contains(out, "stage finished") {
		t.Errorf("log line missing message: %s", out)
	}
	if strings.Contains(out, "suppressed") {
		t.Errorf("debug entry written at info level: %s", out)
	}
}

func TestRunIDInherited(t *testing.T) {
	t.Setenv(RunIDEnv, "parent-run")
	if got := RunID(); got != "parent-run" {
		t.Errorf("RunID() = %q, want parent-run", got)
	}
	t.Setenv(RunIDEnv, "")
	if got := RunID(); got == "" || got == "parent-run" {
		t.Errorf("RunID() = %q, want a fresh uuid", got)
	}
}
