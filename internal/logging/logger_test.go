package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mikey/mail-sentinel/internal/config"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q): expected %v, got %v", in, want, got)
		}
	}
}

func TestInitLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()
	v := config.NewEmptyViper()
	v.Set("logging.level", "error")
	v.Set("logging.dir", dir)
	cfg := config.NewFromViper(v)

	logger, err := InitLogger(cfg)
	if err != nil {
		t.Fatalf("InitLogger failed: %v", err)
	}
	logger.Debug("cycle detail")
	_ = logger.Sync()

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("expected log file: %v", err)
	}
	if !strings.Contains(string(data), "cycle detail") {
		t.Fatalf("expected debug entry in file, got %q", data)
	}
}

func TestInitLoggerWithoutFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	v := config.NewEmptyViper()
	v.Set("logging.dir", dir)
	v.Set("logging.disable_file", true)

	if _, err := InitLogger(config.NewFromViper(v)); err != nil {
		t.Fatalf("InitLogger failed: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected no log directory, got %v", err)
	}
}
