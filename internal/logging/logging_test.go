package logging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultLogDir(t *testing.T) {
	dir := DefaultLogDir()
	if dir == "" {
		t.Error("DefaultLogDir returned empty string")
	}

	if !strings.Contains(dir, ".localsearch") || !strings.Contains(dir, "logs") {
		t.Errorf("DefaultLogDir should contain .localsearch/logs, got: %s", dir)
	}
}

func TestDefaultLogPath(t *testing.T) {
	path := DefaultLogPath()
	if filepath.Base(path) != "engine.log" {
		t.Errorf("expected engine.log, got: %s", path)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"DEBUG", slog.LevelDebug},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "engine.log")

	logger, cleanup, err := Setup(Config{
		Level:         "info",
		FilePath:      logPath,
		MaxSizeMB:     1,
		MaxFiles:      2,
		WriteToStderr: false,
	})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	logger.Info("index_updated", slog.String("path", "/docs/a.md"), slog.Int("chunks", 3))
	cleanup()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	var entry map[string]any
	line := strings.TrimSpace(string(data))
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v\nline: %s", err, line)
	}
	if entry["msg"] != "index_updated" {
		t.Errorf("expected msg index_updated, got %v", entry["msg"])
	}
	if entry["path"] != "/docs/a.md" {
		t.Errorf("expected path attribute, got %v", entry["path"])
	}
}

func TestSetup_DebugLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "engine.log")

	logger, cleanup, err := Setup(Config{
		Level:         "warn",
		FilePath:      logPath,
		MaxSizeMB:     1,
		MaxFiles:      2,
		WriteToStderr: false,
	})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	logger.Debug("dropped")
	logger.Info("also dropped")
	logger.Warn("kept")
	cleanup()

	data, _ := os.ReadFile(logPath)
	content := string(data)
	if strings.Contains(content, "dropped") {
		t.Error("below-level entries should be filtered")
	}
	if !strings.Contains(content, "kept") {
		t.Error("warn entry missing")
	}
}

func TestRotatingWriter_RotatesAtSizeLimit(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "engine.log")

	w, err := NewRotatingWriter(logPath, 1, 3)
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer w.Close()

	// Force a tiny threshold so a couple of writes trigger rotation.
	w.maxSize = 64

	for i := 0; i < 10; i++ {
		if _, err := fmt.Fprintf(w, "entry %02d: %s\n", i, strings.Repeat("x", 30)); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	if _, err := os.Stat(logPath + ".1"); err != nil {
		t.Errorf("expected rotated file %s.1: %v", logPath, err)
	}
}

func TestRotatingWriter_KeepsAtMostMaxFiles(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "engine.log")

	w, err := NewRotatingWriter(logPath, 1, 2)
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer w.Close()

	w.maxSize = 32
	for i := 0; i < 30; i++ {
		_, _ = fmt.Fprintf(w, "%s\n", strings.Repeat("y", 20))
	}

	if _, err := os.Stat(logPath + ".3"); err == nil {
		t.Error("file beyond maxFiles should have been removed")
	}
}

func TestFindLogFile_ExplicitMissing(t *testing.T) {
	_, err := FindLogFile(filepath.Join(t.TempDir(), "nope.log"))
	if err == nil {
		t.Error("expected error for missing explicit path")
	}
}

func TestFindLogFile_ExplicitExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.log")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := FindLogFile(path)
	if err != nil {
		t.Fatalf("FindLogFile failed: %v", err)
	}
	if got != path {
		t.Errorf("expected %s, got %s", path, got)
	}
}
