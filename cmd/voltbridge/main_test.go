package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetConfigPath_Default(t *testing.T) {
	original := os.Getenv("VOLTBRIDGE_CONFIG")
	defer os.Setenv("VOLTBRIDGE_CONFIG", original)
	os.Unsetenv("VOLTBRIDGE_CONFIG")

	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}
}

func TestGetConfigPath_EnvOverride(t *testing.T) {
	original := os.Getenv("VOLTBRIDGE_CONFIG")
	defer os.Setenv("VOLTBRIDGE_CONFIG", original)
	os.Setenv("VOLTBRIDGE_CONFIG", "/etc/voltbridge/config.yaml")

	if got := getConfigPath(); got != "/etc/voltbridge/config.yaml" {
		t.Errorf("getConfigPath() = %q, want env override", got)
	}
}

// TestRun_InvalidConfig verifies a fatal boot error for an unparseable
// config file. The bridge must exit non-zero only on config errors.
func TestRun_InvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("bridge: [not a mapping"), 0600); err != nil {
		t.Fatalf("writing test config: %v", err)
	}

	original := os.Getenv("VOLTBRIDGE_CONFIG")
	defer os.Setenv("VOLTBRIDGE_CONFIG", original)
	os.Setenv("VOLTBRIDGE_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail on an unparseable config file")
	}
}

// TestRun_InvalidPollInterval verifies config validation rejects a poll
// interval below one second at boot.
func TestRun_InvalidPollInterval(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	configContent := `
bridge:
  data_dir: "` + tmpDir + `"
  poll_interval_ms: 100
database:
  path: "` + filepath.Join(tmpDir, "history.db") + `"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("writing test config: %v", err)
	}

	original := os.Getenv("VOLTBRIDGE_CONFIG")
	defer os.Setenv("VOLTBRIDGE_CONFIG", original)
	os.Setenv("VOLTBRIDGE_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail when poll_interval_ms is under 1000")
	}
}
