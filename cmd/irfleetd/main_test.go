package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestRun_InvalidConfigPath verifies run fails when the config file
// doesn't exist.
func TestRun_InvalidConfigPath(t *testing.T) {
	originalEnv := os.Getenv("IRFLEET_CONFIG")
	defer os.Setenv("IRFLEET_CONFIG", originalEnv)
	os.Setenv("IRFLEET_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with a missing config file")
	}
}

// TestRun_MissingKeysetFile verifies run fails when the config
// validates but the referenced keyset file can't be read.
func TestRun_MissingKeysetFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
site:
  id: test-site
keyset:
  path: ` + filepath.Join(tmpDir, "missing-keyset.xml") + `
fleet:
  devices:
    - type: itach
      host: 127.0.0.1
      module: 1
      max_ports: 1
  mappings:
    - slot: 1
      device_index: 0
      port: 1
mqtt:
  enabled: false
metrics:
  enabled: false
audit:
  enabled: false
  path: ` + filepath.Join(tmpDir, "audit.db") + `
logging:
  level: info
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("IRFLEET_CONFIG")
	defer os.Setenv("IRFLEET_CONFIG", originalEnv)
	os.Setenv("IRFLEET_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail when the keyset file doesn't exist")
	}
}

// TestGetConfigPath_Default verifies the default config path is used
// when IRFLEET_CONFIG is unset.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("IRFLEET_CONFIG")
	defer os.Setenv("IRFLEET_CONFIG", originalEnv)
	os.Unsetenv("IRFLEET_CONFIG")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies IRFLEET_CONFIG overrides the
// default path.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("IRFLEET_CONFIG")
	defer os.Setenv("IRFLEET_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("IRFLEET_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}
