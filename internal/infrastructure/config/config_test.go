package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
site:
  id: "test-site"
fleet:
  devices:
    - host: "192.168.1.50"
      max_ports: 3
  mappings:
    - slot: 1
      device_index: 0
      port: 1
keyset:
  path: "/tmp/keyset.xml"
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
audit:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if len(cfg.Fleet.Devices) != 1 || cfg.Fleet.Devices[0].Host != "192.168.1.50" {
		t.Errorf("Fleet.Devices = %+v, want one device at 192.168.1.50", cfg.Fleet.Devices)
	}
	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}
	if cfg.Audit.Path != "/tmp/test.db" {
		t.Errorf("Audit.Path = %q, want %q", cfg.Audit.Path, "/tmp/test.db")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
site:
  id: ""
keyset:
  path: "/tmp/keyset.xml"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty site.id and no devices, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Site:   SiteConfig{ID: "site-001"},
			Keyset: KeysetConfig{Path: "/data/keyset.xml"},
			Fleet: FleetConfig{
				Devices:  []DeviceConfig{{Host: "10.0.0.5"}},
				Mappings: []SlotMappingConfig{{Slot: 1, DeviceIndex: 0, Port: 1}},
			},
			MQTT:  MQTTConfig{QoS: 1},
			Audit: AuditConfig{Path: "/data/irfleet.db"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}, wantErr: false},
		{name: "missing site ID", mutate: func(c *Config) { c.Site.ID = "" }, wantErr: true},
		{name: "missing keyset path", mutate: func(c *Config) { c.Keyset.Path = "" }, wantErr: true},
		{name: "no devices", mutate: func(c *Config) { c.Fleet.Devices = nil }, wantErr: true},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "invalid slot", mutate: func(c *Config) { c.Fleet.Mappings[0].Slot = 0 }, wantErr: true},
		{name: "missing audit path", mutate: func(c *Config) { c.Audit.Path = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("IRFLEET_KEYSET_PATH", "/custom/keyset.xml")
	t.Setenv("IRFLEET_MQTT_HOST", "mqtt.example.com")
	t.Setenv("IRFLEET_MQTT_USERNAME", "testuser")
	t.Setenv("IRFLEET_MQTT_PASSWORD", "testpass")
	t.Setenv("IRFLEET_METRICS_TOKEN", "secret-token")
	t.Setenv("IRFLEET_AUDIT_PATH", "/custom/path.db")

	applyEnvOverrides(cfg)

	if cfg.Keyset.Path != "/custom/keyset.xml" {
		t.Errorf("Keyset.Path = %q, want %q", cfg.Keyset.Path, "/custom/keyset.xml")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.Metrics.Token != "secret-token" {
		t.Errorf("Metrics.Token = %q, want %q", cfg.Metrics.Token, "secret-token")
	}
	if cfg.Audit.Path != "/custom/path.db" {
		t.Errorf("Audit.Path = %q, want %q", cfg.Audit.Path, "/custom/path.db")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Site.ID == "" {
		t.Error("defaultConfig should have non-empty Site.ID")
	}
	if cfg.Audit.Path == "" {
		t.Error("defaultConfig should have non-empty Audit.Path")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
}
