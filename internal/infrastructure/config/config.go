package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the IR fleet daemon.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Fleet   FleetConfig   `yaml:"fleet"`
	Keyset  KeysetConfig  `yaml:"keyset"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Metrics MetricsConfig `yaml:"metrics"`
	Audit   AuditConfig   `yaml:"audit"`
	Logging LoggingConfig `yaml:"logging"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// FleetConfig describes the Global Caché devices and the slot mapping
// binding external slot numbers onto them.
type FleetConfig struct {
	Devices  []DeviceConfig      `yaml:"devices"`
	Mappings []SlotMappingConfig `yaml:"mappings"`
}

// DeviceConfig mirrors registry.DeviceSpec for YAML decoding.
type DeviceConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	TCPPort  int    `yaml:"tcp_port"`
	Module   int    `yaml:"module"`
	MaxPorts int    `yaml:"max_ports"`
	Count    int    `yaml:"count"`
}

// SlotMappingConfig mirrors registry.SlotMapping for YAML decoding.
type SlotMappingConfig struct {
	Slot        int `yaml:"slot"`
	DeviceIndex int `yaml:"device_index"`
	Port        int `yaml:"port"`
}

// KeysetConfig points at the RedRat KeyManager XML export to decode
// into the Keyset Catalogue at startup.
type KeysetConfig struct {
	Path string `yaml:"path"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// MetricsConfig contains InfluxDB connection settings for press-latency
// and connection-health measurements.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// AuditConfig contains the command-audit SQLite store settings.
type AuditConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: IRFLEET_SECTION_KEY
// For example: IRFLEET_MQTT_HOST, IRFLEET_AUDIT_PATH
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "IR Fleet",
		},
		Keyset: KeysetConfig{
			Path: "./data/keyset.xml",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "irfleetd",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Audit: AuditConfig{
			Path:        "./data/irfleet.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: IRFLEET_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("IRFLEET_KEYSET_PATH"); v != "" {
		cfg.Keyset.Path = v
	}
	if v := os.Getenv("IRFLEET_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("IRFLEET_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("IRFLEET_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("IRFLEET_METRICS_TOKEN"); v != "" {
		cfg.Metrics.Token = v
	}
	if v := os.Getenv("IRFLEET_AUDIT_PATH"); v != "" {
		cfg.Audit.Path = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if c.Keyset.Path == "" {
		errs = append(errs, "keyset.path is required")
	}
	if len(c.Fleet.Devices) == 0 {
		errs = append(errs, "fleet.devices must contain at least one device")
	}
	for _, m := range c.Fleet.Mappings {
		if m.Slot <= 0 {
			errs = append(errs, fmt.Sprintf("fleet.mappings: slot %d must be positive", m.Slot))
		}
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.Audit.Path == "" {
		errs = append(errs, "audit.path is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ReconnectInitialDelay returns the MQTT initial reconnect delay as a Duration.
func (c *Config) ReconnectInitialDelay() time.Duration {
	return time.Duration(c.MQTT.Reconnect.InitialDelay) * time.Second
}
