package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
bridge:
  data_dir: "/tmp/vb-data"
  poll_interval_ms: 2000
  device:
    transport: "snmp"
    host: "192.168.1.50"
    community: "private"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
http:
  host: "0.0.0.0"
  port: 8080
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

	if cfg.Bridge.Device.Host != "192.168.1.50" {
		t.Errorf("Bridge.Device.Host = %q, want %q", cfg.Bridge.Device.Host, "192.168.1.50")
	}

	if cfg.Bridge.PollIntervalMs != 2000 {
		t.Errorf("Bridge.PollIntervalMs = %d, want 2000", cfg.Bridge.PollIntervalMs)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v, want env-only defaults", err)
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
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

func TestLoad_UnknownKeyRejected(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("snmp_community: public\n"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for unknown key, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config { return defaultConfig() }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid defaults",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "poll interval below 1s",
			mutate:  func(c *Config) { c.Bridge.PollIntervalMs = 500 },
			wantErr: true,
		},
		{
			name:    "missing data dir",
			mutate:  func(c *Config) { c.Bridge.DataDir = "" },
			wantErr: true,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "wildcard in topic prefix",
			mutate:  func(c *Config) { c.MQTT.TopicPrefix = "pdu/#" },
			wantErr: true,
		},
		{
			name:    "invalid port low",
			mutate:  func(c *Config) { c.HTTP.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.HTTP.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "invalid transport",
			mutate:  func(c *Config) { c.Bridge.Device.Transport = "modbus" },
			wantErr: true,
		},
		{
			name: "web password without jwt secret",
			mutate: func(c *Config) {
				c.Security.WebPassword = "hunter2"
				c.Security.JWT.Secret = ""
			},
			wantErr: true,
		},
		{
			name: "web password with short jwt secret",
			mutate: func(c *Config) {
				c.Security.WebPassword = "hunter2"
				c.Security.JWT.Secret = "short"
			},
			wantErr: true,
		},
		{
			name: "web password with valid jwt secret",
			mutate: func(c *Config) {
				c.Security.WebPassword = "hunter2"
				c.Security.JWT.Secret = "test-secret-key-at-least-32-chars!"
			},
			wantErr: false,
		},
		{
			name:    "zero retention",
			mutate:  func(c *Config) { c.Bridge.RetentionDays = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		HTTP: HTTPConfig{
			Timeouts: HTTPTimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("VOLTBRIDGE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("VOLTBRIDGE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("VOLTBRIDGE_MQTT_USERNAME", "testuser")
	t.Setenv("VOLTBRIDGE_MQTT_PASSWORD", "testpass")
	t.Setenv("VOLTBRIDGE_PDU_HOST", "10.0.0.20")
	t.Setenv("VOLTBRIDGE_PDU_COMMUNITY", "private")
	t.Setenv("VOLTBRIDGE_POLL_INTERVAL_MS", "5000")
	t.Setenv("VOLTBRIDGE_WEB_PASSWORD", "secret")
	t.Setenv("VOLTBRIDGE_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
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

	if cfg.Bridge.Device.Host != "10.0.0.20" {
		t.Errorf("Bridge.Device.Host = %q, want %q", cfg.Bridge.Device.Host, "10.0.0.20")
	}

	if cfg.Bridge.Device.Community != "private" {
		t.Errorf("Bridge.Device.Community = %q, want %q", cfg.Bridge.Device.Community, "private")
	}

	if cfg.Bridge.PollIntervalMs != 5000 {
		t.Errorf("Bridge.PollIntervalMs = %d, want 5000", cfg.Bridge.PollIntervalMs)
	}

	if cfg.Security.WebPassword != "secret" {
		t.Errorf("Security.WebPassword = %q, want %q", cfg.Security.WebPassword, "secret")
	}

	if cfg.Security.JWT.Secret != "jwt-secret" {
		t.Errorf("Security.JWT.Secret = %q, want %q", cfg.Security.JWT.Secret, "jwt-secret")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Bridge.DataDir == "" {
		t.Error("defaultConfig should have non-empty Bridge.DataDir")
	}

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}

	if cfg.MQTT.TopicPrefix != "pdu" {
		t.Errorf("defaultConfig MQTT.TopicPrefix = %q, want %q", cfg.MQTT.TopicPrefix, "pdu")
	}

	if cfg.HTTP.Port != 8080 {
		t.Errorf("defaultConfig HTTP.Port = %d, want 8080", cfg.HTTP.Port)
	}

	if cfg.Bridge.PollIntervalMs != 1000 {
		t.Errorf("defaultConfig Bridge.PollIntervalMs = %d, want 1000", cfg.Bridge.PollIntervalMs)
	}
}
