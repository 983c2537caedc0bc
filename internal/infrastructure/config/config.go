package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the PDU bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge    BridgeConfig    `yaml:"bridge"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	HTTP      HTTPConfig      `yaml:"http"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// BridgeConfig contains poller and device defaults.
type BridgeConfig struct {
	// DataDir holds pdus.json, per-device rule files and outlet name files.
	DataDir string `yaml:"data_dir"`

	// PollIntervalMs is the poll cycle period in milliseconds. Minimum 1000.
	PollIntervalMs int `yaml:"poll_interval_ms"`

	// RetentionDays is how long raw samples are kept before the hourly sweep
	// deletes them.
	RetentionDays int `yaml:"retention_days"`

	// Device is the fallback single-device definition used when the device
	// file does not exist yet. Device file entries always win.
	Device DeviceDefaults `yaml:"device"`
}

// DeviceDefaults describes the environment-seeded fallback device.
type DeviceDefaults struct {
	ID        string `yaml:"id"`
	Transport string `yaml:"transport"` // snmp, serial, mock
	Host      string `yaml:"host"`
	Community string `yaml:"community"`
	SNMPPort  int    `yaml:"snmp_port"`

	Serial SerialDefaults `yaml:"serial"`
}

// SerialDefaults contains RS-232 console settings.
type SerialDefaults struct {
	Port     string `yaml:"port"`
	Baud     int    `yaml:"baud"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// DatabaseConfig contains SQLite history database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// TopicPrefix is the root of all device topics. Default "pdu".
	TopicPrefix string `yaml:"topic_prefix"`

	// QueueLimit bounds the offline publish queue. Default 10000.
	QueueLimit int `yaml:"queue_limit"`
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

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// HTTPConfig contains HTTP API server settings.
type HTTPConfig struct {
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Timeouts HTTPTimeoutConfig `yaml:"timeouts"`
}

// HTTPTimeoutConfig contains HTTP timeout settings (seconds).
type HTTPTimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains live status stream settings.
type WebSocketConfig struct {
	Path         string `yaml:"path"`
	PingInterval int    `yaml:"ping_interval"`
	PongTimeout  int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains the optional telemetry pipe settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains web interface security settings.
type SecurityConfig struct {
	// WebPassword gates mutating HTTP endpoints. Empty disables auth.
	WebPassword string `yaml:"web_password"`

	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains session token settings.
type JWTConfig struct {
	Secret     string `yaml:"secret"`
	SessionTTL int    `yaml:"session_ttl"` // minutes
}

// Load reads configuration from a YAML file and applies environment variable
// overrides.
//
// The loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Unknown YAML keys are rejected. Environment variables follow the pattern
// VOLTBRIDGE_SECTION_KEY, for example VOLTBRIDGE_MQTT_HOST or
// VOLTBRIDGE_PDU_COMMUNITY.
//
// A missing config file is not an error: defaults plus environment variables
// are enough to run a single-device bridge.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case os.IsNotExist(err):
		// env-only operation
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
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
		Bridge: BridgeConfig{
			DataDir:        "./data",
			PollIntervalMs: 1000,
			RetentionDays:  60,
			Device: DeviceDefaults{
				Transport: "snmp",
				Community: "public",
				SNMPPort:  161,
				Serial: SerialDefaults{
					Baud: 9600,
				},
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/history.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "voltbridge",
			},
			QoS:         0,
			TopicPrefix: "pdu",
			QueueLimit:  10000,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		HTTP: HTTPConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: HTTPTimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:         "/ws",
			PingInterval: 30,
			PongTimeout:  10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				SessionTTL: 720,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	setStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	// Bridge / fallback device
	setStr("VOLTBRIDGE_DATA_DIR", &cfg.Bridge.DataDir)
	setInt("VOLTBRIDGE_POLL_INTERVAL_MS", &cfg.Bridge.PollIntervalMs)
	setInt("VOLTBRIDGE_RETENTION_DAYS", &cfg.Bridge.RetentionDays)
	setStr("VOLTBRIDGE_PDU_ID", &cfg.Bridge.Device.ID)
	setStr("VOLTBRIDGE_PDU_TRANSPORT", &cfg.Bridge.Device.Transport)
	setStr("VOLTBRIDGE_PDU_HOST", &cfg.Bridge.Device.Host)
	setStr("VOLTBRIDGE_PDU_COMMUNITY", &cfg.Bridge.Device.Community)
	setInt("VOLTBRIDGE_PDU_SNMP_PORT", &cfg.Bridge.Device.SNMPPort)
	setStr("VOLTBRIDGE_SERIAL_PORT", &cfg.Bridge.Device.Serial.Port)
	setInt("VOLTBRIDGE_SERIAL_BAUD", &cfg.Bridge.Device.Serial.Baud)
	setStr("VOLTBRIDGE_SERIAL_USERNAME", &cfg.Bridge.Device.Serial.Username)
	setStr("VOLTBRIDGE_SERIAL_PASSWORD", &cfg.Bridge.Device.Serial.Password)

	// Database
	setStr("VOLTBRIDGE_DATABASE_PATH", &cfg.Database.Path)

	// MQTT
	setStr("VOLTBRIDGE_MQTT_HOST", &cfg.MQTT.Broker.Host)
	setInt("VOLTBRIDGE_MQTT_PORT", &cfg.MQTT.Broker.Port)
	setStr("VOLTBRIDGE_MQTT_USERNAME", &cfg.MQTT.Auth.Username)
	setStr("VOLTBRIDGE_MQTT_PASSWORD", &cfg.MQTT.Auth.Password)
	setStr("VOLTBRIDGE_MQTT_TOPIC_PREFIX", &cfg.MQTT.TopicPrefix)

	// HTTP
	setStr("VOLTBRIDGE_HTTP_HOST", &cfg.HTTP.Host)
	setInt("VOLTBRIDGE_HTTP_PORT", &cfg.HTTP.Port)

	// InfluxDB
	setStr("VOLTBRIDGE_INFLUXDB_TOKEN", &cfg.InfluxDB.Token)

	// Security
	setStr("VOLTBRIDGE_WEB_PASSWORD", &cfg.Security.WebPassword)
	setStr("VOLTBRIDGE_JWT_SECRET", &cfg.Security.JWT.Secret)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Bridge.DataDir == "" {
		errs = append(errs, "bridge.data_dir is required")
	}
	if c.Bridge.PollIntervalMs < 1000 {
		errs = append(errs, "bridge.poll_interval_ms must be at least 1000")
	}
	if c.Bridge.RetentionDays < 1 {
		errs = append(errs, "bridge.retention_days must be at least 1")
	}
	switch c.Bridge.Device.Transport {
	case "", "snmp", "serial", "mock":
	default:
		errs = append(errs, "bridge.device.transport must be snmp, serial, or mock")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.TopicPrefix == "" ||
		strings.ContainsAny(c.MQTT.TopicPrefix, "+#") ||
		strings.HasPrefix(c.MQTT.TopicPrefix, "/") ||
		strings.HasSuffix(c.MQTT.TopicPrefix, "/") {
		errs = append(errs, "mqtt.topic_prefix must be a plain topic segment")
	}
	if c.MQTT.QueueLimit < 1 {
		errs = append(errs, "mqtt.queue_limit must be positive")
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		errs = append(errs, "http.port must be between 1 and 65535")
	}

	// The session secret only matters once a web password is set. Requiring
	// it unconditionally would break password-less LAN deployments.
	const minJWTSecretLength = 32
	if c.Security.WebPassword != "" {
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required when web_password is set (set VOLTBRIDGE_JWT_SECRET)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// PollInterval returns the poll cycle period as a Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Bridge.PollIntervalMs) * time.Millisecond
}

// Retention returns the raw sample retention window as a Duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Bridge.RetentionDays) * 24 * time.Hour
}

// GetReadTimeout returns the HTTP read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.HTTP.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the HTTP write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.HTTP.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the HTTP idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.HTTP.Timeouts.Idle) * time.Second
}

// SessionTTL returns the web session lifetime as a Duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Security.JWT.SessionTTL) * time.Minute
}
