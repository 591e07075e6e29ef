package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends supported by the device-list persistence layer.
const (
	StoreBackendSQLite = "sqlite"
	StoreBackendRedis  = "redis"
)

// Config is the root configuration structure for the vhome bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge    BridgeConfig    `yaml:"bridge"`
	Store     StoreConfig     `yaml:"store"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Connector ConnectorConfig `yaml:"connector"`
	Host      HostConfig      `yaml:"host"`
	Pairing   PairingConfig   `yaml:"pairing"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Advert    AdvertConfig    `yaml:"advert"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BridgeConfig contains the identity the bridge presents to the cloud and
// to the local network.
type BridgeConfig struct {
	// MAC is the bridge's hardware identity. Required: nothing can be
	// advertised or bound without it.
	MAC         string `yaml:"mac"`
	AppName     string `yaml:"app_name"`
	Version     string `yaml:"version"`
	HardVersion string `yaml:"hard_version"`
	Vendor      string `yaml:"vendor"`
	// InternalURL is the base URL of the host platform advertised over mDNS.
	InternalURL string `yaml:"internal_url"`
	// DeviceID is the host device registry id that represents the bridge
	// itself. Disabling that device disconnects the bridge.
	DeviceID string `yaml:"device_id"`
	// EntryID is the host config entry of the bridge integration, reloaded
	// after the bridge is removed from the cloud.
	EntryID string `yaml:"entry_id"`
	// CommandPacing is the delay (seconds) inserted between consecutive host
	// service calls produced by one inbound command.
	CommandPacing int `yaml:"command_pacing"`
	// ReportDebounce is the delay (seconds) before the addable-device list
	// is re-reported after registry churn.
	ReportDebounce int `yaml:"report_debounce"`
}

// StoreConfig selects the persistence backend for the registered device set.
type StoreConfig struct {
	Backend string `yaml:"backend"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// RedisConfig contains Redis connection settings for the redis store backend.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
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

// ConnectorConfig contains settings for the cloud connector adapter.
type ConnectorConfig struct {
	// TopicPrefix is the MQTT topic root the connector daemon listens on.
	TopicPrefix string `yaml:"topic_prefix"`
	// RequestTimeout bounds every request/response round trip (seconds).
	RequestTimeout int `yaml:"request_timeout"`
	// QueueSize is the capacity of the inbound message channel.
	QueueSize int `yaml:"queue_size"`
}

// HostConfig contains settings for the host platform adapter.
type HostConfig struct {
	TopicPrefix    string `yaml:"topic_prefix"`
	RequestTimeout int    `yaml:"request_timeout"`

	// TemperatureUnit is the unit system default ("°C", "°F" or "K") used
	// for entities that do not report their own unit.
	TemperatureUnit string `yaml:"temperature_unit"`
}

// PairingConfig contains bind-code flow settings.
type PairingConfig struct {
	QRExpiry     int `yaml:"qr_expiry"`
	LANExpiry    int `yaml:"lan_expiry"`
	PollInterval int `yaml:"poll_interval"`
}

// ReconnectConfig contains cloud reconnection settings.
type ReconnectConfig struct {
	Backoff int `yaml:"backoff"`
}

// AdvertConfig contains mDNS advertisement settings.
type AdvertConfig struct {
	Enabled bool   `yaml:"enabled"`
	Service string `yaml:"service"`
	Domain  string `yaml:"domain"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	MaxClients     int    `yaml:"max_clients"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
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
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: VHOMEBRIDGE_SECTION_KEY
// For example: VHOMEBRIDGE_BRIDGE_MAC, VHOMEBRIDGE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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
		Bridge: BridgeConfig{
			AppName:        "vhome-bridge",
			Version:        "1.0.0",
			HardVersion:    "1.0.0",
			Vendor:         "vhome",
			InternalURL:    "http://homeassistant.local:8123",
			CommandPacing:  2,
			ReportDebounce: 2,
		},
		Store: StoreConfig{
			Backend: StoreBackendSQLite,
		},
		Database: DatabaseConfig{
			Path:        "./data/vhomebridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "vhomebridge:",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "vhome-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Connector: ConnectorConfig{
			TopicPrefix:    "vhome/cloud",
			RequestTimeout: 10,
			QueueSize:      256,
		},
		Host: HostConfig{
			TopicPrefix:     "vhome/host",
			RequestTimeout:  10,
			TemperatureUnit: "°C",
		},
		Pairing: PairingConfig{
			QRExpiry:     300,
			LANExpiry:    60,
			PollInterval: 2,
		},
		Reconnect: ReconnectConfig{
			Backoff: 5,
		},
		Advert: AdvertConfig{
			Enabled: true,
			Service: "_vhome._tcp",
			Domain:  "local.",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8099,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			MaxClients:     32,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: VHOMEBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Bridge identity
	if v := os.Getenv("VHOMEBRIDGE_BRIDGE_MAC"); v != "" {
		cfg.Bridge.MAC = v
	}
	if v := os.Getenv("VHOMEBRIDGE_BRIDGE_INTERNAL_URL"); v != "" {
		cfg.Bridge.InternalURL = v
	}

	// Store
	if v := os.Getenv("VHOMEBRIDGE_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("VHOMEBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("VHOMEBRIDGE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("VHOMEBRIDGE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	// MQTT
	if v := os.Getenv("VHOMEBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("VHOMEBRIDGE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("VHOMEBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("VHOMEBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("VHOMEBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("VHOMEBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Bridge.MAC == "" {
		errs = append(errs, "bridge.mac is required (set VHOMEBRIDGE_BRIDGE_MAC environment variable)")
	}
	if c.Bridge.AppName == "" {
		errs = append(errs, "bridge.app_name is required")
	}
	if c.Bridge.CommandPacing < 0 {
		errs = append(errs, "bridge.command_pacing must not be negative")
	}

	switch c.Store.Backend {
	case StoreBackendSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite store")
		}
	case StoreBackendRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, "redis.addr is required for the redis store")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.backend must be %q or %q", StoreBackendSQLite, StoreBackendRedis))
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Connector.TopicPrefix == "" {
		errs = append(errs, "connector.topic_prefix is required")
	}
	if c.Connector.RequestTimeout <= 0 {
		errs = append(errs, "connector.request_timeout must be positive")
	}
	if c.Host.TopicPrefix == "" {
		errs = append(errs, "host.topic_prefix is required")
	}

	if c.Pairing.PollInterval <= 0 {
		errs = append(errs, "pairing.poll_interval must be positive")
	}
	if c.Reconnect.Backoff <= 0 {
		errs = append(errs, "reconnect.backoff must be positive")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetCommandPacing returns the delay between paced host service calls.
func (c *Config) GetCommandPacing() time.Duration {
	return time.Duration(c.Bridge.CommandPacing) * time.Second
}

// GetReportDebounce returns the addable-device report debounce window.
func (c *Config) GetReportDebounce() time.Duration {
	return time.Duration(c.Bridge.ReportDebounce) * time.Second
}

// GetConnectorTimeout returns the connector request timeout as a Duration.
func (c *Config) GetConnectorTimeout() time.Duration {
	return time.Duration(c.Connector.RequestTimeout) * time.Second
}

// GetHostTimeout returns the host adapter request timeout as a Duration.
func (c *Config) GetHostTimeout() time.Duration {
	return time.Duration(c.Host.RequestTimeout) * time.Second
}

// GetPollInterval returns the pairing poll interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Pairing.PollInterval) * time.Second
}

// GetReconnectBackoff returns the fixed reconnect backoff as a Duration.
func (c *Config) GetReconnectBackoff() time.Duration {
	return time.Duration(c.Reconnect.Backoff) * time.Second
}
