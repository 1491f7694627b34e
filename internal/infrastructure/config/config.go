package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Gray Logic Radio.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	System      SystemConfig      `yaml:"system"`
	Transmitter TransmitterConfig `yaml:"transmitter"`
	Database    DatabaseConfig    `yaml:"database"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	API         APIConfig         `yaml:"api"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	TSDB        TSDBConfig        `yaml:"tsdb"`
	Logging     LoggingConfig     `yaml:"logging"`
	Security    SecurityConfig    `yaml:"security"`
	Simulator   SimulatorConfig   `yaml:"simulator"`
}

// SystemConfig contains deployment-wide identification.
type SystemConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	DataDir     string `yaml:"data_dir"`
}

// TransmitterConfig contains the device session settings.
type TransmitterConfig struct {
	Host                 string          `yaml:"host"`
	Port                 int             `yaml:"port"`
	AutoConnect          bool            `yaml:"auto_connect"`
	PollIntervalMs       int             `yaml:"poll_interval_ms"`
	ConnectTimeoutMs     int             `yaml:"connect_timeout_ms"`
	CommandTimeoutMs     int             `yaml:"command_timeout_ms"`
	MaxConsecutiveErrors int             `yaml:"max_consecutive_errors"`
	Reconnect            ReconnectConfig `yaml:"reconnect"`
	Watchdog             WatchdogConfig  `yaml:"watchdog"`
}

// ReconnectConfig contains the backoff policy for lost sessions.
type ReconnectConfig struct {
	MaxAttempts    int     `yaml:"max_attempts"`
	InitialDelayMs int     `yaml:"initial_delay_ms"`
	MaxDelayMs     int     `yaml:"max_delay_ms"`
	Multiplier     float64 `yaml:"multiplier"`
}

// WatchdogConfig mirrors the device-side watchdog contract.
type WatchdogConfig struct {
	TimeoutS     int     `yaml:"timeout_s"`
	WarnFraction float64 `yaml:"warn_fraction"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
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
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB telemetry sink settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// TSDBConfig contains VictoriaMetrics telemetry sink settings.
type TSDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	FlushInterval int    `yaml:"flush_interval"`
	BatchSize     int    `yaml:"batch_size"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// BootstrapConfig seeds the first admin operator on an empty database.
type BootstrapConfig struct {
	AdminUsername string `yaml:"admin_username"`
	AdminPassword string `yaml:"admin_password"`
}

// SimulatorConfig controls the in-process device simulator.
type SimulatorConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Listen           string `yaml:"listen"`
	WatchdogTimeoutS int    `yaml:"watchdog_timeout_s"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYRADIO_SECTION_KEY
// For example: GRAYRADIO_DATABASE_PATH, GRAYRADIO_TRANSMITTER_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
//
// Transmitter timing defaults match the device firmware contract:
// a 5 s hardware watchdog fed every 500 ms.
func defaultConfig() *Config {
	return &Config{
		System: SystemConfig{
			Name:        "gray-logic-radio",
			Environment: "production",
			DataDir:     "./data",
		},
		Transmitter: TransmitterConfig{
			Host:                 "192.168.1.100",
			Port:                 5000,
			PollIntervalMs:       500,
			ConnectTimeoutMs:     5000,
			CommandTimeoutMs:     2000,
			MaxConsecutiveErrors: 3,
			Reconnect: ReconnectConfig{
				MaxAttempts:    5,
				InitialDelayMs: 1000,
				MaxDelayMs:     8000,
				Multiplier:     2.0,
			},
			Watchdog: WatchdogConfig{
				TimeoutS:     5,
				WarnFraction: 0.6,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/grayradio.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "grayradio-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 15,
			},
		},
		Simulator: SimulatorConfig{
			Listen:           "127.0.0.1:5000",
			WatchdogTimeoutS: 5,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYRADIO_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("GRAYRADIO_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Transmitter
	if v := os.Getenv("GRAYRADIO_TRANSMITTER_HOST"); v != "" {
		cfg.Transmitter.Host = v
	}
	if v := os.Getenv("GRAYRADIO_TRANSMITTER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Transmitter.Port = port
		}
	}

	// MQTT
	if v := os.Getenv("GRAYRADIO_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYRADIO_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYRADIO_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("GRAYRADIO_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYRADIO_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - JWT secret (IMPORTANT: always override in production)
	if v := os.Getenv("GRAYRADIO_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("GRAYRADIO_BOOTSTRAP_ADMIN_PASSWORD"); v != "" {
		cfg.Security.Bootstrap.AdminPassword = v
	}
}

// Validate checks the configuration for errors and safety issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// System validation
	if c.System.Name == "" {
		errs = append(errs, "system.name is required")
	}

	// Transmitter validation. The poll interval must stay well inside
	// the device watchdog window or the hardware will cut the carrier
	// between heartbeats.
	if c.Transmitter.Host == "" {
		errs = append(errs, "transmitter.host is required")
	}
	if c.Transmitter.Port < 1 || c.Transmitter.Port > 65535 {
		errs = append(errs, "transmitter.port must be between 1 and 65535")
	}
	if c.Transmitter.PollIntervalMs <= 0 {
		errs = append(errs, "transmitter.poll_interval_ms must be positive")
	}
	if c.Transmitter.Watchdog.TimeoutS <= 0 {
		errs = append(errs, "transmitter.watchdog.timeout_s must be positive")
	}
	if c.Transmitter.PollIntervalMs > 0 && c.Transmitter.Watchdog.TimeoutS > 0 &&
		time.Duration(c.Transmitter.PollIntervalMs)*time.Millisecond >= time.Duration(c.Transmitter.Watchdog.TimeoutS)*time.Second {
		errs = append(errs, "transmitter.poll_interval_ms must be shorter than transmitter.watchdog.timeout_s")
	}
	if c.Transmitter.Reconnect.Multiplier < 1 {
		errs = append(errs, "transmitter.reconnect.multiplier must be >= 1")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Security validation - JWT secret is REQUIRED
	// The API arms and keys a physical RF transmitter. Empty or weak
	// secrets would allow forged tokens to control the carrier.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set GRAYRADIO_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// TransmitterAddr returns the device control endpoint as host:port.
func (c *Config) TransmitterAddr() string {
	return fmt.Sprintf("%s:%d", c.Transmitter.Host, c.Transmitter.Port)
}

// GetPollInterval returns the transmitter poll interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Transmitter.PollIntervalMs) * time.Millisecond
}

// GetConnectTimeout returns the transmitter connect timeout as a Duration.
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.Transmitter.ConnectTimeoutMs) * time.Millisecond
}

// GetCommandTimeout returns the transmitter command timeout as a Duration.
func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Transmitter.CommandTimeoutMs) * time.Millisecond
}

// GetWatchdogTimeout returns the device watchdog window as a Duration.
func (c *Config) GetWatchdogTimeout() time.Duration {
	return time.Duration(c.Transmitter.Watchdog.TimeoutS) * time.Second
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
