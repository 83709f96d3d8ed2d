package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-upnp/internal/upnp/wire"
)

// Config mirrors config.yaml. See configs/config.yaml for an annotated
// example.
type Config struct {
	Site         SiteConfig         `yaml:"site"`
	Database     DatabaseConfig     `yaml:"database"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	API          APIConfig          `yaml:"api"`
	InfluxDB     InfluxDBConfig     `yaml:"influxdb"`
	Logging      LoggingConfig      `yaml:"logging"`
	Processing   ProcessingConfig   `yaml:"processing"`
	Devices      DevicesConfig      `yaml:"devices"`
	ControlPoint ControlPointConfig `yaml:"control_point"`
	EventLog     EventLogConfig     `yaml:"event_log"`
}

// SiteConfig identifies the installation. The ID tags log entries and
// InfluxDB points.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig locates the SQLite event log.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig configures the bridge's broker connection.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig bounds the reconnect backoff, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig configures the HTTP server hosting the control and event
// endpoints of local devices and the JSON API.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`

	// PathPrefix is prepended to every device resource path.
	PathPrefix string `yaml:"path_prefix"`

	// MaxBodyBytes caps SOAP and NOTIFY request bodies.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig holds HTTP server timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig enables state and invocation telemetry. FlushInterval
// is in seconds.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// ProcessingConfig selects the SOAP and GENA processor strategies:
// "strict", "lenient" or "recovering".
type ProcessingConfig struct {
	SOAP string `yaml:"soap"`
	GENA string `yaml:"gena"`
}

// DevicesConfig locates the local device definitions.
type DevicesConfig struct {
	Path string `yaml:"path"`
}

// ControlPointConfig applies to actions invoked on remote devices.
type ControlPointConfig struct {
	Timeout   int    `yaml:"timeout"` // seconds
	UserAgent string `yaml:"user_agent"`
}

// EventLogConfig controls pruning of the event log.
type EventLogConfig struct {
	RetentionDays int `yaml:"retention_days"`
	PruneInterval int `yaml:"prune_interval"` // minutes
}

// Load reads path over the defaults, applies UPNPD_* environment
// overrides and validates the result.
//
// Returns:
//   - *Config: The validated configuration
//   - error: Read or parse failures, or ErrInvalidConfig listing every
//     problem found
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	problems := applyEnvOverrides(cfg)
	problems = append(problems, cfg.problems()...)
	if len(problems) > 0 {
		return nil, invalid(problems)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{ID: "site-001", Name: "upnpd"},
		Database: DatabaseConfig{
			Path:        "./data/upnpd.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker:    MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "upnpd"},
			QoS:       1,
			Reconnect: MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 60},
		},
		API: APIConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			Timeouts:     APITimeoutConfig{Read: 30, Write: 30, Idle: 60},
			PathPrefix:   "/upnp",
			MaxBodyBytes: 1 << 20,
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		// Devices in the field emit broken LastChange markup far more often
		// than broken control requests.
		Processing:   ProcessingConfig{SOAP: string(wire.Strict), GENA: string(wire.Recovering)},
		Devices:      DevicesConfig{Path: "./configs/devices.yaml"},
		ControlPoint: ControlPointConfig{Timeout: 10},
		EventLog:     EventLogConfig{RetentionDays: 30, PruneInterval: 60},
	}
}

// stringEnv lists the string settings that can be overridden, keyed by
// environment variable.
func stringEnv(cfg *Config) map[string]*string {
	return map[string]*string{
		"UPNPD_SITE_ID":         &cfg.Site.ID,
		"UPNPD_DATABASE_PATH":   &cfg.Database.Path,
		"UPNPD_MQTT_HOST":       &cfg.MQTT.Broker.Host,
		"UPNPD_MQTT_CLIENT_ID":  &cfg.MQTT.Broker.ClientID,
		"UPNPD_MQTT_USERNAME":   &cfg.MQTT.Auth.Username,
		"UPNPD_MQTT_PASSWORD":   &cfg.MQTT.Auth.Password,
		"UPNPD_API_HOST":        &cfg.API.Host,
		"UPNPD_INFLUXDB_URL":    &cfg.InfluxDB.URL,
		"UPNPD_INFLUXDB_TOKEN":  &cfg.InfluxDB.Token,
		"UPNPD_LOG_LEVEL":       &cfg.Logging.Level,
		"UPNPD_DEVICES_PATH":    &cfg.Devices.Path,
		"UPNPD_PROCESSING_SOAP": &cfg.Processing.SOAP,
		"UPNPD_PROCESSING_GENA": &cfg.Processing.GENA,
	}
}

func intEnv(cfg *Config) map[string]*int {
	return map[string]*int{
		"UPNPD_MQTT_PORT": &cfg.MQTT.Broker.Port,
		"UPNPD_API_PORT":  &cfg.API.Port,
	}
}

// applyEnvOverrides copies set UPNPD_* variables into cfg and returns a
// problem for each integer variable that does not parse.
func applyEnvOverrides(cfg *Config) []string {
	for name, field := range stringEnv(cfg) {
		if v := os.Getenv(name); v != "" {
			*field = v
		}
	}

	var problems []string
	for name, field := range intEnv(cfg) {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s=%q is not a number", name, v))
			continue
		}
		*field = n
	}
	return problems
}

// Validate reports every problem in c at once.
//
// Returns:
//   - error: ErrInvalidConfig listing the problems, or nil
func (c *Config) Validate() error {
	if problems := c.problems(); len(problems) > 0 {
		return invalid(problems)
	}
	return nil
}

func invalid(problems []string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}

func (c *Config) problems() []string {
	var errs []string
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, msg)
		}
	}

	check(c.Site.ID != "", "site.id is required")
	check(c.Database.Path != "", "database.path is required")

	check(c.MQTT.QoS >= 0 && c.MQTT.QoS <= 2, "mqtt.qos must be 0, 1, or 2")
	if c.MQTT.Enabled {
		check(c.MQTT.Broker.Host != "", "mqtt.broker.host is required when mqtt is enabled")
		check(validPort(c.MQTT.Broker.Port), "mqtt.broker.port must be between 1 and 65535")
	}

	check(validPort(c.API.Port), "api.port must be between 1 and 65535")
	check(c.API.PathPrefix == "" || strings.HasPrefix(c.API.PathPrefix, "/"), "api.path_prefix must start with /")
	check(!strings.HasSuffix(c.API.PathPrefix, "/"), "api.path_prefix must not end with /")
	check(c.API.MaxBodyBytes >= 0, "api.max_body_bytes must not be negative")
	if c.API.TLS.Enabled {
		check(c.API.TLS.CertFile != "" && c.API.TLS.KeyFile != "", "api.tls.cert_file and api.tls.key_file are required when tls is enabled")
	}

	_, soapErr := wire.ParseStrategy(c.Processing.SOAP)
	check(soapErr == nil, "processing.soap must be strict, lenient or recovering")
	_, genaErr := wire.ParseStrategy(c.Processing.GENA)
	check(genaErr == nil, "processing.gena must be strict, lenient or recovering")

	check(c.Devices.Path != "", "devices.path is required")
	check(c.ControlPoint.Timeout > 0, "control_point.timeout must be positive")

	check(c.EventLog.RetentionDays >= 0, "event_log.retention_days must not be negative")
	check(c.EventLog.PruneInterval >= 0, "event_log.prune_interval must not be negative")

	if c.InfluxDB.Enabled {
		check(c.InfluxDB.URL != "" && c.InfluxDB.Bucket != "", "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}
	return errs
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}

// ReadTimeout also bounds reading request headers.
func (t APITimeoutConfig) ReadTimeout() time.Duration {
	return time.Duration(t.Read) * time.Second
}

func (t APITimeoutConfig) WriteTimeout() time.Duration {
	return time.Duration(t.Write) * time.Second
}

func (t APITimeoutConfig) IdleTimeout() time.Duration {
	return time.Duration(t.Idle) * time.Second
}

// SOAPStrategy returns the SOAP processor strategy. Load has already
// rejected unknown names.
func (c *Config) SOAPStrategy() wire.Strategy {
	s, _ := wire.ParseStrategy(c.Processing.SOAP) //nolint:errcheck // Validated by Load
	return s
}

// GENAStrategy returns the GENA processor strategy.
func (c *Config) GENAStrategy() wire.Strategy {
	s, _ := wire.ParseStrategy(c.Processing.GENA) //nolint:errcheck // Validated by Load
	return s
}

// GetControlPointTimeout bounds each remote action invocation.
func (c *Config) GetControlPointTimeout() time.Duration {
	return time.Duration(c.ControlPoint.Timeout) * time.Second
}

// GetRetention returns how long event log entries are kept. Zero disables
// pruning.
func (c *Config) GetRetention() time.Duration {
	return time.Duration(c.EventLog.RetentionDays) * 24 * time.Hour
}

// GetPruneInterval returns how often the event log is pruned. Zero leaves
// the choice to the caller.
func (c *Config) GetPruneInterval() time.Duration {
	return time.Duration(c.EventLog.PruneInterval) * time.Minute
}
