package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/telemetry-monitor/internal/domain/threshold"
	"github.com/oshokin/telemetry-monitor/internal/repository/record"
)

// Config holds the settings for the processor and the collector.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Processor ProcessorConfig `yaml:"processor"`
	Storage   StorageConfig   `yaml:"storage"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Health    HealthConfig    `yaml:"health"`
	Collector CollectorConfig `yaml:"collector"`
}

// LogConfig controls log output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is console or json.
	Format string `yaml:"format"`
}

// MQTTConfig describes the broker connection and topics.
type MQTTConfig struct {
	// BrokerURL is tcp://, mqtt://, ssl://, tls:// or mqtts:// with host and port.
	BrokerURL string `yaml:"broker_url"`
	// ClientID is generated when empty.
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// QoS is used for subscriptions and publishes. Nil means DefaultQoS.
	QoS *byte `yaml:"qos"`
	// KeepAlive is the MQTT keep-alive interval.
	KeepAlive time.Duration `yaml:"keep_alive"`
	// ConnectTimeout bounds a single connection attempt.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// ReconnectMin and ReconnectMax bound the reconnect backoff.
	ReconnectMin time.Duration `yaml:"reconnect_min"`
	ReconnectMax time.Duration `yaml:"reconnect_max"`
	// SensorTopics are the subscriptions carrying readings.
	SensorTopics []string `yaml:"sensor_topics"`
	// RegistrationTopic carries machine manifests.
	RegistrationTopic string `yaml:"registration_topic"`
	// EmbeddedBroker starts an in-process broker next to the processor.
	EmbeddedBroker EmbeddedBrokerConfig `yaml:"embedded_broker"`
}

// EmbeddedBrokerConfig controls the in-process broker.
type EmbeddedBrokerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// ProcessorConfig controls the processing engine.
type ProcessorConfig struct {
	// SweepInterval is the period of the inactivity sweep.
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// InactivityThreshold is the missed-period count that raises an inactive alarm.
	InactivityThreshold int `yaml:"inactivity_threshold"`
	// PersistTimeout bounds each sink write; zero means unbounded.
	PersistTimeout time.Duration `yaml:"persist_timeout"`
	// Thresholds are the classifier cut-points.
	Thresholds threshold.Bands `yaml:"thresholds"`
}

// StorageConfig selects and configures the persistence sink.
type StorageConfig struct {
	// Driver is log, postgres or memory.
	Driver        string `yaml:"driver"`
	DSN           string `yaml:"dsn"`
	ReadingsTable string `yaml:"readings_table"`
	AlarmsTable   string `yaml:"alarms_table"`
	MaxOpenConns  int    `yaml:"max_open_conns"`
	// AutoMigrate creates the tables on start. A nil value means true.
	AutoMigrate *bool `yaml:"auto_migrate"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Address is the HTTP listen address; "-" disables the endpoint.
	Address string `yaml:"address"`
}

// HealthConfig configures the gRPC health endpoint.
type HealthConfig struct {
	// Address is the gRPC listen address; "-" disables the endpoint.
	Address string `yaml:"address"`
}

// CollectorConfig configures the weather collector.
type CollectorConfig struct {
	MachineID           string        `yaml:"machine_id"`
	TemperatureSensorID string        `yaml:"temperature_sensor_id"`
	HumiditySensorID    string        `yaml:"humidity_sensor_id"`
	TopicPrefix         string        `yaml:"topic_prefix"`
	APIURL              string        `yaml:"api_url"`
	APIKey              string        `yaml:"api_key"`
	City                string        `yaml:"city"`
	Units               string        `yaml:"units"`
	Interval            time.Duration `yaml:"interval"`
	RequestTimeout      time.Duration `yaml:"request_timeout"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "telemetry-monitor.yaml"
	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	DefaultBrokerURL         = "tcp://localhost:1883"
	DefaultQoS               = 1
	DefaultKeepAlive         = 20 * time.Second
	DefaultConnectTimeout    = 10 * time.Second
	DefaultReconnectMin      = time.Second
	DefaultReconnectMax      = 30 * time.Second
	DefaultSensorTopic       = "/sensors/#"
	DefaultRegistrationTopic = "/sensor_monitors"
	DefaultEmbeddedAddress   = ":1883"

	// DefaultSweepInterval is the inactivity sweep period.
	DefaultSweepInterval = 10 * time.Second
	// DefaultInactivityThreshold is the missed-period count that raises an inactive alarm.
	DefaultInactivityThreshold = 3

	DriverLog      = "log"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	DefaultMaxOpenConns  = 4
	DefaultMetricsAddr   = ":9100"
	DefaultHealthAddr    = ":50051"
	DefaultSensorsPrefix = "/sensors"

	DefaultMachineID           = "machine_01"
	DefaultTemperatureSensorID = "sensor_temperature"
	DefaultHumiditySensorID    = "sensor_humidity"
	DefaultWeatherAPIURL       = "https://api.openweathermap.org/data/2.5/weather"
	DefaultCity                = "Belo Horizonte,BR"
	DefaultUnits               = "metric"
	DefaultCollectInterval     = 10 * time.Second
	DefaultRequestTimeout      = 10 * time.Second
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("invalid configuration")
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := new(Config)
	cfg.ApplyDefaults()

	return cfg
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}

	clone := *c
	clone.MQTT.SensorTopics = slices.Clone(c.MQTT.SensorTopics)

	if c.MQTT.QoS != nil {
		qos := *c.MQTT.QoS
		clone.MQTT.QoS = &qos
	}

	if c.Storage.AutoMigrate != nil {
		migrate := *c.Storage.AutoMigrate
		clone.Storage.AutoMigrate = &migrate
	}

	return &clone
}

// Load reads configuration from the provided path, applies defaults and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	cfg.ApplyDefaults()

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file may hold broker and database credentials.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Log.Format == "" {
		c.Log.Format = "console"
	}

	c.MQTT.applyDefaults()
	c.Processor.applyDefaults()
	c.Storage.applyDefaults()

	// "-" keeps an endpoint disabled.
	if c.Metrics.Address == "" {
		c.Metrics.Address = DefaultMetricsAddr
	}

	if c.Health.Address == "" {
		c.Health.Address = DefaultHealthAddr
	}

	c.Collector.applyDefaults()
}

func (m *MQTTConfig) applyDefaults() {
	if m.BrokerURL == "" {
		m.BrokerURL = DefaultBrokerURL
	}

	if m.QoS == nil {
		qos := byte(DefaultQoS)
		m.QoS = &qos
	}

	if m.KeepAlive <= 0 {
		m.KeepAlive = DefaultKeepAlive
	}

	if m.ConnectTimeout <= 0 {
		m.ConnectTimeout = DefaultConnectTimeout
	}

	if m.ReconnectMin <= 0 {
		m.ReconnectMin = DefaultReconnectMin
	}

	if m.ReconnectMax <= 0 {
		m.ReconnectMax = DefaultReconnectMax
	}

	if len(m.SensorTopics) == 0 {
		m.SensorTopics = []string{DefaultSensorTopic}
	}

	if m.RegistrationTopic == "" {
		m.RegistrationTopic = DefaultRegistrationTopic
	}

	if m.EmbeddedBroker.Address == "" {
		m.EmbeddedBroker.Address = DefaultEmbeddedAddress
	}
}

func (p *ProcessorConfig) applyDefaults() {
	if p.SweepInterval == 0 {
		p.SweepInterval = DefaultSweepInterval
	}

	if p.InactivityThreshold == 0 {
		p.InactivityThreshold = DefaultInactivityThreshold
	}

	defaults := threshold.DefaultBands()
	if p.Thresholds.Temperature == (threshold.Band{}) {
		p.Thresholds.Temperature = defaults.Temperature
	}

	if p.Thresholds.Humidity == (threshold.Band{}) {
		p.Thresholds.Humidity = defaults.Humidity
	}
}

func (s *StorageConfig) applyDefaults() {
	if s.Driver == "" {
		s.Driver = DriverLog
	}

	if s.ReadingsTable == "" {
		s.ReadingsTable = record.DefaultReadingsTable
	}

	if s.AlarmsTable == "" {
		s.AlarmsTable = record.DefaultAlarmsTable
	}

	if s.MaxOpenConns <= 0 {
		s.MaxOpenConns = DefaultMaxOpenConns
	}

	if s.AutoMigrate == nil {
		enabled := true
		s.AutoMigrate = &enabled
	}
}

func (c *CollectorConfig) applyDefaults() {
	if c.MachineID == "" {
		c.MachineID = DefaultMachineID
	}

	if c.TemperatureSensorID == "" {
		c.TemperatureSensorID = DefaultTemperatureSensorID
	}

	if c.HumiditySensorID == "" {
		c.HumiditySensorID = DefaultHumiditySensorID
	}

	if c.TopicPrefix == "" {
		c.TopicPrefix = DefaultSensorsPrefix
	}

	if c.APIURL == "" {
		c.APIURL = DefaultWeatherAPIURL
	}

	if c.City == "" {
		c.City = DefaultCity
	}

	if c.Units == "" {
		c.Units = DefaultUnits
	}

	if c.Interval <= 0 {
		c.Interval = DefaultCollectInterval
	}

	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
}

// QoSLevel returns the configured QoS or DefaultQoS.
func (m *MQTTConfig) QoSLevel() byte {
	if m.QoS == nil {
		return DefaultQoS
	}

	return *m.QoS
}

// ShouldMigrate reports whether the sink schema is created on start.
func (s *StorageConfig) ShouldMigrate() bool {
	return s.AutoMigrate == nil || *s.AutoMigrate
}

// Enabled reports whether the address turns the endpoint on.
func Enabled(address string) bool {
	return address != "" && address != "-"
}

// Validate checks the settings used by the processor.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if err := validateMQTT(&cfg.MQTT); err != nil {
		return err
	}

	if cfg.Processor.SweepInterval <= 0 {
		return fmt.Errorf("%w: processor.sweep_interval must be positive", ErrInvalid)
	}

	if cfg.Processor.InactivityThreshold < 1 {
		return fmt.Errorf("%w: processor.inactivity_threshold must be at least 1", ErrInvalid)
	}

	if cfg.Processor.PersistTimeout < 0 {
		return fmt.Errorf("%w: processor.persist_timeout must not be negative", ErrInvalid)
	}

	if err := cfg.Processor.Thresholds.Validate(); err != nil {
		return fmt.Errorf("%w: processor.thresholds: %w", ErrInvalid, err)
	}

	return validateStorage(&cfg.Storage)
}

// ValidateCollector checks the settings used by the collector.
func ValidateCollector(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if err := validateMQTT(&cfg.MQTT); err != nil {
		return err
	}

	if cfg.Collector.MachineID == "" {
		return fmt.Errorf("%w: collector.machine_id is required", ErrInvalid)
	}

	if _, err := url.ParseRequestURI(cfg.Collector.APIURL); err != nil {
		return fmt.Errorf("%w: collector.api_url: %w", ErrInvalid, err)
	}

	return nil
}

func validateMQTT(m *MQTTConfig) error {
	u, err := url.Parse(m.BrokerURL)
	if err != nil {
		return fmt.Errorf("%w: mqtt.broker_url: %w", ErrInvalid, err)
	}

	switch u.Scheme {
	case "tcp", "mqtt", "ssl", "tls", "mqtts":
	default:
		return fmt.Errorf("%w: mqtt.broker_url: unsupported scheme %q", ErrInvalid, u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("%w: mqtt.broker_url: host is required", ErrInvalid)
	}

	if m.QoSLevel() > 2 {
		return fmt.Errorf("%w: mqtt.qos must be 0, 1 or 2", ErrInvalid)
	}

	if m.ReconnectMin > m.ReconnectMax {
		return fmt.Errorf("%w: mqtt.reconnect_min exceeds mqtt.reconnect_max", ErrInvalid)
	}

	return nil
}

func validateStorage(s *StorageConfig) error {
	switch s.Driver {
	case DriverLog, DriverMemory:
	case DriverPostgres:
		if s.DSN == "" {
			return fmt.Errorf("%w: storage.dsn is required for the postgres driver", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown storage.driver %q", ErrInvalid, s.Driver)
	}

	if err := record.ValidateTableName(s.ReadingsTable); err != nil {
		return fmt.Errorf("%w: storage.readings_table: %w", ErrInvalid, err)
	}

	if err := record.ValidateTableName(s.AlarmsTable); err != nil {
		return fmt.Errorf("%w: storage.alarms_table: %w", ErrInvalid, err)
	}

	return nil
}
