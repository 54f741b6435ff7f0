package collector

import (
	"context"
	"fmt"
	"net/http"

	"github.com/oshokin/telemetry-monitor/internal/config"
	"github.com/oshokin/telemetry-monitor/internal/logger"
	"github.com/oshokin/telemetry-monitor/internal/service/common"
	"github.com/oshokin/telemetry-monitor/internal/transport/mqtt"
	"github.com/oshokin/telemetry-monitor/internal/version"
)

// BinaryName names the collector in logs and generated client ids.
const BinaryName = "telemetry-collector"

// Options controls the collector process and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// LogLevel overrides log.level from the configuration.
	LogLevel string
	// BrokerURL overrides mqtt.broker_url.
	BrokerURL string
	// APIKey overrides collector.api_key.
	APIKey string
}

// Run connects to the broker, registers the machine and publishes until ctx is canceled.
func Run(ctx context.Context, opts *Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}

	if opts.BrokerURL != "" {
		cfg.MQTT.BrokerURL = opts.BrokerURL
	}

	if opts.APIKey != "" {
		cfg.Collector.APIKey = opts.APIKey
	}

	if err = config.ValidateCollector(cfg); err != nil {
		return err
	}

	levelOK := logger.Configure(cfg.Log.Level, cfg.Log.Format)
	ctx = logger.WithName(ctx, BinaryName)

	if !levelOK {
		logger.WarnKV(ctx, "Unknown log level, using info", "level", cfg.Log.Level)
	}

	logger.InfoKV(ctx, "Starting collector", version.KV()...)

	return run(ctx, cfg)
}

func run(ctx context.Context, cfg *config.Config) error {
	clientID := cfg.MQTT.ClientID
	if clientID == "" {
		var err error
		if clientID, err = common.ClientID(BinaryName); err != nil {
			return fmt.Errorf("generate client id: %w", err)
		}
	}

	client, err := mqtt.New(mqtt.Config{
		BrokerURL:      cfg.MQTT.BrokerURL,
		ClientID:       clientID,
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password,
		QoS:            cfg.MQTT.QoSLevel(),
		KeepAlive:      cfg.MQTT.KeepAlive,
		ConnectTimeout: cfg.MQTT.ConnectTimeout,
		ReconnectMin:   cfg.MQTT.ReconnectMin,
		ReconnectMax:   cfg.MQTT.ReconnectMax,
	})
	if err != nil {
		return fmt.Errorf("create mqtt client: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)

	go func() {
		done <- client.Run(ctx)
	}()

	if err = client.AwaitConnection(ctx); err != nil {
		return <-done
	}

	weather := NewWeatherClient(
		&http.Client{Timeout: cfg.Collector.RequestTimeout},
		cfg.Collector.APIURL,
		cfg.Collector.APIKey,
		cfg.Collector.City,
		cfg.Collector.Units,
	)

	c := New(Sensors{
		MachineID:         cfg.Collector.MachineID,
		TemperatureID:     cfg.Collector.TemperatureSensorID,
		HumidityID:        cfg.Collector.HumiditySensorID,
		TopicPrefix:       cfg.Collector.TopicPrefix,
		RegistrationTopic: cfg.MQTT.RegistrationTopic,
	}, weather, client, cfg.Collector.Interval)

	if err = c.Register(ctx); err != nil {
		logger.WarnKV(ctx, "Registration failed", "error", err)
	}

	c.Loop(ctx)

	cancel()

	return <-done
}
