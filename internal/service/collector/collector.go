package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/oshokin/telemetry-monitor/internal/domain/telemetry"
	"github.com/oshokin/telemetry-monitor/internal/logger"
)

// dataType is announced for every sensor in the manifest.
const dataType = "float"

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// WeatherSource returns the current weather.
type WeatherSource interface {
	Current(ctx context.Context) (Weather, error)
}

// Sensors names the machine and its two sensors.
type Sensors struct {
	MachineID     string
	TemperatureID string
	HumidityID    string
	// TopicPrefix precedes "/<machine_id>/<sensor_id>".
	TopicPrefix string
	// RegistrationTopic receives the manifest.
	RegistrationTopic string
}

// Collector turns weather observations into sensor readings.
type Collector struct {
	sensors   Sensors
	source    WeatherSource
	publisher Publisher
	interval  time.Duration
	// now is replaced in tests.
	now func() time.Time
}

// New creates a collector.
func New(sensors Sensors, source WeatherSource, publisher Publisher, interval time.Duration) *Collector {
	return &Collector{
		sensors:   sensors,
		source:    source,
		publisher: publisher,
		interval:  interval,
		now:       time.Now,
	}
}

// Manifest returns the registration message for the machine.
func (c *Collector) Manifest() *telemetry.Manifest {
	seconds := int(c.interval / time.Second)

	return &telemetry.Manifest{
		MachineID: c.sensors.MachineID,
		Sensors: []telemetry.SensorDescriptor{
			{SensorID: c.sensors.TemperatureID, DataType: dataType, DataInterval: seconds},
			{SensorID: c.sensors.HumidityID, DataType: dataType, DataInterval: seconds},
		},
	}
}

// Register publishes the manifest.
func (c *Collector) Register(ctx context.Context) error {
	raw, err := c.Manifest().Encode()
	if err != nil {
		return err
	}

	if err = c.publisher.Publish(ctx, c.sensors.RegistrationTopic, raw); err != nil {
		return fmt.Errorf("publish manifest: %w", err)
	}

	logger.InfoKV(ctx, "Manifest published", "topic", c.sensors.RegistrationTopic, "machine_id", c.sensors.MachineID)

	return nil
}

// Collect fetches the weather once and publishes both readings.
func (c *Collector) Collect(ctx context.Context) error {
	weather, err := c.source.Current(ctx)
	if err != nil {
		return fmt.Errorf("fetch weather: %w", err)
	}

	timestamp := c.now().UTC().Format(telemetry.TimestampLayout)

	readings := []struct {
		sensorID string
		value    float64
	}{
		{c.sensors.TemperatureID, weather.Temperature},
		{c.sensors.HumidityID, weather.Humidity},
	}

	for _, r := range readings {
		payload, encodeErr := telemetry.EncodePayload(r.value, timestamp)
		if encodeErr != nil {
			return fmt.Errorf("encode payload: %w", encodeErr)
		}

		topic := telemetry.SensorTopic(c.sensors.TopicPrefix, c.sensors.MachineID, r.sensorID)
		if err = c.publisher.Publish(ctx, topic, payload); err != nil {
			return fmt.Errorf("publish %s: %w", topic, err)
		}
	}

	logger.InfoKV(ctx, "Published temperature and humidity",
		"temperature", weather.Temperature,
		"humidity", weather.Humidity,
		"timestamp", timestamp)

	return nil
}

// Loop collects immediately and then every interval until ctx is canceled.
// A failed cycle is logged and skipped.
func (c *Collector) Loop(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if err := c.Collect(ctx); err != nil && ctx.Err() == nil {
			logger.WarnKV(ctx, "Collection cycle skipped", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
