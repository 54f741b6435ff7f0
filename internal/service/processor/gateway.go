package processor

import (
	"context"

	"github.com/oshokin/telemetry-monitor/internal/domain/telemetry"
	"github.com/oshokin/telemetry-monitor/internal/domain/threshold"
	"github.com/oshokin/telemetry-monitor/internal/logger"
	"github.com/oshokin/telemetry-monitor/internal/metrics"
	"github.com/oshokin/telemetry-monitor/internal/repository/state"
)

// Gateway turns inbound messages into state updates and records.
// It is safe for concurrent use.
type Gateway struct {
	// store holds the per-sensor state.
	store *state.Store
	// classifier maps a reading to its band alarm.
	classifier *threshold.Classifier
	// writer persists readings and alarms.
	writer *Writer
	// recorder counts routed, ignored and dropped messages.
	recorder *metrics.Recorder
	// registrationTopic carries machine manifests; empty disables them.
	registrationTopic string
}

// GatewayOption customizes a Gateway.
type GatewayOption func(*Gateway)

// WithRegistrationTopic makes the gateway log manifests received on topic.
func WithRegistrationTopic(topic string) GatewayOption {
	return func(g *Gateway) {
		g.registrationTopic = topic
	}
}

// NewGateway creates a gateway over the given store.
func NewGateway(
	store *state.Store,
	classifier *threshold.Classifier,
	writer *Writer,
	recorder *metrics.Recorder,
	opts ...GatewayOption,
) *Gateway {
	g := &Gateway{
		store:      store,
		classifier: classifier,
		writer:     writer,
		recorder:   recorder,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// HandleMessage processes one inbound message. It never fails; problems are logged.
func (g *Gateway) HandleMessage(ctx context.Context, topic string, payload []byte) {
	ctx = logger.WithName(ctx, "gateway")

	if g.registrationTopic != "" && topic == g.registrationTopic {
		g.handleRegistration(ctx, payload)

		return
	}

	route, ok := telemetry.ParseTopic(topic)
	if !ok {
		g.recorder.MessageIgnored()
		logger.DebugKV(ctx, "Ignoring message on unroutable topic", "topic", topic)

		return
	}

	g.recorder.MessageReceived(string(route.Kind))

	reading, err := telemetry.DecodeReading(route, payload)
	if err != nil {
		g.recorder.DecodeFailed()
		logger.WarnKV(ctx, "Dropping undecodable message", "topic", topic, "error", err)

		return
	}

	// The store lock is released before any sink call.
	_, existed := g.store.Upsert(reading.Key(), reading.Value, reading.Timestamp)
	if !existed {
		g.recorder.SetTrackedSensors(g.store.Len())
		logger.InfoKV(ctx, "New sensor observed",
			"machine_id", reading.MachineID,
			"sensor_id", reading.SensorID,
			"kind", reading.Kind,
			"value", reading.Value)

		return
	}

	g.writer.WriteReading(ctx, reading)

	g.writer.WriteAlarm(ctx, telemetry.AlarmEvent{
		MachineID: reading.MachineID,
		Type:      g.classifier.Classify(reading.Kind, reading.Value),
		Timestamp: reading.Timestamp,
	})
}

func (g *Gateway) handleRegistration(ctx context.Context, payload []byte) {
	manifest, err := telemetry.DecodeManifest(payload)
	if err != nil {
		g.recorder.DecodeFailed()
		logger.WarnKV(ctx, "Dropping undecodable registration", "error", err)

		return
	}

	g.recorder.RegistrationReceived()
	logger.InfoKV(ctx, "Machine registered",
		"machine_id", manifest.MachineID,
		"sensors", manifest.SensorIDs())
}
