package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/telemetry-monitor/internal/api/grpc/health"
	"github.com/oshokin/telemetry-monitor/internal/domain/telemetry"
	"github.com/oshokin/telemetry-monitor/internal/metrics"
	"github.com/oshokin/telemetry-monitor/internal/repository/record"
	"github.com/oshokin/telemetry-monitor/internal/service/common"
	"github.com/oshokin/telemetry-monitor/internal/service/stats"
)

const temperatureTopic = "/sensors/machine_01/sensor_temperature"

func hasAlarm(sink *record.MemorySink, want telemetry.AlarmEvent) bool {
	for _, alarm := range sink.Alarms() {
		if alarm == want {
			return true
		}
	}

	return false
}

// TestProcessor_EndToEnd publishes readings over MQTT and checks records, health and metrics.
func TestProcessor_EndToEnd(t *testing.T) {
	t.Parallel()

	sink := record.NewMemorySink()
	endpoints := startProcessor(t, processorConfig(t), sink)
	publisher := startPublisher(t, endpoints.BrokerURL)
	ctx := context.Background()

	manifest := &telemetry.Manifest{
		MachineID: "machine_01",
		Sensors:   []telemetry.SensorDescriptor{{SensorID: "sensor_temperature", DataType: "float", DataInterval: 10}},
	}
	raw, err := manifest.Encode()
	require.NoError(t, err)
	require.NoError(t, publisher.Publish(ctx, "/sensor_monitors", raw))

	first, err := telemetry.EncodePayload(22, "2024-01-01T00:00:00Z")
	require.NoError(t, err)
	require.NoError(t, publisher.Publish(ctx, temperatureTopic, first))

	second, err := telemetry.EncodePayload(28, "2024-01-01T00:00:10Z")
	require.NoError(t, err)
	require.NoError(t, publisher.Publish(ctx, temperatureTopic, second))

	require.NoError(t, publisher.Publish(ctx, temperatureTopic, []byte("{not json")))

	require.Eventually(t, func() bool {
		return len(sink.Readings()) == 1
	}, 5*time.Second, 20*time.Millisecond)

	require.InDelta(t, 28.0, sink.Readings()[0].Value, 0)
	require.True(t, hasAlarm(sink, telemetry.AlarmEvent{
		MachineID: "machine_01",
		Type:      telemetry.AlarmHighTemperature,
		Timestamp: "2024-01-01T00:00:10Z",
	}))

	// No further readings, so the sweep marks the sensor inactive.
	require.Eventually(t, func() bool {
		return hasAlarm(sink, telemetry.AlarmEvent{
			MachineID: "machine_01",
			Type:      telemetry.AlarmInactive,
			Timestamp: "2024-01-01T00:00:10Z",
		})
	}, 5*time.Second, 20*time.Millisecond)

	client, err := common.Dial(ctx, endpoints.Health)
	require.NoError(t, err)

	defer func() {
		_ = client.Close()
	}()

	require.Eventually(t, func() bool {
		status, checkErr := client.Check(ctx, health.ServiceName)

		return checkErr == nil && status == healthpb.HealthCheckResponse_SERVING
	}, 5*time.Second, 20*time.Millisecond)

	snapshot, err := stats.Fetch(ctx, http.DefaultClient, "http://"+endpoints.Metrics+metrics.Path)
	require.NoError(t, err)
	require.InDelta(t, 1.0, snapshot.ReadingsPersisted, 0)
	require.InDelta(t, 1.0, snapshot.DecodeFailures, 0)
	require.InDelta(t, 1.0, snapshot.Registrations, 0)
	require.InDelta(t, 1.0, snapshot.TrackedSensors, 0)
	require.GreaterOrEqual(t, snapshot.AlarmsByType[string(telemetry.AlarmInactive)], 1.0)
}
