package processor

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/telemetry-monitor/internal/domain/telemetry"
	"github.com/oshokin/telemetry-monitor/internal/metrics"
)

// TestGateway_FirstObservationSeedsOnly records nothing for a previously unseen key.
func TestGateway_FirstObservationSeedsOnly(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	ctx, logs := observedContext()

	e.gateway.HandleMessage(ctx, temperatureTopic, payload("22", "2024-01-01T00:00:00Z"))

	require.Empty(t, e.sink.Readings())
	require.Empty(t, e.sink.Alarms())

	got, ok := e.store.Get(telemetry.SensorKey{MachineID: "machine_01", Kind: telemetry.KindTemperature})
	require.True(t, ok)
	require.InDelta(t, 22.0, got.LastValue, 0)
	require.Equal(t, "2024-01-01T00:00:00Z", got.LastTimestamp)
	require.Zero(t, got.MissedPeriods)
	require.Equal(t, 1, logs.FilterMessage("New sensor observed").Len())
}

// TestGateway_SecondReadingPersistsReadingAndBand writes one reading and one band alarm.
func TestGateway_SecondReadingPersistsReadingAndBand(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	ctx := context.Background()

	e.gateway.HandleMessage(ctx, temperatureTopic, payload("22", "2024-01-01T00:00:00Z"))
	e.gateway.HandleMessage(ctx, temperatureTopic, payload("28", "2024-01-01T00:00:10Z"))

	require.Equal(t, []telemetry.Reading{{
		MachineID: "machine_01",
		SensorID:  "sensor_temperature",
		Kind:      telemetry.KindTemperature,
		Value:     28,
		Timestamp: "2024-01-01T00:00:10Z",
	}}, e.sink.Readings())
	require.Equal(t, []telemetry.AlarmEvent{{
		MachineID: "machine_01",
		Type:      telemetry.AlarmHighTemperature,
		Timestamp: "2024-01-01T00:00:10Z",
	}}, e.sink.Alarms())
}

// TestGateway_GoodBandIsRecorded ensures in-range readings still produce a band alarm.
func TestGateway_GoodBandIsRecorded(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	ctx := context.Background()

	e.gateway.HandleMessage(ctx, humidityTopic, payload("50", "2024-01-01T00:00:00Z"))
	e.gateway.HandleMessage(ctx, humidityTopic, payload("40", "2024-01-01T00:00:10Z"))
	e.gateway.HandleMessage(ctx, humidityTopic, payload("61", "2024-01-01T00:00:20Z"))

	alarms := e.sink.Alarms()
	require.Len(t, alarms, 2)
	require.Equal(t, telemetry.AlarmGoodHumidity, alarms[0].Type)
	require.Equal(t, telemetry.AlarmHighHumidity, alarms[1].Type)
	require.Len(t, e.sink.Readings(), 2)
}

// TestGateway_ReadingResetsMissedPeriods ensures a fresh reading zeroes the counter.
func TestGateway_ReadingResetsMissedPeriods(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	ctx := context.Background()
	key := telemetry.SensorKey{MachineID: "machine_01", Kind: telemetry.KindHumidity}

	e.gateway.HandleMessage(ctx, humidityTopic, payload("50", "2024-01-01T00:00:00Z"))
	e.sweeper.Tick(ctx)
	e.sweeper.Tick(ctx)

	got, _ := e.store.Get(key)
	require.Equal(t, 2, got.MissedPeriods)

	e.gateway.HandleMessage(ctx, humidityTopic, payload("35", "2024-01-01T00:00:30Z"))

	got, _ = e.store.Get(key)
	require.Zero(t, got.MissedPeriods)
	require.Equal(t, telemetry.AlarmLowHumidity, e.sink.Alarms()[0].Type)
}

// TestGateway_DecodeFailureDropsMessage leaves state untouched and logs a warning.
func TestGateway_DecodeFailureDropsMessage(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	ctx, logs := observedContext()

	e.gateway.HandleMessage(ctx, temperatureTopic, []byte("{not json"))
	e.gateway.HandleMessage(ctx, temperatureTopic, []byte(`{"timestamp": "2024-01-01T00:00:00Z"}`))

	require.Zero(t, e.store.Len())
	require.Empty(t, e.sink.Readings())
	require.Empty(t, e.sink.Alarms())
	require.Equal(t, 2, logs.FilterMessage("Dropping undecodable message").Len())
	require.InDelta(t, 2.0, e.counter(t, metrics.DecodeFailuresName), 0)
}

// TestGateway_MalformedTimestampNeverSeedsState keeps non-ISO-8601 readings out of the store.
func TestGateway_MalformedTimestampNeverSeedsState(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	ctx, logs := observedContext()

	e.gateway.HandleMessage(ctx, temperatureTopic, payload("22", "2024-01-01T00:00:00Z"))
	e.gateway.HandleMessage(ctx, temperatureTopic, payload("28", "yesterday"))

	got, ok := e.store.Get(telemetry.SensorKey{MachineID: "machine_01", Kind: telemetry.KindTemperature})
	require.True(t, ok)
	require.Equal(t, "2024-01-01T00:00:00Z", got.LastTimestamp)
	require.Empty(t, e.sink.Readings())
	require.Empty(t, e.sink.Alarms())
	require.Equal(t, 1, logs.FilterMessage("Dropping undecodable message").Len())
}

// TestGateway_LogsUnderOwnScope names the gateway logger regardless of the caller's scope.
func TestGateway_LogsUnderOwnScope(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	ctx, logs := observedContext()

	e.gateway.HandleMessage(ctx, temperatureTopic, payload("22", "2024-01-01T00:00:00Z"))
	e.gateway.HandleMessage(ctx, temperatureTopic, []byte("{not json"))

	entries := logs.All()
	require.Len(t, entries, 2)

	for _, entry := range entries {
		require.Equal(t, "gateway", entry.LoggerName)
	}
}

// TestGateway_UnroutableTopicIgnored discards topics without a sensor kind.
func TestGateway_UnroutableTopicIgnored(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	ctx := context.Background()

	e.gateway.HandleMessage(ctx, "/sensors/machine_01/sensor_pressure", payload("1", "2024-01-01T00:00:00Z"))
	e.gateway.HandleMessage(ctx, "temperature", payload("1", "2024-01-01T00:00:00Z"))

	require.Zero(t, e.store.Len())
	require.Empty(t, e.sink.Alarms())
	require.InDelta(t, 2.0, e.counter(t, metrics.MessagesIgnoredName), 0)
}

// TestGateway_RegistrationIsInformational logs manifests without touching state.
func TestGateway_RegistrationIsInformational(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	ctx, logs := observedContext()

	manifest := []byte(`{"machine_id": "machine_01", "sensors": [
		{"sensor_id": "sensor_temperature", "data_type": "float", "data_interval": 10}
	]}`)

	e.gateway.HandleMessage(ctx, registration, manifest)
	e.gateway.HandleMessage(ctx, registration, []byte("{}"))

	require.Zero(t, e.store.Len())
	require.Equal(t, 1, logs.FilterMessage("Machine registered").Len())
	require.Equal(t, 1, logs.FilterMessage("Dropping undecodable registration").Len())
}

// TestGateway_PersistenceFailureIsNotFatal logs sink errors and keeps processing.
func TestGateway_PersistenceFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	ctx, logs := observedContext()

	e.sink.FailWith(errSinkDown, errSinkDown)

	e.gateway.HandleMessage(ctx, temperatureTopic, payload("22", "2024-01-01T00:00:00Z"))
	e.gateway.HandleMessage(ctx, temperatureTopic, payload("18", "2024-01-01T00:00:10Z"))

	require.Equal(t, 1, logs.FilterMessage("Failed to persist reading").Len())
	require.Equal(t, 1, logs.FilterMessage("Failed to persist alarm").Len())

	e.sink.FailWith(nil, nil)
	e.gateway.HandleMessage(ctx, temperatureTopic, payload("21", "2024-01-01T00:00:20Z"))

	require.Len(t, e.sink.Readings(), 1)
	require.Equal(t, telemetry.AlarmGoodTemperature, e.sink.Alarms()[0].Type)
}

// TestGateway_ConcurrentKeysWithSweep never loses updates across keys.
func TestGateway_ConcurrentKeysWithSweep(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	ctx := context.Background()

	const readings = 200

	var wg sync.WaitGroup

	for _, topic := range []string{temperatureTopic, humidityTopic} {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range readings {
				e.gateway.HandleMessage(ctx, topic, payload("50", "2024-01-01T00:00:00Z"))
			}
		}()
	}

	wg.Add(1)

	go func() {
		defer wg.Done()

		for range readings {
			e.sweeper.Tick(ctx)
		}
	}()

	wg.Wait()

	require.Equal(t, 2, e.store.Len())
	require.Len(t, e.sink.Readings(), 2*(readings-1))

	for _, kind := range []telemetry.SensorKind{telemetry.KindTemperature, telemetry.KindHumidity} {
		got, ok := e.store.Get(telemetry.SensorKey{MachineID: "machine_01", Kind: kind})
		require.True(t, ok)
		require.LessOrEqual(t, got.MissedPeriods, readings)
	}
}
