package processor

import (
	"context"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/telemetry-monitor/internal/domain/telemetry"
	"github.com/oshokin/telemetry-monitor/internal/metrics"
	"github.com/oshokin/telemetry-monitor/internal/repository/record"
	"github.com/oshokin/telemetry-monitor/internal/repository/state"
)

// TestSweeper_ScenarioFromSeedToInactive walks seed, high reading and three silent ticks.
func TestSweeper_ScenarioFromSeedToInactive(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	ctx := context.Background()

	e.gateway.HandleMessage(ctx, temperatureTopic, payload("22", "2024-01-01T00:00:00Z"))
	e.gateway.HandleMessage(ctx, temperatureTopic, payload("28", "2024-01-01T00:00:10Z"))

	require.Len(t, e.sink.Readings(), 1)
	require.Equal(t, telemetry.AlarmHighTemperature, e.sink.Alarms()[0].Type)

	require.Zero(t, e.sweeper.Tick(ctx))
	require.Zero(t, e.sweeper.Tick(ctx))
	require.Equal(t, 1, e.sweeper.Tick(ctx))

	alarms := e.sink.Alarms()
	require.Len(t, alarms, 2)
	require.Equal(t, telemetry.AlarmEvent{
		MachineID: "machine_01",
		Type:      telemetry.AlarmInactive,
		Timestamp: "2024-01-01T00:00:10Z",
	}, alarms[1])
}

// TestSweeper_RefiresEveryTickPastThreshold emits on ticks 3, 4 and 5 alike.
func TestSweeper_RefiresEveryTickPastThreshold(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	ctx := context.Background()

	e.gateway.HandleMessage(ctx, humidityTopic, payload("45", "2024-01-01T00:00:00Z"))

	raised := make([]int, 0, 5)
	for range 5 {
		raised = append(raised, e.sweeper.Tick(ctx))
	}

	require.Equal(t, []int{0, 0, 1, 1, 1}, raised)

	alarms := e.sink.Alarms()
	require.Len(t, alarms, 3)

	for _, alarm := range alarms {
		require.Equal(t, telemetry.AlarmInactive, alarm.Type)
		require.Equal(t, "2024-01-01T00:00:00Z", alarm.Timestamp)
	}

	got, _ := e.store.Get(telemetry.SensorKey{MachineID: "machine_01", Kind: telemetry.KindHumidity})
	require.Equal(t, 5, got.MissedPeriods)
	require.InDelta(t, 5.0, e.counter(t, metrics.SweepTicksName), 0)
}

// TestSweeper_CustomThreshold honors a threshold of one.
func TestSweeper_CustomThreshold(t *testing.T) {
	t.Parallel()

	store := state.NewStore()
	sink := record.NewMemorySink()
	recorder := metrics.NewRecorder()
	sweeper := NewSweeper(store, NewWriter(sink, recorder, 0), recorder, time.Second, 1)

	store.Upsert(telemetry.SensorKey{MachineID: "m", Kind: telemetry.KindTemperature}, 1, "2024-01-01T00:00:00Z")

	require.Equal(t, 1, sweeper.Tick(context.Background()))
	require.Len(t, sink.Alarms(), 1)
}

// TestSweeper_PersistenceFailureKeepsSweeping logs the failure and keeps counting.
func TestSweeper_PersistenceFailureKeepsSweeping(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	ctx, logs := observedContext()

	e.gateway.HandleMessage(ctx, temperatureTopic, payload("22", "2024-01-01T00:00:00Z"))
	e.sink.FailWith(nil, errSinkDown)

	for range 4 {
		e.sweeper.Tick(ctx)
	}

	require.Empty(t, e.sink.Alarms())
	require.Equal(t, 2, logs.FilterMessage("Failed to persist alarm").Len())
	require.Equal(t, 2, logs.FilterMessage("Sensor inactive").Len())
	require.InDelta(t, 2.0, e.counter(t, metrics.PersistenceFailuresName), 0)
}

// TestSweeper_RunTicksUntilCanceled drives the ticker with a fake clock.
func TestSweeper_RunTicksUntilCanceled(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		store := state.NewStore()
		sink := record.NewMemorySink()
		recorder := metrics.NewRecorder()
		sweeper := NewSweeper(store, NewWriter(sink, recorder, 0), recorder, 10*time.Second, 3)

		store.Upsert(telemetry.SensorKey{MachineID: "m", Kind: telemetry.KindHumidity}, 50, "2024-01-01T00:00:00Z")

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)

		go func() {
			done <- sweeper.Run(ctx)
		}()

		time.Sleep(35 * time.Second)
		synctest.Wait()

		require.Len(t, sink.Alarms(), 1)

		cancel()
		require.NoError(t, <-done)
	})
}
