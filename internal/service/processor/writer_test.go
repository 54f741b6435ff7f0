package processor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/telemetry-monitor/internal/domain/telemetry"
	"github.com/oshokin/telemetry-monitor/internal/metrics"
	"github.com/oshokin/telemetry-monitor/internal/repository/record"
)

// slowSink blocks every write until its context ends.
type slowSink struct{}

func (slowSink) Name() string { return "slow" }

func (slowSink) WriteReading(ctx context.Context, _ telemetry.Reading) error {
	<-ctx.Done()

	return ctx.Err()
}

func (slowSink) WriteAlarm(ctx context.Context, _ telemetry.AlarmEvent) error {
	<-ctx.Done()

	return ctx.Err()
}

var _ record.Sink = slowSink{}

// TestWriter_TimeoutBoundsSlowSink returns once the persist timeout elapses.
func TestWriter_TimeoutBoundsSlowSink(t *testing.T) {
	t.Parallel()

	ctx, logs := observedContext()
	writer := NewWriter(slowSink{}, metrics.NewRecorder(), 20*time.Millisecond)

	started := time.Now()
	writer.WriteReading(ctx, telemetry.Reading{MachineID: "m", SensorID: "s"})
	writer.WriteAlarm(ctx, telemetry.AlarmEvent{MachineID: "m", Type: telemetry.AlarmInactive})

	require.Less(t, time.Since(started), 2*time.Second)
	require.Equal(t, 1, logs.FilterMessage("Failed to persist reading").Len())
	require.Equal(t, 1, logs.FilterMessage("Failed to persist alarm").Len())
}

// TestWriter_CountsSuccess stores records and counts them.
func TestWriter_CountsSuccess(t *testing.T) {
	t.Parallel()

	sink := record.NewMemorySink()
	writer := NewWriter(sink, metrics.NewRecorder(), 0)

	writer.WriteReading(context.Background(), telemetry.Reading{MachineID: "m", SensorID: "s", Value: 1})
	writer.WriteAlarm(context.Background(), telemetry.AlarmEvent{MachineID: "m", Type: telemetry.AlarmGoodHumidity})

	require.Len(t, sink.Readings(), 1)
	require.Len(t, sink.Alarms(), 1)
}
