package processor

import (
	"context"
	"time"

	"github.com/oshokin/telemetry-monitor/internal/domain/telemetry"
	"github.com/oshokin/telemetry-monitor/internal/logger"
	"github.com/oshokin/telemetry-monitor/internal/metrics"
	"github.com/oshokin/telemetry-monitor/internal/repository/record"
)

// Writer forwards records to the sink. Failures are logged and counted, never returned.
type Writer struct {
	// sink receives the records.
	sink record.Sink
	// recorder counts successes, failures and latency.
	recorder *metrics.Recorder
	// timeout bounds each sink call; zero means unbounded.
	timeout time.Duration
}

// NewWriter creates a writer over sink.
func NewWriter(sink record.Sink, recorder *metrics.Recorder, timeout time.Duration) *Writer {
	return &Writer{
		sink:     sink,
		recorder: recorder,
		timeout:  timeout,
	}
}

// WriteReading stores a reading record.
func (w *Writer) WriteReading(ctx context.Context, reading telemetry.Reading) {
	callCtx, cancel := w.callContext(ctx)
	defer cancel()

	started := time.Now()
	err := w.sink.WriteReading(callCtx, reading)
	w.recorder.ObservePersist(metrics.RecordReading, time.Since(started))

	if err != nil {
		w.recorder.PersistenceFailed(metrics.RecordReading)
		logger.ErrorKV(ctx, "Failed to persist reading",
			"sink", w.sink.Name(),
			"machine_id", reading.MachineID,
			"sensor_id", reading.SensorID,
			"error", err)

		return
	}

	w.recorder.ReadingPersisted()
}

// WriteAlarm stores an alarm record.
func (w *Writer) WriteAlarm(ctx context.Context, alarm telemetry.AlarmEvent) {
	callCtx, cancel := w.callContext(ctx)
	defer cancel()

	started := time.Now()
	err := w.sink.WriteAlarm(callCtx, alarm)
	w.recorder.ObservePersist(metrics.RecordAlarm, time.Since(started))

	if err != nil {
		w.recorder.PersistenceFailed(metrics.RecordAlarm)
		logger.ErrorKV(ctx, "Failed to persist alarm",
			"sink", w.sink.Name(),
			"machine_id", alarm.MachineID,
			"alarm_type", alarm.Type,
			"error", err)

		return
	}

	w.recorder.AlarmEmitted(string(alarm.Type))
}

func (w *Writer) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if w.timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, w.timeout)
}
