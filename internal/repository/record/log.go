package record

import (
	"context"

	"github.com/oshokin/telemetry-monitor/internal/domain/telemetry"
	"github.com/oshokin/telemetry-monitor/internal/logger"
)

// LogSink writes records as structured log lines. It never fails.
type LogSink struct{}

// NewLogSink creates a log-backed sink.
func NewLogSink() *LogSink {
	return &LogSink{}
}

// Name identifies the sink in logs and metrics.
func (*LogSink) Name() string { return "log" }

// WriteReading logs a reading record.
func (*LogSink) WriteReading(ctx context.Context, reading telemetry.Reading) error {
	logger.InfoKV(ctx, "Reading record",
		"machine_id", reading.MachineID,
		"sensor_id", reading.SensorID,
		"value", reading.Value,
		"timestamp", reading.Timestamp)

	return nil
}

// WriteAlarm logs an alarm record.
func (*LogSink) WriteAlarm(ctx context.Context, alarm telemetry.AlarmEvent) error {
	logger.InfoKV(ctx, "Alarm record",
		"machine_id", alarm.MachineID,
		"alarm_type", alarm.Type,
		"timestamp", alarm.Timestamp)

	return nil
}

var _ Sink = (*LogSink)(nil)
