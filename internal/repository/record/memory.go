package record

import (
	"context"
	"sync"

	"github.com/oshokin/telemetry-monitor/internal/domain/telemetry"
)

// MemorySink keeps records in memory in arrival order.
type MemorySink struct {
	mu       sync.Mutex
	readings []telemetry.Reading
	alarms   []telemetry.AlarmEvent

	// readingErr and alarmErr, when set, are returned instead of storing.
	readingErr error
	alarmErr   error
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Name identifies the sink in logs and metrics.
func (*MemorySink) Name() string { return "memory" }

// FailWith makes subsequent writes return the given errors. Nil restores
// normal behavior.
func (m *MemorySink) FailWith(readingErr, alarmErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.readingErr = readingErr
	m.alarmErr = alarmErr
}

// WriteReading stores a reading record.
func (m *MemorySink) WriteReading(_ context.Context, reading telemetry.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.readingErr != nil {
		return m.readingErr
	}

	m.readings = append(m.readings, reading)

	return nil
}

// WriteAlarm stores an alarm record.
func (m *MemorySink) WriteAlarm(_ context.Context, alarm telemetry.AlarmEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.alarmErr != nil {
		return m.alarmErr
	}

	m.alarms = append(m.alarms, alarm)

	return nil
}

// Readings returns a copy of the stored reading records.
func (m *MemorySink) Readings() []telemetry.Reading {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]telemetry.Reading, len(m.readings))
	copy(out, m.readings)

	return out
}

// Alarms returns a copy of the stored alarm records.
func (m *MemorySink) Alarms() []telemetry.AlarmEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]telemetry.AlarmEvent, len(m.alarms))
	copy(out, m.alarms)

	return out
}

var _ Sink = (*MemorySink)(nil)
