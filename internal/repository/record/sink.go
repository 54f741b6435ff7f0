package record

import (
	"context"

	"github.com/oshokin/telemetry-monitor/internal/domain/telemetry"
)

// Sink appends reading and alarm records.
type Sink interface {
	WriteReading(ctx context.Context, reading telemetry.Reading) error
	WriteAlarm(ctx context.Context, alarm telemetry.AlarmEvent) error
	Name() string
}
