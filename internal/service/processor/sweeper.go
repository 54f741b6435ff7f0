package processor

import (
	"context"
	"time"

	"github.com/oshokin/telemetry-monitor/internal/domain/telemetry"
	"github.com/oshokin/telemetry-monitor/internal/logger"
	"github.com/oshokin/telemetry-monitor/internal/metrics"
	"github.com/oshokin/telemetry-monitor/internal/repository/state"
)

// Sweeper ages every tracked sensor once per interval and raises inactivity alarms.
type Sweeper struct {
	// store holds the per-sensor state.
	store *state.Store
	// writer persists inactivity alarms.
	writer *Writer
	// recorder counts ticks.
	recorder *metrics.Recorder
	// interval is the tick period.
	interval time.Duration
	// threshold is the missed-period count that raises an alarm.
	threshold int
}

// NewSweeper creates a sweeper over the given store.
func NewSweeper(
	store *state.Store,
	writer *Writer,
	recorder *metrics.Recorder,
	interval time.Duration,
	threshold int,
) *Sweeper {
	return &Sweeper{
		store:     store,
		writer:    writer,
		recorder:  recorder,
		interval:  interval,
		threshold: threshold,
	}
}

// Tick performs one sweep and returns the number of inactivity alarms raised.
// Sensors past the threshold alarm on every tick until they report again.
func (s *Sweeper) Tick(ctx context.Context) int {
	entries := s.store.SweepTick()
	s.recorder.SweepTicked()

	raised := 0

	for _, entry := range entries {
		if entry.State.MissedPeriods < s.threshold {
			continue
		}

		logger.WarnKV(ctx, "Sensor inactive",
			"machine_id", entry.Key.MachineID,
			"kind", entry.Key.Kind,
			"missed_periods", entry.State.MissedPeriods,
			"last_timestamp", entry.State.LastTimestamp)

		s.writer.WriteAlarm(ctx, telemetry.AlarmEvent{
			MachineID: entry.Key.MachineID,
			Type:      telemetry.AlarmInactive,
			Timestamp: entry.State.LastTimestamp,
		})

		raised++
	}

	return raised
}

// Run ticks until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "sweeper")

	logger.InfoKV(ctx, "Inactivity sweep started",
		"interval", s.interval.String(),
		"threshold", s.threshold)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Inactivity sweep stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}
