package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/oshokin/telemetry-monitor/internal/domain/threshold"
	"github.com/oshokin/telemetry-monitor/internal/logger"
	"github.com/oshokin/telemetry-monitor/internal/metrics"
	"github.com/oshokin/telemetry-monitor/internal/repository/record"
	"github.com/oshokin/telemetry-monitor/internal/repository/state"
)

const (
	temperatureTopic = "/sensors/machine_01/sensor_temperature"
	humidityTopic    = "/sensors/machine_01/sensor_humidity"
	registration     = "/sensor_monitors"
)

var errSinkDown = errors.New("sink down")

// engine bundles a gateway and sweeper sharing one store for tests.
type engine struct {
	store    *state.Store
	sink     *record.MemorySink
	recorder *metrics.Recorder
	gateway  *Gateway
	sweeper  *Sweeper
}

func newEngine(t *testing.T) *engine {
	t.Helper()

	e := &engine{
		store:    state.NewStore(),
		sink:     record.NewMemorySink(),
		recorder: metrics.NewRecorder(),
	}

	writer := NewWriter(e.sink, e.recorder, 0)
	e.gateway = NewGateway(e.store, threshold.NewClassifier(threshold.DefaultBands()), writer, e.recorder,
		WithRegistrationTopic(registration))
	e.sweeper = NewSweeper(e.store, writer, e.recorder, 10, 3)

	return e
}

// observedContext returns a context whose logger records entries at debug and above.
func observedContext() (context.Context, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)

	return logger.ToContext(context.Background(), zap.New(core).Sugar()), logs
}

func payload(value, timestamp string) []byte {
	return []byte(`{"value": ` + value + `, "timestamp": "` + timestamp + `"}`)
}

// counter sums every series of the named counter.
func (e *engine) counter(t *testing.T, name string) float64 {
	t.Helper()

	families, err := e.recorder.Registry().Gather()
	require.NoError(t, err)

	total := 0.0

	for _, family := range families {
		if family.GetName() != name {
			continue
		}

		for _, m := range family.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}

	return total
}
