package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/telemetry-monitor/internal/config"
	"github.com/oshokin/telemetry-monitor/internal/domain/telemetry"
	"github.com/oshokin/telemetry-monitor/internal/repository/record"
	"github.com/oshokin/telemetry-monitor/internal/service/collector"
)

// TestCollector_FeedsProcessor runs the collector against a fake weather API and a live processor.
func TestCollector_FeedsProcessor(t *testing.T) {
	t.Parallel()

	weather := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"main": {"temp": 18.5, "humidity": 65}}`))
	}))
	t.Cleanup(weather.Close)

	cfg := processorConfig(t)
	cfg.Processor.SweepInterval = time.Minute

	sink := record.NewMemorySink()
	endpoints := startProcessor(t, cfg, sink)

	collectorCfg := config.Default()
	collectorCfg.MQTT.BrokerURL = endpoints.BrokerURL
	collectorCfg.MQTT.ClientID = "integration-collector"
	collectorCfg.Collector.APIURL = weather.URL
	collectorCfg.Collector.APIKey = "test-key"
	collectorCfg.Collector.Interval = 50 * time.Millisecond

	cfgPath := filepath.Join(t.TempDir(), "collector.yaml")
	require.NoError(t, config.Save(cfgPath, collectorCfg))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- collector.Run(ctx, &collector.Options{ConfigPath: cfgPath})
	}()

	// The first cycle only seeds state; later cycles produce band alarms.
	require.Eventually(t, func() bool {
		return countType(sink, telemetry.AlarmLowTemperature) > 0 && countType(sink, telemetry.AlarmHighHumidity) > 0
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	for _, reading := range sink.Readings() {
		require.Equal(t, config.DefaultMachineID, reading.MachineID)
	}
}

func countType(sink *record.MemorySink, alarmType telemetry.AlarmType) int {
	count := 0

	for _, alarm := range sink.Alarms() {
		if alarm.Type == alarmType {
			count++
		}
	}

	return count
}
