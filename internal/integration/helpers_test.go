package integration

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/telemetry-monitor/internal/config"
	"github.com/oshokin/telemetry-monitor/internal/repository/record"
	"github.com/oshokin/telemetry-monitor/internal/service/processor"
	"github.com/oshokin/telemetry-monitor/internal/transport/mqtt"
)

// reservePort returns a loopback address that was free a moment ago.
func reservePort(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	_ = l.Close()

	return addr
}

// processorConfig returns a fast-sweeping configuration with an embedded broker.
func processorConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.MQTT.EmbeddedBroker.Enabled = true
	cfg.MQTT.EmbeddedBroker.Address = reservePort(t)
	cfg.MQTT.ReconnectMin = 50 * time.Millisecond
	cfg.MQTT.ReconnectMax = 200 * time.Millisecond
	cfg.Metrics.Address = "127.0.0.1:0"
	cfg.Health.Address = "127.0.0.1:0"
	cfg.Processor.SweepInterval = 100 * time.Millisecond
	cfg.Storage.Driver = config.DriverMemory

	return cfg
}

// startProcessor saves cfg, runs the processor on it and waits for readiness.
func startProcessor(t *testing.T, cfg *config.Config, sink *record.MemorySink) processor.Endpoints {
	t.Helper()

	cfgPath := filepath.Join(t.TempDir(), "processor.yaml")
	require.NoError(t, config.Save(cfgPath, cfg))

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan processor.Endpoints, 1)
	done := make(chan error, 1)

	go func() {
		done <- processor.Run(ctx, &processor.Options{
			ConfigPath: cfgPath,
			Sink:       sink,
			OnReady:    func(e processor.Endpoints) { ready <- e },
		})
	}()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	select {
	case endpoints := <-ready:
		return endpoints
	case err := <-done:
		require.FailNow(t, "processor stopped before ready", "error: %v", err)
	case <-time.After(10 * time.Second):
		require.FailNow(t, "processor did not become ready")
	}

	return processor.Endpoints{}
}

// startPublisher connects a plain MQTT client to brokerURL.
func startPublisher(t *testing.T, brokerURL string) *mqtt.Client {
	t.Helper()

	client, err := mqtt.New(mqtt.Config{
		BrokerURL:    brokerURL,
		ClientID:     "integration-publisher",
		QoS:          1,
		ReconnectMin: 50 * time.Millisecond,
		ReconnectMax: 200 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		_ = client.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	awaitCtx, awaitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer awaitCancel()

	require.NoError(t, client.AwaitConnection(awaitCtx))

	return client
}
