package broker

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"

	"github.com/oshokin/telemetry-monitor/internal/logger"
)

const listenerID = "telemetry-tcp"

// Broker is a running embedded broker.
type Broker struct {
	server  *mochi.Server
	address string
}

// Start listens on address and serves MQTT clients without authentication.
// A ":0" port is resolved to a free port before the listener starts.
func Start(ctx context.Context, address string) (*Broker, error) {
	resolved, err := resolveAddress(address)
	if err != nil {
		return nil, err
	}

	server := mochi.New(&mochi.Options{
		// mochi only accepts an slog logger; keep it to warnings.
		Logger: slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelWarn})),
	})

	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, fmt.Errorf("add auth hook: %w", err)
	}

	tcp := listeners.NewTCP(listeners.Config{
		ID:      listenerID,
		Type:    "tcp",
		Address: resolved,
	})

	if err := server.AddListener(tcp); err != nil {
		return nil, fmt.Errorf("add listener %s: %w", resolved, err)
	}

	if err := server.Serve(); err != nil {
		return nil, fmt.Errorf("serve broker: %w", err)
	}

	logger.InfoKV(ctx, "Embedded broker listening", "address", resolved)

	return &Broker{server: server, address: resolved}, nil
}

// Address returns the listen address with the port resolved.
func (b *Broker) Address() string {
	return b.address
}

// URL returns a tcp:// URL clients can dial.
func (b *Broker) URL() string {
	host, port, err := net.SplitHostPort(b.address)
	if err != nil || host == "" || host == "::" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}

	return "tcp://" + net.JoinHostPort(host, port)
}

// Close stops the listener and disconnects every client.
func (b *Broker) Close() error {
	if err := b.server.Close(); err != nil {
		return fmt.Errorf("close broker: %w", err)
	}

	return nil
}

func resolveAddress(address string) (string, error) {
	if !strings.HasSuffix(address, ":0") {
		return address, nil
	}

	lis, err := net.Listen("tcp", address)
	if err != nil {
		return "", fmt.Errorf("resolve broker address %s: %w", address, err)
	}

	resolved := lis.Addr().String()

	if err := lis.Close(); err != nil {
		return "", fmt.Errorf("release probe listener: %w", err)
	}

	return resolved, nil
}
