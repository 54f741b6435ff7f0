package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
)

const (
	defaultPort    = "1883"
	defaultTLSPort = "8883"
)

// ErrUnsupportedScheme is returned for broker URLs that are not MQTT over TCP or TLS.
var ErrUnsupportedScheme = errors.New("unsupported broker scheme")

// endpoint is a resolved broker address.
type endpoint struct {
	address string
	secure  bool
}

// parseBrokerURL resolves tcp://, mqtt://, ssl://, tls:// and mqtts:// URLs.
func parseBrokerURL(raw string) (endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return endpoint{}, fmt.Errorf("parse broker url: %w", err)
	}

	var ep endpoint

	port := defaultPort

	switch u.Scheme {
	case "tcp", "mqtt":
	case "ssl", "tls", "mqtts":
		ep.secure = true
		port = defaultTLSPort
	default:
		return endpoint{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	if u.Port() != "" {
		port = u.Port()
	}

	if u.Hostname() == "" {
		return endpoint{}, fmt.Errorf("parse broker url: missing host in %q", raw)
	}

	ep.address = net.JoinHostPort(u.Hostname(), port)

	return ep, nil
}

// dial opens the network connection handed to paho.
func dial(ctx context.Context, ep endpoint, tlsConfig *tls.Config) (net.Conn, error) {
	if ep.secure {
		d := tls.Dialer{Config: tlsConfig}

		conn, err := d.DialContext(ctx, "tcp", ep.address)
		if err != nil {
			return nil, fmt.Errorf("dial tls %s: %w", ep.address, err)
		}

		return conn, nil
	}

	var d net.Dialer

	conn, err := d.DialContext(ctx, "tcp", ep.address)
	if err != nil {
		return nil, fmt.Errorf("dial tcp %s: %w", ep.address, err)
	}

	return conn, nil
}
