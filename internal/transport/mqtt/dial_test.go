package mqtt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestParseBrokerURL covers schemes and default ports.
func TestParseBrokerURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		address string
		secure  bool
	}{
		{"tcp://localhost:1883", "localhost:1883", false},
		{"mqtt://broker", "broker:1883", false},
		{"ssl://broker", "broker:8883", true},
		{"mqtts://broker:9999", "broker:9999", true},
		{"tls://10.0.0.1", "10.0.0.1:8883", true},
	}

	for _, tt := range tests {
		ep, err := parseBrokerURL(tt.raw)
		require.NoError(t, err, tt.raw)
		require.Equal(t, tt.address, ep.address, tt.raw)
		require.Equal(t, tt.secure, ep.secure, tt.raw)
	}

	_, err := parseBrokerURL("ws://broker:80")
	require.ErrorIs(t, err, ErrUnsupportedScheme)

	_, err = parseBrokerURL("tcp://")
	require.Error(t, err)
}
