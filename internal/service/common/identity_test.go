//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestClientID ensures generated ids carry the binary name and differ per call.
func TestClientID(t *testing.T) {
	t.Parallel()

	first, err := ClientID("telemetry-processor")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(first, "telemetry-processor-"))

	second, err := ClientID("telemetry-processor")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

// TestSanitize replaces characters outside the client id alphabet.
func TestSanitize(t *testing.T) {
	t.Parallel()

	require.Equal(t, "host_local_1", sanitize("host.local 1"))
	require.Equal(t, "ok-Name_9", sanitize("ok-Name_9"))
}
