//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// clientIDSuffixLength keeps generated client ids readable.
const clientIDSuffixLength = 8

// ClientID builds an MQTT client id from the binary name, the hostname and a random suffix.
func ClientID(binary string) (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("hostname: %w", err)
	}

	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:clientIDSuffixLength]

	return fmt.Sprintf("%s-%s-%s", binary, sanitize(hostname), suffix), nil
}

// sanitize keeps letters, digits, dashes and underscores.
func sanitize(value string) string {
	var b strings.Builder

	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	return b.String()
}
