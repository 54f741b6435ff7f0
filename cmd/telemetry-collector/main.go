// Command telemetry-collector publishes weather observations as machine telemetry.
package main

import "github.com/oshokin/telemetry-monitor/cmd/telemetry-collector/cmd"

func main() {
	cmd.Execute()
}
