// Command telemetry-processor ingests sensor telemetry from MQTT, classifies
// readings, detects inactive sensors and persists readings and alarms.
package main

import "github.com/oshokin/telemetry-monitor/cmd/telemetry-processor/cmd"

func main() {
	cmd.Execute()
}
