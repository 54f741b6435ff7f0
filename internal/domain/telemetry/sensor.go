package telemetry

import "strings"

// SensorKind is the physical quantity a sensor reports.
type SensorKind string

const (
	// KindTemperature identifies temperature sensors.
	KindTemperature SensorKind = "temperature"
	// KindHumidity identifies humidity sensors.
	KindHumidity SensorKind = "humidity"
)

// SensorKey is the identity tuple used to index sensor state.
type SensorKey struct {
	// MachineID is the remote machine that owns the sensor.
	MachineID string
	// Kind is the reported quantity.
	Kind SensorKind
}

// String renders the key as "<machine>.<kind>", the metric path used by the
// original deployment.
func (k SensorKey) String() string {
	return k.MachineID + "." + string(k.Kind)
}

// Route is the sensor identity derived from an inbound topic.
type Route struct {
	// MachineID is the topic segment before the sensor segment.
	MachineID string
	// SensorID is the last topic segment (e.g. "sensor_temperature").
	SensorID string
	// Kind is derived from the topic by substring match.
	Kind SensorKind
}

// Key returns the state store key for the route.
func (r Route) Key() SensorKey {
	return SensorKey{
		MachineID: r.MachineID,
		Kind:      r.Kind,
	}
}

// KindFromTopic reports the sensor kind named by the topic.
// Temperature wins when a topic mentions both kinds.
func KindFromTopic(topic string) (SensorKind, bool) {
	switch {
	case strings.Contains(topic, string(KindTemperature)):
		return KindTemperature, true
	case strings.Contains(topic, string(KindHumidity)):
		return KindHumidity, true
	default:
		return "", false
	}
}

// ParseTopic derives the route from a topic shaped like
// "/sensors/<machine_id>/<sensor_id>". It returns false for topics that name
// no known sensor kind or carry fewer than two non-empty segments.
func ParseTopic(topic string) (Route, bool) {
	kind, ok := KindFromTopic(topic)
	if !ok {
		return Route{}, false
	}

	segments := make([]string, 0, 4)

	for _, segment := range strings.Split(topic, "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}

	if len(segments) < 2 {
		return Route{}, false
	}

	return Route{
		MachineID: segments[len(segments)-2],
		SensorID:  segments[len(segments)-1],
		Kind:      kind,
	}, true
}

// SensorTopic builds the publish topic for a machine sensor.
func SensorTopic(prefix, machineID, sensorID string) string {
	return strings.TrimRight(prefix, "/") + "/" + machineID + "/" + sensorID
}

// SensorState is the last known condition of one sensor.
type SensorState struct {
	// LastValue is the value of the most recent reading.
	LastValue float64
	// LastTimestamp is the timestamp string of the most recent reading.
	LastTimestamp string
	// MissedPeriods counts sweep ticks since the most recent reading.
	MissedPeriods int
}
