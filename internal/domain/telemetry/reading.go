package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/relvacode/iso8601"
)

// TimestampLayout is the wire format of reading timestamps.
const TimestampLayout = "2006-01-02T15:04:05Z"

var (
	// ErrMissingField is returned when a payload lacks a required field.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidTimestamp is returned when a payload timestamp is not ISO-8601.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// Reading is a single decoded measurement. It is never mutated after decode.
type Reading struct {
	// MachineID comes from the topic, never from the payload.
	MachineID string
	// SensorID is the sensor segment of the topic.
	SensorID string
	// Kind is the measured quantity.
	Kind SensorKind
	// Value is the measured value.
	Value float64
	// Timestamp is the producer timestamp, kept verbatim.
	Timestamp string
}

// Key returns the state store key for the reading.
func (r Reading) Key() SensorKey {
	return SensorKey{
		MachineID: r.MachineID,
		Kind:      r.Kind,
	}
}

// Payload is the inbound JSON body of a reading.
type Payload struct {
	Value     *float64 `json:"value"`
	Timestamp *string  `json:"timestamp"`
}

// DecodeReading decodes a raw payload and binds it to the route.
func DecodeReading(route Route, raw []byte) (Reading, error) {
	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Reading{}, fmt.Errorf("decode payload: %w", err)
	}

	if payload.Value == nil {
		return Reading{}, fmt.Errorf("%w: value", ErrMissingField)
	}

	if payload.Timestamp == nil {
		return Reading{}, fmt.Errorf("%w: timestamp", ErrMissingField)
	}

	if _, err := iso8601.ParseString(*payload.Timestamp); err != nil {
		return Reading{}, fmt.Errorf("%w %q: %w", ErrInvalidTimestamp, *payload.Timestamp, err)
	}

	return Reading{
		MachineID: route.MachineID,
		SensorID:  route.SensorID,
		Kind:      route.Kind,
		Value:     *payload.Value,
		Timestamp: *payload.Timestamp,
	}, nil
}

// EncodePayload renders a reading body in the wire schema.
func EncodePayload(value float64, timestamp string) ([]byte, error) {
	return json.Marshal(Payload{
		Value:     &value,
		Timestamp: &timestamp,
	})
}
