package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
)

// SensorDescriptor describes one sensor announced by a machine.
type SensorDescriptor struct {
	SensorID     string `json:"sensor_id"`
	DataType     string `json:"data_type"`
	DataInterval int    `json:"data_interval"`
}

// Manifest is the one-time registration message a machine publishes on start.
type Manifest struct {
	MachineID string             `json:"machine_id"`
	Sensors   []SensorDescriptor `json:"sensors"`
}

var errEmptyMachineID = errors.New("machine_id is empty")

// DecodeManifest decodes a registration manifest.
func DecodeManifest(raw []byte) (*Manifest, error) {
	var manifest Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	if manifest.MachineID == "" {
		return nil, errEmptyMachineID
	}

	return &manifest, nil
}

// SensorIDs returns the announced sensor identifiers in manifest order.
func (m *Manifest) SensorIDs() []string {
	ids := make([]string, 0, len(m.Sensors))
	for _, s := range m.Sensors {
		ids = append(ids, s.SensorID)
	}

	return ids
}

// Encode renders the manifest in the wire schema.
func (m *Manifest) Encode() ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	return raw, nil
}
