package telemetry

// AlarmType names an alarm record.
type AlarmType string

const (
	AlarmLowTemperature  AlarmType = "low_temperature"
	AlarmGoodTemperature AlarmType = "good_temperature"
	AlarmHighTemperature AlarmType = "high_temperature"
	AlarmLowHumidity     AlarmType = "low_humidity"
	AlarmGoodHumidity    AlarmType = "good_humidity"
	AlarmHighHumidity    AlarmType = "high_humidity"
	// AlarmInactive is raised by the inactivity sweep.
	AlarmInactive AlarmType = "inactive"
)

// AlarmEvent is a derived alarm ready for persistence.
type AlarmEvent struct {
	// MachineID is the machine the alarm refers to.
	MachineID string
	// Type is the band name or AlarmInactive.
	Type AlarmType
	// Timestamp is the timestamp of the reading that caused the alarm.
	Timestamp string
}
