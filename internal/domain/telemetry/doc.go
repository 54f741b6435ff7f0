// Package telemetry contains core domain types for sensor telemetry.
//
// It defines the sensor identity (SensorKind, SensorKey), the ephemeral
// Reading decoded from the bus, the per-sensor SensorState owned by the state
// store, and the AlarmEvent produced by classification and inactivity checks.
// Topic routing and inbound payload decoding live here as well because the
// wire schema is part of the domain contract.
package telemetry
