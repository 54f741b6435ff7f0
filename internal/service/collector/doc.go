// Package collector polls a weather API and publishes the readings as machine
// telemetry. It announces its sensors once on the registration topic, then
// publishes one payload per sensor every interval.
package collector
