// Package broker runs an in-process MQTT broker for single-host setups and tests.
package broker
