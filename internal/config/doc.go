// Package config defines the settings shared by the telemetry binaries and
// provides helpers to load, validate and save them in YAML format.
//
// Load applies defaults before validation, so a minimal file (or none of the
// optional sections) yields a runnable processor backed by the log sink.
package config
