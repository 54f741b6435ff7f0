// Package common holds helpers shared by several services.
//
// It provides a gRPC health client wrapper with timeouts, the MQTT client
// identity of the running host and a single-instance guard.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
