// Package metrics exposes processor counters in the Prometheus format.
package metrics
