// Package processor is the stateful telemetry engine.
//
// The Gateway consumes (topic, payload) pairs from the transport, updates the
// state store and persists readings with their band alarm. The Sweeper runs
// on a fixed period against the same store and raises inactivity alarms.
// Both meet only through the store lock; persistence always happens after
// the lock is released.
package processor
