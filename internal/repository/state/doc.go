// Package state implements the in-memory sensor state store.
//
// The Store owns every SensorState and guards the whole map with a single
// mutex. Callers only see copies; the lock is never held across I/O.
package state
