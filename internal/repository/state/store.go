package state

import (
	"sort"
	"sync"

	"github.com/oshokin/telemetry-monitor/internal/domain/telemetry"
)

// Entry is a key with a copy of its state.
type Entry struct {
	Key   telemetry.SensorKey
	State telemetry.SensorState
}

// Store maps sensor keys to their last known state.
// Keys are added on first observation and never removed.
type Store struct {
	// mu is held for the full duration of every operation.
	mu sync.Mutex
	// sensors holds the state of every sensor seen so far.
	sensors map[telemetry.SensorKey]*telemetry.SensorState
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		sensors: make(map[telemetry.SensorKey]*telemetry.SensorState),
	}
}

// Upsert records a reading for key.
//
// For an unseen key the state is seeded with zero missed periods and
// existed is false. Otherwise the value and timestamp are overwritten, the
// missed-period counter is reset and the state before the update is returned.
func (s *Store) Upsert(key telemetry.SensorKey, value float64, timestamp string) (before telemetry.SensorState, existed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sensors[key]
	if !ok {
		s.sensors[key] = &telemetry.SensorState{
			LastValue:     value,
			LastTimestamp: timestamp,
		}

		return telemetry.SensorState{}, false
	}

	before = *current

	current.LastValue = value
	current.LastTimestamp = timestamp
	current.MissedPeriods = 0

	return before, true
}

// SweepTick increments the missed-period counter of every sensor and returns
// the post-increment snapshot ordered by machine and kind.
func (s *Store) SweepTick() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, len(s.sensors))

	for key, current := range s.sensors {
		current.MissedPeriods++

		entries = append(entries, Entry{Key: key, State: *current})
	}

	sortEntries(entries)

	return entries
}

// Get returns a copy of the state for key.
func (s *Store) Get(key telemetry.SensorKey) (telemetry.SensorState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sensors[key]
	if !ok {
		return telemetry.SensorState{}, false
	}

	return *current, true
}

// Len returns the number of tracked sensors.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sensors)
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Key.MachineID != entries[j].Key.MachineID {
			return entries[i].Key.MachineID < entries[j].Key.MachineID
		}

		return entries[i].Key.Kind < entries[j].Key.Kind
	})
}
