// Package state implements the shared, thread-safe StateStore: the single
// point of truth for latest sensor readings, sensor configuration, active
// alarm state, and alarm event history.
package state

import (
	"sync"
	"time"

	"github.com/99souls/sensorwatch/internal/domain"
)

// maxHistory caps the in-memory alarm event log so a long-running process
// does not grow it without bound; spec.md permits capping at >= 10000.
const maxHistory = 10000

// Store is the single-lock, copy-on-read aggregate described by the
// StateStore component: scalar/spectral snapshots, sensor configuration,
// alarm states, and alarm event history, all guarded by one mutex.
//
// All reads and writes go through the exported methods below; there is no
// way to reach the underlying maps without holding the lock.
type Store struct {
	mu sync.Mutex

	configs map[string]domain.SensorConfig

	scalars map[string]domain.ScalarReading
	spectra map[string]domain.SpectralReading

	alarmStates map[domain.AlarmId]domain.AlarmState
	alarmEvents []domain.AlarmEvent
}

// New returns an empty Store ready for use.
func New() *Store {
	return &Store{
		configs:     make(map[string]domain.SensorConfig),
		scalars:     make(map[string]domain.ScalarReading),
		spectra:     make(map[string]domain.SpectralReading),
		alarmStates: make(map[domain.AlarmId]domain.AlarmState),
	}
}

// SetConfig registers or replaces a sensor's configuration by name.
func (s *Store) SetConfig(cfg domain.SensorConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.Name] = cfg
}

// ScalarConfigs returns an independent snapshot of all registered scalar
// sensor configurations.
func (s *Store) ScalarConfigs() []domain.SensorConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SensorConfig, 0, len(s.configs))
	for _, c := range s.configs {
		out = append(out, c)
	}
	return out
}

// UpdateScalar stores r as the latest reading for its sensor, overwriting
// any previous value (last-write-wins).
func (s *Store) UpdateScalar(r domain.ScalarReading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scalars[r.Sensor] = r
}

// UpdateSpectrum stores r as the latest spectral reading for its sensor.
func (s *Store) UpdateSpectrum(r domain.SpectralReading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spectra[r.Sensor] = r
}

// GetLatest returns the most recent scalar reading for name, or false if
// none has ever been recorded.
func (s *Store) GetLatest(name string) (domain.ScalarReading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.scalars[name]
	return r, ok
}

// GetLatestFtir returns the most recent spectral reading for name, or
// false if none has ever been recorded.
func (s *Store) GetLatestFtir(name string) (domain.SpectralReading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.spectra[name]
	return r, ok
}

// AddAlarmEvent appends e to the event history, capping at maxHistory by
// dropping the oldest entry.
func (s *Store) AddAlarmEvent(e domain.AlarmEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alarmEvents = append(s.alarmEvents, e)
	if len(s.alarmEvents) > maxHistory {
		s.alarmEvents = s.alarmEvents[len(s.alarmEvents)-maxHistory:]
	}
}

// SetAlarmState records st as the current state for id, replacing any
// previous state.
func (s *Store) SetAlarmState(id domain.AlarmId, st domain.AlarmState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alarmStates[id] = st
}

// GetAlarmState returns the currently stored state for id, if any.
func (s *Store) GetAlarmState(id domain.AlarmId) (domain.AlarmState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.alarmStates[id]
	return st, ok
}

// GetActiveAlarmStates returns a snapshot of every alarm state currently
// marked active.
func (s *Store) GetActiveAlarmStates() []domain.AlarmState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AlarmState, 0)
	for _, st := range s.alarmStates {
		if st.Active {
			out = append(out, st)
		}
	}
	return out
}

// ClearAlarmHistory empties the alarm event log. Alarm states are
// untouched.
func (s *Store) ClearAlarmHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alarmEvents = nil
}

// Snapshots returns an independent copy of the scalar reading map.
func (s *Store) Snapshots() map[string]domain.ScalarReading {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.ScalarReading, len(s.scalars))
	for k, v := range s.scalars {
		out[k] = v
	}
	return out
}

// FtirSnapshots returns an independent copy of the spectral reading map.
func (s *Store) FtirSnapshots() map[string]domain.SpectralReading {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.SpectralReading, len(s.spectra))
	for k, v := range s.spectra {
		out[k] = v
	}
	return out
}

// AlarmEvents returns an independent copy of the event history, in
// insertion order.
func (s *Store) AlarmEvents() []domain.AlarmEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AlarmEvent, len(s.alarmEvents))
	copy(out, s.alarmEvents)
	return out
}

// AlarmStates returns an independent copy of the id -> state map.
func (s *Store) AlarmStates() map[domain.AlarmId]domain.AlarmState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.AlarmId]domain.AlarmState, len(s.alarmStates))
	for k, v := range s.alarmStates {
		out[k] = v
	}
	return out
}

// Now is a seam for tests; production code should call time.Now directly,
// this helper exists only so callers building ctx values have one place to
// look for "what time is it" semantics.
func Now() time.Time { return time.Now() }
