package store

import (
	"sync"

	"github.com/psantana5/vitals-engine/pkg/models"
)

// MemoryStore keeps readings and the latest value in memory.
// Both structures share one lock so a reader never sees the cache ahead of the log.
type MemoryStore struct {
	mu        sync.RWMutex
	readings  []models.Reading
	latest    models.Reading
	hasLatest bool
}

// NewMemoryStore creates an empty in-memory readings store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		readings: make([]models.Reading, 0, 128),
	}
}

// Append adds a reading and overwrites the latest value
func (s *MemoryStore) Append(r models.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.readings = append(s.readings, r)
	s.latest = r
	s.hasLatest = true
}

// Reset clears the log and the latest value
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.readings = make([]models.Reading, 0, 128)
	s.latest = models.Reading{}
	s.hasLatest = false
}

// Snapshot returns a copy of all readings in arrival order
func (s *MemoryStore) Snapshot() []models.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Reading, len(s.readings))
	copy(out, s.readings)
	return out
}

// Len returns the number of stored readings
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.readings)
}

// Latest returns the most recently appended reading
func (s *MemoryStore) Latest() (models.Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.latest, s.hasLatest
}
