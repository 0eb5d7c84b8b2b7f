package recordstore

import (
	"sync"

	"github.com/guijianchou/IDM-Download-Monitor/internal/monitor"
)

// MemoryStore keeps the table in memory, with failure injection for tests.
type MemoryStore struct {
	mu       sync.Mutex
	snapshot *monitor.Snapshot
	saves    int
	loadErr  error
	saveErr  error
}

// NewMemoryStore creates a store holding records.
func NewMemoryStore(records ...monitor.FileRecord) *MemoryStore {
	return &MemoryStore{snapshot: monitor.NewSnapshot(records)}
}

func (s *MemoryStore) Load() (*monitor.Snapshot, []monitor.Warning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, nil, s.loadErr
	}
	return s.snapshot, nil, nil
}

func (s *MemoryStore) Save(snap *monitor.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.snapshot = snap
	s.saves++
	return nil
}

// Snapshot returns the last saved table.
func (s *MemoryStore) Snapshot() *monitor.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Saves returns how many times Save succeeded.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// FailLoad makes Load return err.
func (s *MemoryStore) FailLoad(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = err
}

// FailSave makes Save return err.
func (s *MemoryStore) FailSave(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

var _ monitor.RecordStore = (*MemoryStore)(nil)
