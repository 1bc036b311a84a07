package reconcile

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ekaya-inc/orgpulse/pkg/apperrors"
	"github.com/ekaya-inc/orgpulse/pkg/models"
)

// RecordStore holds the authoritative in-memory employee records of a session.
// Records are never mutated in place: Replace swaps in a new value so that
// readers holding an older slice keep a consistent view.
type RecordStore struct {
	mu      sync.RWMutex
	records []*models.Employee
	index   map[uuid.UUID]int
}

// NewRecordStore creates a store seeded with the given records in order.
func NewRecordStore(records []*models.Employee) *RecordStore {
	s := &RecordStore{}
	s.ReplaceAll(records)
	return s
}

// Get returns the current records in discovery order.
// The returned slice is a copy; the records themselves must be treated as read-only.
func (s *RecordStore) Get() []*models.Employee {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Employee, len(s.records))
	copy(out, s.records)
	return out
}

// Lookup returns the record with the given ID.
func (s *RecordStore) Lookup(id uuid.UUID) (*models.Employee, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.records[i], true
}

// Len returns the number of records held.
func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Replace swaps the record stored under id for next.
// Returns apperrors.ErrRecordNotFound if id is not held.
func (s *RecordStore) Replace(id uuid.UUID, next *models.Employee) error {
	if next == nil || next.ID != id {
		return fmt.Errorf("%w: replacement must carry id %s", apperrors.ErrValidation, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrRecordNotFound, id)
	}
	s.records[i] = next
	return nil
}

// ReplaceAll swaps the whole record set in one step.
func (s *RecordStore) ReplaceAll(records []*models.Employee) {
	next := make([]*models.Employee, 0, len(records))
	index := make(map[uuid.UUID]int, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		index[r.ID] = len(next)
		next = append(next, r)
	}

	s.mu.Lock()
	s.records = next
	s.index = index
	s.mu.Unlock()
}
