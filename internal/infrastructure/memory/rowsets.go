package memory

import (
	"context"
	"sync"

	domain "github.com/leadflow/lead-import/internal/domain/lead"
)

type RowSetStore struct {
	mu   sync.RWMutex
	sets map[string]domain.RowSet
}

func NewRowSetStore() *RowSetStore {
	return &RowSetStore{sets: map[string]domain.RowSet{}}
}

func (s *RowSetStore) Save(ctx context.Context, set domain.RowSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sets[set.JobID] = set
	return nil
}

func (s *RowSetStore) Load(ctx context.Context, jobID string) (domain.RowSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.sets[jobID]
	if !ok {
		return domain.RowSet{}, domain.ErrRowSetNotFound
	}
	return set, nil
}

// Forget drops the preserved rows of jobID.
func (s *RowSetStore) Forget(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sets, jobID)
}
