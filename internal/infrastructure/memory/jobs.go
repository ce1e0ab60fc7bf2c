package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	domain "github.com/leadflow/lead-import/internal/domain/lead"
)

// ImportJobStore keeps import jobs in process memory.
type ImportJobStore struct {
	mu   sync.RWMutex
	jobs map[string]domain.ImportJob
	now  func() time.Time
}

func NewImportJobStore() *ImportJobStore {
	return &ImportJobStore{jobs: map[string]domain.ImportJob{}, now: time.Now}
}

func (s *ImportJobStore) CreateImportJob(ctx context.Context, job domain.ImportJob) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job.ID = uuid.NewString()
	now := s.now().UTC()
	job.CreatedAt, job.UpdatedAt = now, now
	job.ErrorDetails.Errors = append([]string(nil), job.ErrorDetails.Errors...)
	s.jobs[job.ID] = job
	return job.ID, nil
}

func (s *ImportJobStore) PatchImportJob(ctx context.Context, jobID string, patch domain.JobPatch) (domain.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ImportJob{}, domain.ErrImportJobNotFound
	}
	if err := job.Apply(patch); err != nil {
		return domain.ImportJob{}, err
	}
	job.ErrorDetails.Errors = append([]string(nil), job.ErrorDetails.Errors...)
	job.UpdatedAt = s.now().UTC()
	s.jobs[jobID] = job
	return job, nil
}

func (s *ImportJobStore) GetImportJob(ctx context.Context, jobID string) (domain.ImportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ImportJob{}, domain.ErrImportJobNotFound
	}
	return job, nil
}

func (s *ImportJobStore) ListActiveImportJobs(ctx context.Context, teamID string, limit int) ([]domain.ImportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ImportJob
	for _, job := range s.jobs {
		if job.TeamID != teamID {
			continue
		}
		if job.Status == domain.JobPending || job.Status == domain.JobProcessing {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
