package lead

import (
	"context"
	"fmt"
	"strings"

	domain "github.com/leadflow/lead-import/internal/domain/lead"
)

const (
	defaultActiveJobsLimit = 20
	maxActiveJobsLimit     = 100
)

type ListActiveImportJobsInput struct {
	TeamID string
	Limit  int
}

type ListActiveImportJobsOutput struct {
	Jobs []ImportJobOutput `json:"jobs"`
}

type ListActiveImportJobs interface {
	Execute(ctx context.Context, in ListActiveImportJobsInput) (ListActiveImportJobsOutput, error)
}

type listActiveImportJobs struct {
	repo domain.ImportJobRepository
}

func NewListActiveImportJobs(repo domain.ImportJobRepository) ListActiveImportJobs {
	return &listActiveImportJobs{repo: repo}
}

// Execute returns the team's pending and processing jobs, newest first.
func (uc *listActiveImportJobs) Execute(ctx context.Context, in ListActiveImportJobsInput) (ListActiveImportJobsOutput, error) {
	teamID := strings.TrimSpace(in.TeamID)
	if teamID == "" {
		return ListActiveImportJobsOutput{}, ErrInvalidTeamID
	}
	limit := in.Limit
	if limit <= 0 {
		limit = defaultActiveJobsLimit
	}
	if limit > maxActiveJobsLimit {
		limit = maxActiveJobsLimit
	}

	jobs, err := uc.repo.ListActiveImportJobs(ctx, teamID, limit)
	if err != nil {
		return ListActiveImportJobsOutput{}, fmt.Errorf("%w: %v", ErrListImportJobs, err)
	}

	out := ListActiveImportJobsOutput{Jobs: make([]ImportJobOutput, 0, len(jobs))}
	for _, job := range jobs {
		out.Jobs = append(out.Jobs, toImportJobOutput(job))
	}
	return out, nil
}
