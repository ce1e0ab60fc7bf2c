package lead

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	domain "github.com/leadflow/lead-import/internal/domain/lead"
)

type GetImportJobInput struct {
	ID string
}

type ImportJobOutput struct {
	ID               string              `json:"id"`
	TeamID           string              `json:"team_id"`
	UserID           string              `json:"user_id,omitempty"`
	FileName         string              `json:"file_name"`
	Status           string              `json:"status"`
	TotalRecords     int64               `json:"total_records"`
	ProcessedRecords int64               `json:"processed_records"`
	FailedRecords    int64               `json:"failed_records"`
	Progress         int                 `json:"progress"`
	ErrorDetails     domain.ErrorDetails `json:"error_details"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
	CompletedAt      *time.Time          `json:"completed_at,omitempty"`
}

func toImportJobOutput(job domain.ImportJob) ImportJobOutput {
	errs := job.ErrorDetails
	if errs.Errors == nil {
		errs.Errors = []string{}
	}
	return ImportJobOutput{
		ID:               job.ID,
		TeamID:           job.TeamID,
		UserID:           job.UserID,
		FileName:         job.FileName,
		Status:           string(job.Status),
		TotalRecords:     job.TotalRecords,
		ProcessedRecords: job.ProcessedRecords,
		FailedRecords:    job.FailedRecords,
		Progress:         job.Percent(),
		ErrorDetails:     errs,
		CreatedAt:        job.CreatedAt,
		UpdatedAt:        job.UpdatedAt,
		CompletedAt:      job.CompletedAt,
	}
}

type GetImportJob interface {
	Execute(ctx context.Context, in GetImportJobInput) (ImportJobOutput, error)
}

type getImportJob struct {
	repo domain.ImportJobRepository
}

func NewGetImportJob(repo domain.ImportJobRepository) GetImportJob {
	return &getImportJob{repo: repo}
}

func (uc *getImportJob) Execute(ctx context.Context, in GetImportJobInput) (ImportJobOutput, error) {
	if _, err := uuid.Parse(in.ID); err != nil {
		return ImportJobOutput{}, ErrInvalidJobID
	}

	job, err := uc.repo.GetImportJob(ctx, in.ID)
	if err != nil {
		if errors.Is(err, domain.ErrImportJobNotFound) {
			return ImportJobOutput{}, ErrImportJobNotFound
		}
		return ImportJobOutput{}, fmt.Errorf("%w: %v", ErrGetImportJob, err)
	}

	return toImportJobOutput(job), nil
}
