package lead

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	domain "github.com/leadflow/lead-import/internal/domain/lead"
	"github.com/sirupsen/logrus"
)

type ResumeImportInput struct {
	JobID            string
	LastProcessedRow *int
}

type ResumeImportOutput struct {
	Success  bool   `json:"success"`
	JobID    string `json:"job_id"`
	StartRow int    `json:"start_row"`
	Message  string `json:"message,omitempty"`
}

type ResumeImport interface {
	Execute(ctx context.Context, in ResumeImportInput) (ResumeImportOutput, error)
}

type resumeImport struct {
	jobs    domain.ImportJobRepository
	rowSets domain.RowSetStore
	queue   domain.TaskQueue
	log     *logrus.Entry
}

func NewResumeImport(jobs domain.ImportJobRepository, rowSets domain.RowSetStore, queue domain.TaskQueue, log *logrus.Entry) ResumeImport {
	if log == nil {
		log = logrusNop()
	}
	return &resumeImport{jobs: jobs, rowSets: rowSets, queue: queue, log: log.WithField("component", "resume_import")}
}

// Execute reopens a failed job and schedules a slice from the resume point.
// It never restarts from zero when the original rows are gone.
func (uc *resumeImport) Execute(ctx context.Context, in ResumeImportInput) (ResumeImportOutput, error) {
	if _, err := uuid.Parse(in.JobID); err != nil {
		return ResumeImportOutput{}, ErrInvalidJobID
	}

	job, err := uc.jobs.GetImportJob(ctx, in.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrImportJobNotFound) {
			return ResumeImportOutput{}, ErrImportJobNotFound
		}
		return ResumeImportOutput{}, fmt.Errorf("%w: %v", ErrResumeImport, err)
	}
	if job.Status != domain.JobFailed {
		return ResumeImportOutput{}, fmt.Errorf("%w: job is %s", ErrNotResumable, job.Status)
	}

	set, err := uc.rowSets.Load(ctx, job.ID)
	if err != nil {
		if errors.Is(err, domain.ErrRowSetNotFound) {
			return ResumeImportOutput{}, ErrCannotResume
		}
		return ResumeImportOutput{}, fmt.Errorf("%w: load rows: %v", ErrResumeImport, err)
	}

	start := resumePoint(job, in.LastProcessedRow)
	if start > len(set.Rows) {
		start = len(set.Rows)
	}

	details := job.ErrorDetails
	details.NextRow = start
	details.RowRange = ""
	details.Continuation = ""
	details.Summary = fmt.Sprintf("Resuming from row %d", start+1)
	reopened, err := uc.jobs.PatchImportJob(ctx, job.ID, domain.JobPatch{
		Status:       domain.StatusPtr(domain.JobProcessing),
		ErrorDetails: &details,
	})
	if err != nil {
		return ResumeImportOutput{}, fmt.Errorf("%w: reopen job: %v", ErrResumeImport, err)
	}

	task := domain.SliceTask{JobID: reopened.ID, TeamID: reopened.TeamID, StartRow: start}
	if err := uc.queue.Enqueue(ctx, task); err != nil {
		details.Summary = "Resume could not be scheduled: " + truncateString(err.Error(), maxRowErrorBytes)
		if _, patchErr := uc.jobs.PatchImportJob(context.WithoutCancel(ctx), job.ID, domain.JobPatch{
			Status:       domain.StatusPtr(domain.JobFailed),
			ErrorDetails: &details,
		}); patchErr != nil {
			uc.log.WithError(patchErr).WithField("job_id", job.ID).Error("failed to restore failed status")
		}
		return ResumeImportOutput{}, fmt.Errorf("%w: enqueue: %v", ErrResumeImport, err)
	}

	uc.log.WithFields(logrus.Fields{"job_id": job.ID, "start_row": start}).Info("import resumed")
	return ResumeImportOutput{
		Success:  true,
		JobID:    job.ID,
		StartRow: start,
		Message:  details.Summary,
	}, nil
}

func resumePoint(job domain.ImportJob, lastProcessedRow *int) int {
	switch {
	case lastProcessedRow != nil && *lastProcessedRow >= 0:
		return *lastProcessedRow
	case job.ErrorDetails.NextRow > 0:
		return job.ErrorDetails.NextRow
	default:
		return int(job.ProcessedRecords)
	}
}
