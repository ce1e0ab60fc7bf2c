package lead

import (
	"context"
	"fmt"
	"strings"

	domain "github.com/leadflow/lead-import/internal/domain/lead"
	"github.com/sirupsen/logrus"
)

type StartImportInput struct {
	Rows            [][]string
	Headers         []string
	Mappings        []domain.ColumnMapping
	DuplicatePolicy *domain.DuplicatePolicy
	TeamID          string
	UserID          string
	FileName        string
}

type StartImportOutput struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id"`
	Message string `json:"message,omitempty"`
}

type StartImport interface {
	Execute(ctx context.Context, in StartImportInput) (StartImportOutput, error)
}

type startImport struct {
	jobs    domain.ImportJobRepository
	fields  domain.CustomFieldRepository
	rowSets domain.RowSetStore
	queue   domain.TaskQueue
	log     *logrus.Entry
}

func NewStartImport(jobs domain.ImportJobRepository, fields domain.CustomFieldRepository, rowSets domain.RowSetStore, queue domain.TaskQueue, log *logrus.Entry) StartImport {
	if log == nil {
		log = logrusNop()
	}
	return &startImport{
		jobs:    jobs,
		fields:  fields,
		rowSets: rowSets,
		queue:   queue,
		log:     log.WithField("component", "start_import"),
	}
}

// Execute validates the request, creates the job, preserves the rows for
// later slices and schedules the first slice. Input errors are returned
// before any job exists.
func (uc *startImport) Execute(ctx context.Context, in StartImportInput) (StartImportOutput, error) {
	teamID := strings.TrimSpace(in.TeamID)
	if teamID == "" {
		return StartImportOutput{}, ErrInvalidTeamID
	}
	if len(in.Headers) == 0 {
		return StartImportOutput{}, fmt.Errorf("%w: headers are required", ErrInvalidImportRequest)
	}
	if len(in.Rows) == 0 {
		return StartImportOutput{}, ErrEmptyFile
	}

	policy := domain.DefaultDuplicatePolicy()
	if in.DuplicatePolicy != nil {
		policy = *in.DuplicatePolicy
	}
	if err := policy.Validate(); err != nil {
		return StartImportOutput{}, fmt.Errorf("%w: %v", ErrInvalidImportRequest, err)
	}
	if err := ValidateMappings(in.Mappings); err != nil {
		return StartImportOutput{}, err
	}

	catalog, err := PrepareCustomFields(ctx, uc.fields, teamID, in.Mappings)
	if err != nil {
		return StartImportOutput{}, fmt.Errorf("%w: %v", ErrPrepareCustomFields, err)
	}
	if _, err := CompilePlan(teamID, in.Headers, in.Mappings, catalog); err != nil {
		return StartImportOutput{}, err
	}

	fileName := strings.TrimSpace(in.FileName)
	if fileName == "" {
		fileName = "import.csv"
	}
	job := domain.NewImportJob(teamID, in.UserID, fileName, int64(len(in.Rows)))
	jobID, err := uc.jobs.CreateImportJob(ctx, job)
	if err != nil {
		return StartImportOutput{}, fmt.Errorf("%w: create job: %v", ErrStartImport, err)
	}
	log := uc.log.WithField("job_id", jobID)

	set := domain.RowSet{
		JobID:           jobID,
		TeamID:          teamID,
		Headers:         in.Headers,
		Rows:            in.Rows,
		Mappings:        in.Mappings,
		DuplicatePolicy: policy,
	}
	if err := uc.rowSets.Save(ctx, set); err != nil {
		uc.markFailed(ctx, jobID, "could not store import rows", err)
		return StartImportOutput{}, fmt.Errorf("%w: save rows: %v", ErrStartImport, err)
	}

	task := domain.SliceTask{JobID: jobID, TeamID: teamID, StartRow: 0, IsInitialRequest: true}
	if err := uc.queue.Enqueue(ctx, task); err != nil {
		uc.markFailed(ctx, jobID, "could not schedule import", err)
		return StartImportOutput{}, fmt.Errorf("%w: enqueue: %v", ErrStartImport, err)
	}

	log.WithFields(logrus.Fields{"rows": len(in.Rows), "file_name": fileName}).Info("import started")
	return StartImportOutput{
		Success: true,
		JobID:   jobID,
		Message: fmt.Sprintf("Import of %d rows started", len(in.Rows)),
	}, nil
}

func (uc *startImport) markFailed(ctx context.Context, jobID, summary string, cause error) {
	msg := truncateString(cause.Error(), maxRowErrorBytes)
	details := domain.ErrorDetails{Summary: summary + ": " + msg, Errors: []string{msg}}
	_, err := uc.jobs.PatchImportJob(context.WithoutCancel(ctx), jobID, domain.JobPatch{
		Status:       domain.StatusPtr(domain.JobFailed),
		ErrorDetails: &details,
	})
	if err != nil {
		uc.log.WithError(err).WithField("job_id", jobID).Error("failed to mark import job failed")
	}
}
