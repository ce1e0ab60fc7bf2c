package lead

import (
	"context"
	"time"
)

type ImportJobRepository interface {
	CreateImportJob(ctx context.Context, job ImportJob) (string, error)
	PatchImportJob(ctx context.Context, jobID string, patch JobPatch) (ImportJob, error)
	GetImportJob(ctx context.Context, jobID string) (ImportJob, error)
	ListActiveImportJobs(ctx context.Context, teamID string, limit int) ([]ImportJob, error)
}

type LeadRepository interface {
	FindByField(ctx context.Context, teamID string, field DetectionField, value string) (*Lead, error)
	InsertLead(ctx context.Context, l Lead) (Lead, error)
	// InsertLeads writes all leads in one bulk operation. A failure caused by
	// individual rows wraps ErrBulkRejected.
	InsertLeads(ctx context.Context, leads []Lead) error
	UpdateLead(ctx context.Context, id string, patch LeadPatch) (Lead, error)
}

type CustomFieldRepository interface {
	ListCustomFieldDefinitions(ctx context.Context, teamID, entityType string) ([]FieldDefinition, error)
	CreateCustomFieldDefinition(ctx context.Context, def FieldDefinition) (FieldDefinition, error)
}

// RowSet is the import request preserved for the lifetime of a job so every
// slice, and an explicit resume, can read the original rows.
type RowSet struct {
	JobID           string          `json:"job_id"`
	TeamID          string          `json:"team_id"`
	Headers         []string        `json:"headers"`
	Rows            [][]string      `json:"rows"`
	Mappings        []ColumnMapping `json:"mappings"`
	DuplicatePolicy DuplicatePolicy `json:"duplicate_policy"`
}

type RowSetStore interface {
	Save(ctx context.Context, set RowSet) error
	// Load returns ErrRowSetNotFound when nothing was preserved for jobID.
	Load(ctx context.Context, jobID string) (RowSet, error)
}

// SliceTask asks the importer to process one slice of a job starting at
// StartRow (0-based, absolute in the row set).
type SliceTask struct {
	ID               string
	JobID            string
	TeamID           string
	StartRow         int
	IsInitialRequest bool
	Attempts         int
	MaxAttempts      int
}

type TaskQueue interface {
	Enqueue(ctx context.Context, task SliceTask) error
}

type TaskClaimer interface {
	ClaimNext(ctx context.Context, leaseDuration time.Duration) (*SliceTask, error)
	Heartbeat(ctx context.Context, taskID string, leaseDuration time.Duration) error
	Complete(ctx context.Context, taskID string) error
	Requeue(ctx context.Context, taskID string, reason string) error
	Fail(ctx context.Context, taskID string, reason string) error
}

type JobChange struct {
	TeamID string `json:"team_id"`
	JobID  string `json:"job_id"`
}

type JobChangePublisher interface {
	PublishJobChange(ctx context.Context, change JobChange) error
}

type JobChangeSubscriber interface {
	// SubscribeJobChanges delivers changes for teamID until ctx is done or
	// the returned cancel func is called.
	SubscribeJobChanges(ctx context.Context, teamID string) (<-chan JobChange, func(), error)
}
