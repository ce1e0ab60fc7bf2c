package lead

import (
	"fmt"
	"math"
	"time"
)

type JobStatus string

const (
	JobPending             JobStatus = "pending"
	JobProcessing          JobStatus = "processing"
	JobCompleted           JobStatus = "completed"
	JobCompletedWithErrors JobStatus = "completed_with_errors"
	JobFailed              JobStatus = "failed"
	// JobPaused is declared for stored data compatibility; nothing in the
	// pipeline moves a job into it.
	JobPaused JobStatus = "paused"
)

func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobCompletedWithErrors || s == JobFailed
}

func ActiveStatuses() []JobStatus {
	return []JobStatus{JobPending, JobProcessing}
}

var transitions = map[JobStatus][]JobStatus{
	JobPending:    {JobProcessing, JobFailed, JobCompletedWithErrors},
	JobProcessing: {JobCompleted, JobCompletedWithErrors, JobFailed},
	// explicit resume
	JobFailed: {JobProcessing},
}

func CanTransition(from, to JobStatus) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// FinalStatus is the status of a job whose last slice finished.
func FinalStatus(failed int64) JobStatus {
	if failed == 0 {
		return JobCompleted
	}
	return JobCompletedWithErrors
}

func ProgressPercent(done, total int64) int {
	if total <= 0 {
		return 100
	}
	p := int(math.Round(float64(done) / float64(total) * 100))
	if p > 100 {
		return 100
	}
	return p
}

type ErrorDetails struct {
	Summary           string   `json:"summary"`
	NewRecords        int64    `json:"new_records"`
	UpdatedRecords    int64    `json:"updated_records"`
	SkippedDuplicates int64    `json:"skipped_duplicates"`
	SkippedNoName     int64    `json:"skipped_no_name"`
	FailedRecords     int64    `json:"failed_records"`
	Progress          int      `json:"progress"`
	CurrentBatch      int      `json:"current_batch"`
	TotalBatches      int      `json:"total_batches"`
	NextRow           int      `json:"next_row"`
	RowRange          string   `json:"row_range,omitempty"`
	Continuation      string   `json:"continuation,omitempty"`
	Errors            []string `json:"errors"`
}

// AppendErrors keeps only the most recent limit entries.
func (d *ErrorDetails) AppendErrors(errs []string, limit int) {
	d.Errors = append(d.Errors, errs...)
	if limit >= 0 && len(d.Errors) > limit {
		d.Errors = append([]string(nil), d.Errors[len(d.Errors)-limit:]...)
	}
}

func (d ErrorDetails) BuildSummary() string {
	s := fmt.Sprintf("%d new, %d updated, %d failed", d.NewRecords, d.UpdatedRecords, d.FailedRecords)
	if d.SkippedDuplicates > 0 {
		s += fmt.Sprintf(", %d duplicates skipped", d.SkippedDuplicates)
	}
	if d.SkippedNoName > 0 {
		s += fmt.Sprintf(", %d skipped without name", d.SkippedNoName)
	}
	return s
}

type ImportJob struct {
	ID               string
	TeamID           string
	UserID           string
	FileName         string
	TotalRecords     int64
	ProcessedRecords int64
	FailedRecords    int64
	Status           JobStatus
	ErrorDetails     ErrorDetails
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time
}

func NewImportJob(teamID, userID, fileName string, totalRecords int64) ImportJob {
	return ImportJob{
		TeamID:       teamID,
		UserID:       userID,
		FileName:     fileName,
		TotalRecords: totalRecords,
		Status:       JobPending,
		ErrorDetails: ErrorDetails{Summary: "Queued", Errors: []string{}},
	}
}

// Percent is the share of rows consumed. Rows skipped for having no name
// count as consumed even though they are in neither counter.
func (j ImportJob) Percent() int {
	if j.Status == JobCompleted || j.Status == JobCompletedWithErrors {
		return 100
	}
	return max(j.ErrorDetails.Progress, ProgressPercent(j.ProcessedRecords+j.FailedRecords, j.TotalRecords))
}

// JobPatch is a merge-patch over an import job. Nil fields are left alone;
// ErrorDetails replaces the stored blob wholesale.
type JobPatch struct {
	Status           *JobStatus    `json:"status,omitempty"`
	ProcessedRecords *int64        `json:"processed_records,omitempty"`
	FailedRecords    *int64        `json:"failed_records,omitempty"`
	ErrorDetails     *ErrorDetails `json:"error_details,omitempty"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
}

// Apply merges p into j. Counts never move backwards, a terminal job keeps
// its counts unless the patch reopens it, and status changes must follow the
// lifecycle.
func (j *ImportJob) Apply(p JobPatch) error {
	frozen := j.Status.IsTerminal()
	if p.Status != nil {
		if !CanTransition(j.Status, *p.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, *p.Status)
		}
		if frozen && !p.Status.IsTerminal() {
			frozen = false
			j.CompletedAt = nil
		}
		j.Status = *p.Status
	}
	if frozen {
		return nil
	}
	if p.ProcessedRecords != nil && *p.ProcessedRecords > j.ProcessedRecords {
		j.ProcessedRecords = *p.ProcessedRecords
	}
	if p.FailedRecords != nil && *p.FailedRecords > j.FailedRecords {
		j.FailedRecords = *p.FailedRecords
	}
	if p.ErrorDetails != nil {
		j.ErrorDetails = *p.ErrorDetails
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		j.CompletedAt = &t
	}
	return nil
}

func StatusPtr(s JobStatus) *JobStatus { return &s }

func Int64Ptr(v int64) *int64 { return &v }

func TimePtr(t time.Time) *time.Time { return &t }
