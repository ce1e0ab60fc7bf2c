package lead_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	domain "github.com/leadflow/lead-import/internal/domain/lead"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportJobApplyCountsAreMonotonic(t *testing.T) {
	t.Parallel()

	job := domain.NewImportJob("team-1", "user-1", "leads.csv", 10)
	require.NoError(t, job.Apply(domain.JobPatch{
		Status:           domain.StatusPtr(domain.JobProcessing),
		ProcessedRecords: domain.Int64Ptr(6),
		FailedRecords:    domain.Int64Ptr(1),
	}))

	require.NoError(t, job.Apply(domain.JobPatch{
		ProcessedRecords: domain.Int64Ptr(3),
		FailedRecords:    domain.Int64Ptr(0),
	}))

	assert.Equal(t, int64(6), job.ProcessedRecords)
	assert.Equal(t, int64(1), job.FailedRecords)
}

func TestImportJobApplyRejectsInvalidTransition(t *testing.T) {
	t.Parallel()

	job := domain.NewImportJob("team-1", "user-1", "leads.csv", 10)
	job.Status = domain.JobCompleted

	err := job.Apply(domain.JobPatch{Status: domain.StatusPtr(domain.JobProcessing)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
}

func TestImportJobTerminalCountsAreFrozen(t *testing.T) {
	t.Parallel()

	job := domain.NewImportJob("team-1", "user-1", "leads.csv", 10)
	require.NoError(t, job.Apply(domain.JobPatch{Status: domain.StatusPtr(domain.JobProcessing)}))
	require.NoError(t, job.Apply(domain.JobPatch{
		Status:           domain.StatusPtr(domain.JobCompleted),
		ProcessedRecords: domain.Int64Ptr(10),
		CompletedAt:      domain.TimePtr(time.Now()),
	}))

	require.NoError(t, job.Apply(domain.JobPatch{ProcessedRecords: domain.Int64Ptr(12)}))
	assert.Equal(t, int64(10), job.ProcessedRecords)
	assert.NotNil(t, job.CompletedAt)
}

func TestImportJobFailedCanBeReopened(t *testing.T) {
	t.Parallel()

	job := domain.NewImportJob("team-1", "user-1", "leads.csv", 10)
	job.Status = domain.JobFailed
	job.ProcessedRecords = 4

	require.NoError(t, job.Apply(domain.JobPatch{
		Status:           domain.StatusPtr(domain.JobProcessing),
		ProcessedRecords: domain.Int64Ptr(5),
	}))
	assert.Equal(t, domain.JobProcessing, job.Status)
	assert.Equal(t, int64(5), job.ProcessedRecords)
}

func TestFinalStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, domain.JobCompleted, domain.FinalStatus(0))
	assert.Equal(t, domain.JobCompletedWithErrors, domain.FinalStatus(2))
}

func TestProgressPercentRounds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 33, domain.ProgressPercent(1, 3))
	assert.Equal(t, 67, domain.ProgressPercent(2, 3))
	assert.Equal(t, 100, domain.ProgressPercent(0, 0))
}

func TestErrorDetailsKeepsMostRecentErrors(t *testing.T) {
	t.Parallel()

	var d domain.ErrorDetails
	for i := 1; i <= 5; i++ {
		d.AppendErrors([]string{fmt.Sprintf("row %d", i)}, 3)
	}
	assert.Equal(t, []string{"row 3", "row 4", "row 5"}, d.Errors)
}

func TestImportJobReopenClearsCompletedAt(t *testing.T) {
	t.Parallel()

	job := domain.NewImportJob("team-1", "user-1", "leads.csv", 10)
	job.Status = domain.JobFailed
	job.CompletedAt = domain.TimePtr(time.Now())

	require.NoError(t, job.Apply(domain.JobPatch{Status: domain.StatusPtr(domain.JobProcessing)}))
	assert.Nil(t, job.CompletedAt)
}

func TestImportJobPercentCountsSkippedRows(t *testing.T) {
	t.Parallel()

	job := domain.NewImportJob("team-1", "user-1", "leads.csv", 4)
	job.Status = domain.JobProcessing
	job.ProcessedRecords = 1
	job.ErrorDetails.Progress = 50
	assert.Equal(t, 50, job.Percent())

	job.Status = domain.JobCompleted
	job.ProcessedRecords = 3
	assert.Equal(t, 100, job.Percent())
}
