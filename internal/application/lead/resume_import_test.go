package lead_test

import (
	"context"
	"testing"

	app "github.com/leadflow/lead-import/internal/application/lead"
	domain "github.com/leadflow/lead-import/internal/domain/lead"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failJobAfterFirstSlice runs the first slice, then forces the job into
// failed the way a catastrophic error would.
func failJobAfterFirstSlice(t *testing.T, h *harness, rows int) string {
	t.Helper()

	ctx := context.Background()
	out, err := h.start.Execute(ctx, startInput(generatedRows(rows), nil))
	require.NoError(t, err)

	task, err := h.queue.ClaimNext(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, h.importer.ProcessSlice(ctx, *task))
	require.NoError(t, h.queue.Complete(ctx, task.ID))

	next, err := h.queue.ClaimNext(ctx, 0)
	require.NoError(t, err)
	require.NotNil(t, next)
	require.NoError(t, h.queue.Fail(ctx, next.ID, "worker crashed"))

	_, err = h.jobs.PatchImportJob(ctx, out.JobID, domain.JobPatch{Status: domain.StatusPtr(domain.JobFailed)})
	require.NoError(t, err)
	return out.JobID
}

func TestResumeImportContinuesFromCursor(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 500, 100)
	jobID := failJobAfterFirstSlice(t, h, 800)

	uc := app.NewResumeImport(h.jobs, h.rowSets, h.queue, nil)
	out, err := uc.Execute(context.Background(), app.ResumeImportInput{JobID: jobID})
	require.NoError(t, err)
	assert.Equal(t, 500, out.StartRow)
	assert.Equal(t, domain.JobProcessing, h.job(t, jobID).Status)

	assert.Equal(t, 1, h.drain(t))

	job := h.job(t, jobID)
	assert.Equal(t, domain.JobCompleted, job.Status)
	assert.Equal(t, int64(800), job.ProcessedRecords)
	assert.Len(t, h.leads.List("team-1"), 800)
}

func TestResumeImportHonoursExplicitRow(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 500, 100)
	jobID := failJobAfterFirstSlice(t, h, 800)

	row := 600
	out, err := app.NewResumeImport(h.jobs, h.rowSets, h.queue, nil).Execute(context.Background(), app.ResumeImportInput{JobID: jobID, LastProcessedRow: &row})
	require.NoError(t, err)
	assert.Equal(t, 600, out.StartRow)
}

func TestResumeImportWithoutPreservedRows(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 500, 100)
	jobID := failJobAfterFirstSlice(t, h, 800)
	h.rowSets.Forget(jobID)

	_, err := app.NewResumeImport(h.jobs, h.rowSets, h.queue, nil).Execute(context.Background(), app.ResumeImportInput{JobID: jobID})
	require.ErrorIs(t, err, app.ErrCannotResume)
	assert.Equal(t, domain.JobFailed, h.job(t, jobID).Status)
}

func TestResumeImportRejectsActiveJobs(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 500, 100)
	out, err := h.start.Execute(context.Background(), startInput(generatedRows(3), nil))
	require.NoError(t, err)

	uc := app.NewResumeImport(h.jobs, h.rowSets, h.queue, nil)
	_, err = uc.Execute(context.Background(), app.ResumeImportInput{JobID: out.JobID})
	require.ErrorIs(t, err, app.ErrNotResumable)

	_, err = uc.Execute(context.Background(), app.ResumeImportInput{JobID: "nope"})
	require.ErrorIs(t, err, app.ErrInvalidJobID)

	_, err = uc.Execute(context.Background(), app.ResumeImportInput{JobID: "a3f91a91-7fdd-43bf-bfd2-00bc02f6c53e"})
	require.ErrorIs(t, err, app.ErrImportJobNotFound)
}
