package lead_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	app "github.com/leadflow/lead-import/internal/application/lead"
	domain "github.com/leadflow/lead-import/internal/domain/lead"
	"github.com/leadflow/lead-import/internal/infrastructure/memory"
	"github.com/stretchr/testify/require"
)

// recordingJobs remembers every job state a patch produced.
type recordingJobs struct {
	*memory.ImportJobStore

	mu      sync.Mutex
	history []domain.ImportJob
}

func (r *recordingJobs) PatchImportJob(ctx context.Context, jobID string, patch domain.JobPatch) (domain.ImportJob, error) {
	job, err := r.ImportJobStore.PatchImportJob(ctx, jobID, patch)
	if err == nil {
		r.mu.Lock()
		r.history = append(r.history, job)
		r.mu.Unlock()
	}
	return job, err
}

type failingQueue struct {
	err error
}

func (q failingQueue) Enqueue(ctx context.Context, task domain.SliceTask) error {
	return q.err
}

type harness struct {
	jobs     *recordingJobs
	leads    *memory.LeadStore
	fields   *memory.CustomFieldStore
	rowSets  *memory.RowSetStore
	queue    *memory.TaskQueue
	broker   *memory.ChangeBroker
	importer *app.BatchImporter
	start    app.StartImport
}

func newHarness(t *testing.T, sliceSize, batchSize int) *harness {
	t.Helper()

	h := &harness{
		jobs:    &recordingJobs{ImportJobStore: memory.NewImportJobStore()},
		leads:   memory.NewLeadStore(),
		fields:  memory.NewCustomFieldStore(),
		rowSets: memory.NewRowSetStore(),
		queue:   memory.NewTaskQueue(),
		broker:  memory.NewChangeBroker(),
	}
	h.importer = app.NewBatchImporter(app.BatchImporterDeps{
		Jobs:      h.jobs,
		Leads:     h.leads,
		Fields:    h.fields,
		RowSets:   h.rowSets,
		Queue:     h.queue,
		Publisher: h.broker,
	}, app.BatchImporterConfig{SliceSize: sliceSize, BatchSize: batchSize, MaxErrorLog: 10})
	h.start = app.NewStartImport(h.jobs, h.fields, h.rowSets, h.queue, nil)
	return h
}

// drain runs queued slices until the queue is empty and returns how many
// slices ran.
func (h *harness) drain(t *testing.T) int {
	t.Helper()

	ctx := context.Background()
	runs := 0
	for {
		task, err := h.queue.ClaimNext(ctx, time.Minute)
		require.NoError(t, err)
		if task == nil {
			return runs
		}
		runs++
		require.LessOrEqual(t, runs, 100, "importer did not converge")

		if err := h.importer.ProcessSlice(ctx, *task); err != nil && !errors.Is(err, app.ErrSliceAborted) {
			require.NoError(t, err)
		}
		require.NoError(t, h.queue.Complete(ctx, task.ID))
	}
}

func (h *harness) job(t *testing.T, id string) domain.ImportJob {
	t.Helper()

	job, err := h.jobs.GetImportJob(context.Background(), id)
	require.NoError(t, err)
	return job
}

func nameEmailMappings() []domain.ColumnMapping {
	return []domain.ColumnMapping{
		{SourceColumnName: "Name", TargetFieldKey: target("name")},
		{SourceColumnName: "Email", TargetFieldKey: target("email")},
	}
}

func generatedRows(n int) [][]string {
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = []string{fmt.Sprintf("Lead %04d", i+1), fmt.Sprintf("lead%04d@example.test", i+1)}
	}
	return rows
}

func startInput(rows [][]string, policy *domain.DuplicatePolicy) app.StartImportInput {
	return app.StartImportInput{
		Rows:            rows,
		Headers:         []string{"Name", "Email"},
		Mappings:        nameEmailMappings(),
		DuplicatePolicy: policy,
		TeamID:          "team-1",
		UserID:          "user-1",
		FileName:        "leads.csv",
	}
}
