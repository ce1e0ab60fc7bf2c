package lead

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/leadflow/lead-import/internal/domain/lead"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	defaultSliceSize   = 500
	defaultBatchSize   = 100
	defaultMaxErrorLog = 50
	maxRowErrorBytes   = 500
)

// ErrSliceAborted wraps failures that already moved the job to failed, so
// retrying the slice is pointless.
var ErrSliceAborted = errors.New("import slice aborted")

type BatchImporterConfig struct {
	SliceSize   int
	BatchSize   int
	MaxErrorLog int
	Logger      *logrus.Entry
	Now         func() time.Time
}

type BatchImporterDeps struct {
	Jobs      domain.ImportJobRepository
	Leads     domain.LeadRepository
	Fields    domain.CustomFieldRepository
	RowSets   domain.RowSetStore
	Queue     domain.TaskQueue
	Publisher domain.JobChangePublisher
}

// BatchImporter processes one slice of an import per call and hands the rest
// of the job to the task queue.
type BatchImporter struct {
	deps BatchImporterDeps
	cfg  BatchImporterConfig
	log  *logrus.Entry
}

func NewBatchImporter(deps BatchImporterDeps, cfg BatchImporterConfig) *BatchImporter {
	if cfg.SliceSize <= 0 {
		cfg.SliceSize = defaultSliceSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.BatchSize > cfg.SliceSize {
		cfg.BatchSize = cfg.SliceSize
	}
	if cfg.MaxErrorLog <= 0 {
		cfg.MaxErrorLog = defaultMaxErrorLog
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = logrusNop()
	}

	return &BatchImporter{
		deps: deps,
		cfg:  cfg,
		log:  log.WithField("component", "batch_importer"),
	}
}

type rowResult int

const (
	rowInserted rowResult = iota
	rowPendingInsert
	rowPendingUpdate
	rowUpdated
	rowSkippedDuplicate
	rowSkippedNoName
	rowFailed
)

type rowOutcome struct {
	result rowResult
	lead   domain.Lead
	// match is the stored lead a pending update merges onto.
	match *domain.Lead
	err   string
}

type batchTally struct {
	inserted, updated, skippedDup, skippedNoName, failed int64
	errors                                               []string
}

// ProcessSlice imports rows [StartRow, StartRow+SliceSize) of the job's
// preserved row set. Errors that were recorded on the job wrap
// ErrSliceAborted; any other error means nothing was recorded and the task
// can be retried.
func (b *BatchImporter) ProcessSlice(ctx context.Context, task domain.SliceTask) (err error) {
	log := b.log.WithFields(logrus.Fields{"job_id": task.JobID, "start_row": task.StartRow})

	job, err := b.deps.Jobs.GetImportJob(ctx, task.JobID)
	if err != nil {
		return fmt.Errorf("load import job: %w", err)
	}
	if job.Status != domain.JobPending && job.Status != domain.JobProcessing {
		log.WithField("status", job.Status).Info("import job is not active, skipping slice")
		return nil
	}

	start, end := task.StartRow, task.StartRow+b.cfg.SliceSize
	defer func() {
		if r := recover(); r != nil {
			err = b.abort(ctx, job, start, end, fmt.Errorf("panic: %v", r))
		}
	}()

	set, err := b.deps.RowSets.Load(ctx, job.ID)
	if err != nil {
		return b.abort(ctx, job, start, end, fmt.Errorf("load row set: %w", err))
	}

	total := len(set.Rows)
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end = min(start+b.cfg.SliceSize, total)
	// A retried slice picks up after the last committed inner batch.
	if cursor := job.ErrorDetails.NextRow; cursor > start && cursor <= end {
		start = cursor
	}

	if job.Status == domain.JobPending {
		updated, err := b.deps.Jobs.PatchImportJob(ctx, job.ID, domain.JobPatch{Status: domain.StatusPtr(domain.JobProcessing)})
		if err != nil {
			return b.abort(ctx, job, start, end, fmt.Errorf("mark processing: %w", err))
		}
		job = updated
	}

	catalog, err := b.deps.Fields.ListCustomFieldDefinitions(ctx, job.TeamID, domain.EntityTypeLead)
	if err != nil {
		return b.abort(ctx, job, start, end, fmt.Errorf("list custom fields: %w", err))
	}
	plan, err := CompilePlan(job.TeamID, set.Headers, set.Mappings, catalog)
	if err != nil {
		return b.abort(ctx, job, start, end, fmt.Errorf("compile mappings: %w", err))
	}

	details := job.ErrorDetails
	details.TotalBatches = (total + b.cfg.BatchSize - 1) / b.cfg.BatchSize
	processed, failed := job.ProcessedRecords, job.FailedRecords
	m := getMetrics()

	for batchStart := start; batchStart < end; batchStart += b.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		batchEnd := min(batchStart+b.cfg.BatchSize, end)
		began := time.Now()

		tally := b.runBatch(ctx, plan, set.DuplicatePolicy, set.Rows, batchStart, batchEnd)
		m.batchLatency.Observe(time.Since(began).Seconds())

		processed += tally.inserted + tally.updated + tally.skippedDup
		failed += tally.failed
		details.NewRecords += tally.inserted
		details.UpdatedRecords += tally.updated
		details.SkippedDuplicates += tally.skippedDup
		details.SkippedNoName += tally.skippedNoName
		details.FailedRecords = failed
		details.AppendErrors(tally.errors, b.cfg.MaxErrorLog)
		details.CurrentBatch = batchStart/b.cfg.BatchSize + 1
		details.NextRow = batchEnd
		details.Progress = domain.ProgressPercent(int64(batchEnd), int64(total))
		details.RowRange = ""
		details.Summary = details.BuildSummary()

		updated, err := b.deps.Jobs.PatchImportJob(ctx, job.ID, domain.JobPatch{
			ProcessedRecords: domain.Int64Ptr(processed),
			FailedRecords:    domain.Int64Ptr(failed),
			ErrorDetails:     &details,
		})
		if err != nil {
			return b.abort(ctx, job, batchStart, batchEnd, fmt.Errorf("save progress: %w", err))
		}
		job = updated
		b.publish(ctx, job)

		log.WithFields(logrus.Fields{
			"batch":     details.CurrentBatch,
			"processed": processed,
			"failed":    failed,
		}).Debug("inner batch committed")
	}

	if end < total {
		next := domain.SliceTask{JobID: job.ID, TeamID: job.TeamID, StartRow: end}
		if err := b.deps.Queue.Enqueue(ctx, next); err != nil {
			m.continuationFailed.Inc()
			m.slicesTotal.WithLabelValues("continuation_failed").Inc()
			log.WithError(err).Error("failed to enqueue continuation")
			return b.finishAfterDispatchFailure(ctx, job, details, end, err)
		}
		m.slicesTotal.WithLabelValues("continued").Inc()
		log.WithField("next_row", end).Info("slice done, continuation enqueued")
		return nil
	}

	details.Summary = details.BuildSummary()
	details.Progress = 100
	job, err = b.deps.Jobs.PatchImportJob(ctx, job.ID, domain.JobPatch{
		Status:       domain.StatusPtr(domain.FinalStatus(failed)),
		ErrorDetails: &details,
		CompletedAt:  domain.TimePtr(b.cfg.Now()),
	})
	if err != nil {
		return fmt.Errorf("finalize import job: %w", err)
	}
	b.publish(ctx, job)
	m.slicesTotal.WithLabelValues("completed").Inc()
	log.WithFields(logrus.Fields{"status": job.Status, "summary": details.Summary}).Info("import finished")
	return nil
}

// runBatch resolves every row of [from, to) concurrently, then writes the
// new leads in one bulk insert, falling back to one insert per row when the
// store rejects individual rows.
func (b *BatchImporter) runBatch(ctx context.Context, plan Plan, policy domain.DuplicatePolicy, rows [][]string, from, to int) batchTally {
	outcomes := make([]rowOutcome, to-from)

	var g errgroup.Group
	g.SetLimit(b.cfg.BatchSize)
	for i := from; i < to; i++ {
		i := i
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					b.log.WithField("row", i+1).Errorf("panic while resolving row: %v", r)
					outcomes[i-from] = rowOutcome{result: rowFailed, err: fmt.Sprintf("panic: %v", r)}
				}
			}()
			outcomes[i-from] = b.resolveRow(ctx, plan, policy, rows[i])
			return nil
		})
	}
	_ = g.Wait()

	b.writeUpdates(ctx, outcomes)
	b.writeInserts(ctx, outcomes)

	var t batchTally
	m := getMetrics()
	for i, o := range outcomes {
		switch o.result {
		case rowInserted:
			t.inserted++
			m.rowsTotal.WithLabelValues("inserted").Inc()
		case rowUpdated:
			t.updated++
			m.rowsTotal.WithLabelValues("updated").Inc()
		case rowSkippedDuplicate:
			t.skippedDup++
			m.rowsTotal.WithLabelValues("skipped_duplicate").Inc()
		case rowSkippedNoName:
			t.skippedNoName++
			m.rowsTotal.WithLabelValues("skipped_no_name").Inc()
		case rowFailed:
			t.failed++
			m.rowsTotal.WithLabelValues("failed").Inc()
			t.errors = append(t.errors, fmt.Sprintf("Row %d: %s", from+i+1, truncateString(o.err, maxRowErrorBytes)))
		}
	}
	return t
}

func (b *BatchImporter) resolveRow(ctx context.Context, plan Plan, policy domain.DuplicatePolicy, row []string) rowOutcome {
	tr := plan.Transform(row)
	if tr.NoName {
		return rowOutcome{result: rowSkippedNoName}
	}
	if len(tr.Errors) > 0 {
		return rowOutcome{result: rowFailed, err: tr.Errors[0]}
	}
	candidate := tr.Lead

	if !policy.Detects() {
		return rowOutcome{result: rowPendingInsert, lead: candidate}
	}
	value := candidate.StandardValue(string(policy.DetectionField))
	if value == "" {
		return rowOutcome{result: rowPendingInsert, lead: candidate}
	}

	existing, err := b.deps.Leads.FindByField(ctx, candidate.TeamID, policy.DetectionField, value)
	if err != nil {
		return rowOutcome{result: rowFailed, err: fmt.Sprintf("duplicate lookup failed: %v", err)}
	}
	if existing == nil {
		return rowOutcome{result: rowPendingInsert, lead: candidate}
	}

	switch policy.Action {
	case domain.ActionSkip:
		return rowOutcome{result: rowSkippedDuplicate}
	case domain.ActionUpdate:
		return rowOutcome{result: rowPendingUpdate, lead: candidate, match: existing}
	default:
		return rowOutcome{result: rowPendingInsert, lead: candidate}
	}
}

// writeUpdates applies pending updates in row order. Rows matching the same
// stored lead merge onto the result of the previous update, not onto the
// snapshot read during resolution.
func (b *BatchImporter) writeUpdates(ctx context.Context, outcomes []rowOutcome) {
	latest := map[string]domain.Lead{}
	for i := range outcomes {
		o := &outcomes[i]
		if o.result != rowPendingUpdate {
			continue
		}
		base := *o.match
		if prev, ok := latest[base.ID]; ok {
			base = prev
		}
		updated, err := b.deps.Leads.UpdateLead(ctx, base.ID, domain.BuildUpdate(base, o.lead))
		if err != nil {
			*o = rowOutcome{result: rowFailed, err: fmt.Sprintf("update failed: %v", err)}
			continue
		}
		latest[base.ID] = updated
		*o = rowOutcome{result: rowUpdated}
	}
}

func (b *BatchImporter) writeInserts(ctx context.Context, outcomes []rowOutcome) {
	var (
		idx   []int
		batch []domain.Lead
	)
	for i, o := range outcomes {
		if o.result == rowPendingInsert {
			idx = append(idx, i)
			batch = append(batch, o.lead)
		}
	}
	if len(batch) == 0 {
		return
	}

	err := b.deps.Leads.InsertLeads(ctx, batch)
	if err == nil {
		for _, i := range idx {
			outcomes[i].result = rowInserted
		}
		return
	}

	if !errors.Is(err, domain.ErrBulkRejected) {
		for _, i := range idx {
			outcomes[i] = rowOutcome{result: rowFailed, err: fmt.Sprintf("insert failed: %v", err)}
		}
		return
	}

	getMetrics().bulkFallbackTotal.Inc()
	b.log.WithError(err).WithField("rows", len(batch)).Warn("bulk insert rejected, retrying rows one by one")
	for _, i := range idx {
		if _, err := b.deps.Leads.InsertLead(ctx, outcomes[i].lead); err != nil {
			outcomes[i] = rowOutcome{result: rowFailed, err: fmt.Sprintf("insert failed: %v", err)}
			continue
		}
		outcomes[i].result = rowInserted
	}
}

func (b *BatchImporter) finishAfterDispatchFailure(ctx context.Context, job domain.ImportJob, details domain.ErrorDetails, nextRow int, cause error) error {
	details.Continuation = truncateString(fmt.Sprintf("continuation failed at row %d: %v", nextRow+1, cause), maxRowErrorBytes)
	details.Summary = details.BuildSummary() + "; import stopped early because the next slice could not be scheduled"
	details.AppendErrors([]string{details.Continuation}, b.cfg.MaxErrorLog)

	job, err := b.deps.Jobs.PatchImportJob(context.WithoutCancel(ctx), job.ID, domain.JobPatch{
		Status:       domain.StatusPtr(domain.JobCompletedWithErrors),
		ErrorDetails: &details,
		CompletedAt:  domain.TimePtr(b.cfg.Now()),
	})
	if err != nil {
		return fmt.Errorf("%w: enqueue continuation: %v; finalize job: %v", ErrSliceAborted, cause, err)
	}
	b.publish(ctx, job)
	return fmt.Errorf("%w: enqueue continuation: %v", ErrSliceAborted, cause)
}

// FailJob marks the task's job failed once its slice has run out of
// attempts. A job that already reached a terminal status is left alone.
func (b *BatchImporter) FailJob(ctx context.Context, task domain.SliceTask, cause error) error {
	job, err := b.deps.Jobs.GetImportJob(ctx, task.JobID)
	if err != nil {
		return fmt.Errorf("load import job: %w", err)
	}
	if job.Status.IsTerminal() {
		return nil
	}

	from := max(task.StartRow, 0)
	to := from + b.cfg.SliceSize
	if job.TotalRecords > 0 {
		to = min(to, int(job.TotalRecords))
	}
	if cursor := job.ErrorDetails.NextRow; cursor > from && cursor < to {
		from = cursor
	}
	getMetrics().slicesTotal.WithLabelValues("exhausted").Inc()
	return b.markFailed(ctx, job, from, to, fmt.Errorf("slice gave up after %d attempts: %w", task.Attempts, cause))
}

// abort marks the job failed with cause and the affected row range.
func (b *BatchImporter) abort(ctx context.Context, job domain.ImportJob, from, to int, cause error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	getMetrics().slicesTotal.WithLabelValues("failed").Inc()
	if err := b.markFailed(ctx, job, from, to, cause); err != nil {
		return fmt.Errorf("%w: %v; %v", ErrSliceAborted, cause, err)
	}
	return fmt.Errorf("%w: %v", ErrSliceAborted, cause)
}

func (b *BatchImporter) markFailed(ctx context.Context, job domain.ImportJob, from, to int, cause error) error {
	b.log.WithError(cause).WithField("job_id", job.ID).Error("import slice failed")

	details := job.ErrorDetails
	details.RowRange = fmt.Sprintf("%d-%d", from+1, max(to, from+1))
	msg := truncateString(cause.Error(), maxRowErrorBytes)
	details.Summary = "Import failed: " + msg
	details.AppendErrors([]string{fmt.Sprintf("Rows %s: %s", details.RowRange, msg)}, b.cfg.MaxErrorLog)

	updated, err := b.deps.Jobs.PatchImportJob(context.WithoutCancel(ctx), job.ID, domain.JobPatch{
		Status:       domain.StatusPtr(domain.JobFailed),
		ErrorDetails: &details,
		CompletedAt:  domain.TimePtr(b.cfg.Now()),
	})
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	b.publish(ctx, updated)
	return nil
}

func (b *BatchImporter) publish(ctx context.Context, job domain.ImportJob) {
	if b.deps.Publisher == nil {
		return
	}
	if err := b.deps.Publisher.PublishJobChange(ctx, domain.JobChange{TeamID: job.TeamID, JobID: job.ID}); err != nil {
		b.log.WithError(err).WithField("job_id", job.ID).Warn("publish job change failed")
	}
}
