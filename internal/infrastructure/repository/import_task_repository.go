package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	domain "github.com/leadflow/lead-import/internal/domain/lead"
	"github.com/oklog/ulid/v2"
)

const defaultTaskMaxAttempts = 5

// ImportTaskRepository is the durable continuation queue. A claimed task is
// leased; a worker that stops heartbeating loses the lease and the task
// becomes claimable again, past max_attempts too, so the next worker can fail
// its job.
type ImportTaskRepository struct {
	pool *pgxpool.Pool
}

func NewImportTaskRepository(pool *pgxpool.Pool) *ImportTaskRepository {
	return &ImportTaskRepository{pool: pool}
}

func (r *ImportTaskRepository) Enqueue(ctx context.Context, task domain.SliceTask) error {
	if task.MaxAttempts <= 0 {
		task.MaxAttempts = defaultTaskMaxAttempts
	}
	_, err := r.pool.Exec(ctx, `
INSERT INTO lead_import_tasks (id, job_id, team_id, start_row, is_initial, status, attempts, max_attempts)
VALUES ($1, $2, $3, $4, $5, 'queued', 0, $6)
`, ulid.Make().String(), task.JobID, task.TeamID, task.StartRow, task.IsInitialRequest, task.MaxAttempts)
	if err != nil {
		return fmt.Errorf("enqueue import task: %w", err)
	}
	return nil
}

func (r *ImportTaskRepository) ClaimNext(ctx context.Context, leaseDuration time.Duration) (*domain.SliceTask, error) {
	row := r.pool.QueryRow(ctx, `
WITH next AS (
    SELECT id
    FROM lead_import_tasks
    WHERE (status = 'queued' AND attempts < max_attempts)
       OR (status = 'running' AND lease_expires_at < NOW())
    ORDER BY created_at, id
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
UPDATE lead_import_tasks t
SET status = 'running',
    attempts = t.attempts + 1,
    lease_expires_at = NOW() + $1::interval,
    heartbeat_at = NOW(),
    updated_at = NOW()
FROM next
WHERE t.id = next.id
RETURNING t.id, t.job_id, t.team_id, t.start_row, t.is_initial, t.attempts, t.max_attempts
`, leaseInterval(leaseDuration))

	var task domain.SliceTask
	err := row.Scan(&task.ID, &task.JobID, &task.TeamID, &task.StartRow, &task.IsInitialRequest, &task.Attempts, &task.MaxAttempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim import task: %w", err)
	}
	return &task, nil
}

func (r *ImportTaskRepository) Heartbeat(ctx context.Context, taskID string, leaseDuration time.Duration) error {
	_, err := r.pool.Exec(ctx, `
UPDATE lead_import_tasks
SET heartbeat_at = NOW(), lease_expires_at = NOW() + $2::interval, updated_at = NOW()
WHERE id = $1 AND status = 'running'
`, taskID, leaseInterval(leaseDuration))
	if err != nil {
		return fmt.Errorf("heartbeat import task: %w", err)
	}
	return nil
}

func (r *ImportTaskRepository) Complete(ctx context.Context, taskID string) error {
	return r.finish(ctx, taskID, "done", "")
}

func (r *ImportTaskRepository) Requeue(ctx context.Context, taskID string, reason string) error {
	return r.finish(ctx, taskID, "queued", reason)
}

func (r *ImportTaskRepository) Fail(ctx context.Context, taskID string, reason string) error {
	return r.finish(ctx, taskID, "failed", reason)
}

func (r *ImportTaskRepository) finish(ctx context.Context, taskID, status, reason string) error {
	_, err := r.pool.Exec(ctx, `
UPDATE lead_import_tasks
SET status = $2,
    last_error = NULLIF($3, ''),
    lease_expires_at = NULL,
    updated_at = NOW()
WHERE id = $1
`, taskID, status, reason)
	if err != nil {
		return fmt.Errorf("mark import task %s: %w", status, err)
	}
	return nil
}

func leaseInterval(d time.Duration) string {
	if d <= 0 {
		d = 30 * time.Second
	}
	return fmt.Sprintf("%d milliseconds", d.Milliseconds())
}
