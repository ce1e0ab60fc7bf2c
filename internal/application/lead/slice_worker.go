package lead

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	domain "github.com/leadflow/lead-import/internal/domain/lead"
	"github.com/sirupsen/logrus"
)

type sliceProcessor interface {
	ProcessSlice(ctx context.Context, task domain.SliceTask) error
	FailJob(ctx context.Context, task domain.SliceTask, cause error) error
}

var errLeaseLost = errors.New("lease expired during the final attempt")

type SliceWorkerConfig struct {
	Workers           int
	PollInterval      time.Duration
	LeaseDuration     time.Duration
	HeartbeatInterval time.Duration
	Logger            *logrus.Entry
}

// SliceWorker claims continuation tasks from the queue and runs them through
// the batch importer.
type SliceWorker struct {
	tasks    domain.TaskClaimer
	importer sliceProcessor
	cfg      SliceWorkerConfig
	log      *logrus.Entry

	once sync.Once
	wg   sync.WaitGroup
}

func NewSliceWorker(tasks domain.TaskClaimer, importer sliceProcessor, cfg SliceWorkerConfig) *SliceWorker {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = 2 * time.Minute
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = cfg.LeaseDuration / 2
	}
	log := cfg.Logger
	if log == nil {
		log = logrusNop()
	}

	return &SliceWorker{
		tasks:    tasks,
		importer: importer,
		cfg:      cfg,
		log:      log.WithField("component", "slice_worker"),
	}
}

func (w *SliceWorker) Start(ctx context.Context) {
	w.once.Do(func() {
		for i := 0; i < w.cfg.Workers; i++ {
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				w.workerLoop(ctx)
			}()
		}
	})
}

// Wait blocks until every worker loop returned after ctx was cancelled.
func (w *SliceWorker) Wait() {
	w.wg.Wait()
}

func (w *SliceWorker) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := w.tasks.ClaimNext(ctx, w.cfg.LeaseDuration)
		if err != nil {
			if ctx.Err() == nil {
				w.log.WithError(err).Warn("claim next import task failed")
			}
			if !sleepWithContext(ctx, w.cfg.PollInterval) {
				return
			}
			continue
		}

		if task == nil {
			if !sleepWithContext(ctx, w.cfg.PollInterval) {
				return
			}
			continue
		}

		if err := w.RunTask(ctx, *task); err != nil {
			w.log.WithError(err).WithFields(logrus.Fields{"task_id": task.ID, "job_id": task.JobID}).Error("import task failed")
		}
	}
}

// RunTask processes one claimed task and settles it on the queue. A task
// that exhausts its attempts fails its job too, so the job never stays in
// processing without a task behind it.
func (w *SliceWorker) RunTask(ctx context.Context, task domain.SliceTask) error {
	if task.Attempts > task.MaxAttempts {
		// The previous holder died on the last attempt.
		return w.giveUp(ctx, task, errLeaseLost)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go w.heartbeat(runCtx, task.ID)

	err := w.importer.ProcessSlice(runCtx, task)
	if err == nil {
		if cErr := w.tasks.Complete(ctx, task.ID); cErr != nil {
			return fmt.Errorf("complete task: %w", cErr)
		}
		return nil
	}
	if ctx.Err() != nil {
		// Shutdown: the lease expires and another worker picks the task up.
		return err
	}

	if !errors.Is(err, ErrSliceAborted) && task.Attempts >= task.MaxAttempts {
		return w.giveUp(ctx, task, err)
	}

	reason := truncateReason(err.Error())
	if errors.Is(err, ErrSliceAborted) {
		if failErr := w.tasks.Fail(ctx, task.ID, reason); failErr != nil {
			return fmt.Errorf("%v; fail update failed: %w", err, failErr)
		}
		return err
	}
	if requeueErr := w.tasks.Requeue(ctx, task.ID, reason); requeueErr != nil {
		return fmt.Errorf("%v; requeue failed: %w", err, requeueErr)
	}
	return err
}

// giveUp fails the job and then the task. When the job cannot be updated
// the task keeps its lease, so it is claimed again once the lease expires
// and the job update is retried.
func (w *SliceWorker) giveUp(ctx context.Context, task domain.SliceTask, cause error) error {
	if jobErr := w.importer.FailJob(ctx, task, cause); jobErr != nil {
		return fmt.Errorf("%v; mark job failed: %w", cause, jobErr)
	}
	if failErr := w.tasks.Fail(ctx, task.ID, truncateReason(cause.Error())); failErr != nil {
		return fmt.Errorf("%v; fail update failed: %w", cause, failErr)
	}
	w.log.WithError(cause).WithFields(logrus.Fields{"task_id": task.ID, "job_id": task.JobID}).Warn("import task out of attempts, job marked failed")
	return cause
}

func (w *SliceWorker) heartbeat(ctx context.Context, taskID string) {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.tasks.Heartbeat(ctx, taskID, w.cfg.LeaseDuration); err != nil && ctx.Err() == nil {
				w.log.WithError(err).WithField("task_id", taskID).Warn("task heartbeat failed")
			}
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func truncateReason(reason string) string {
	return truncateString(strings.TrimSpace(reason), 1000)
}
