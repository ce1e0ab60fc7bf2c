package progress

import (
	"context"
	"sync"
	"time"

	domain "github.com/leadflow/lead-import/internal/domain/lead"
	"github.com/sirupsen/logrus"
)

const (
	defaultActiveInterval = 10 * time.Second
	defaultIdleInterval   = 30 * time.Second
	defaultCooldown       = 2 * time.Second
	defaultLimit          = 20
)

type JobLister interface {
	ListActiveImportJobs(ctx context.Context, teamID string, limit int) ([]domain.ImportJob, error)
}

// Entry is what a progress bar shows for one active job.
type Entry struct {
	JobID     string `json:"job_id"`
	FileName  string `json:"file_name"`
	Status    string `json:"status"`
	Processed int64  `json:"processed"`
	Total     int64  `json:"total"`
	Failed    int64  `json:"failed"`
	Percent   int    `json:"percent"`
	Summary   string `json:"summary"`
}

type Config struct {
	ActiveInterval time.Duration
	IdleInterval   time.Duration
	Cooldown       time.Duration
	Limit          int
	Logger         *logrus.Entry
	Now            func() time.Time
}

// Notifier tracks the active imports of one team. It polls faster while a
// job is running and coalesces pushed change events behind a cooldown.
type Notifier struct {
	teamID     string
	lister     JobLister
	subscriber domain.JobChangeSubscriber
	cfg        Config
	log        *logrus.Entry

	mu        sync.Mutex
	entries   []Entry
	dismissed map[string]struct{}
	lastQuery time.Time
	queried   bool

	updates chan struct{}
}

// New builds a notifier for teamID. subscriber may be nil, in which case
// the notifier only polls.
func New(teamID string, lister JobLister, subscriber domain.JobChangeSubscriber, cfg Config) *Notifier {
	if cfg.ActiveInterval <= 0 {
		cfg.ActiveInterval = defaultActiveInterval
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = defaultIdleInterval
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultCooldown
	}
	if cfg.Limit <= 0 {
		cfg.Limit = defaultLimit
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := cfg.Logger
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = logrus.NewEntry(l)
	}

	return &Notifier{
		teamID:     teamID,
		lister:     lister,
		subscriber: subscriber,
		cfg:        cfg,
		log:        log.WithFields(logrus.Fields{"component": "progress_notifier", "team_id": teamID}),
		dismissed:  map[string]struct{}{},
		updates:    make(chan struct{}, 1),
	}
}

// Updates signals after every refresh or dismissal.
func (n *Notifier) Updates() <-chan struct{} {
	return n.updates
}

// Entries returns the active jobs that were not dismissed.
func (n *Notifier) Entries() []Entry {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]Entry, 0, len(n.entries))
	for _, e := range n.entries {
		if _, hidden := n.dismissed[e.JobID]; hidden {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Dismiss hides jobID from Entries. The job record is not touched.
func (n *Notifier) Dismiss(jobID string) {
	n.mu.Lock()
	n.dismissed[jobID] = struct{}{}
	n.mu.Unlock()
	n.signal()
}

// NextInterval is the polling delay given the last known state.
func (n *Notifier) NextInterval() time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.entries) > 0 {
		return n.cfg.ActiveInterval
	}
	return n.cfg.IdleInterval
}

// cooldownLeft is how long a refresh must still wait.
func (n *Notifier) cooldownLeft() time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.queried {
		return 0
	}
	left := n.cfg.Cooldown - n.cfg.Now().Sub(n.lastQuery)
	if left < 0 {
		return 0
	}
	return left
}

// Refresh queries the active jobs unless the previous query is younger than
// the cooldown. It reports whether a query ran.
func (n *Notifier) Refresh(ctx context.Context) (bool, error) {
	if n.cooldownLeft() > 0 {
		return false, nil
	}

	n.mu.Lock()
	n.lastQuery = n.cfg.Now()
	n.queried = true
	n.mu.Unlock()

	jobs, err := n.lister.ListActiveImportJobs(ctx, n.teamID, n.cfg.Limit)
	if err != nil {
		return true, err
	}

	entries := make([]Entry, 0, len(jobs))
	active := make(map[string]struct{}, len(jobs))
	for _, job := range jobs {
		active[job.ID] = struct{}{}
		entries = append(entries, Entry{
			JobID:     job.ID,
			FileName:  job.FileName,
			Status:    string(job.Status),
			Processed: job.ProcessedRecords,
			Total:     job.TotalRecords,
			Failed:    job.FailedRecords,
			Percent:   job.Percent(),
			Summary:   job.ErrorDetails.Summary,
		})
	}

	n.mu.Lock()
	n.entries = entries
	for id := range n.dismissed {
		if _, ok := active[id]; !ok {
			delete(n.dismissed, id)
		}
	}
	n.mu.Unlock()

	n.signal()
	return true, nil
}

// Run polls until ctx is done. Change events trigger an early refresh that
// still waits out the cooldown.
func (n *Notifier) Run(ctx context.Context) error {
	var changes <-chan domain.JobChange
	if n.subscriber != nil {
		ch, cancel, err := n.subscriber.SubscribeJobChanges(ctx, n.teamID)
		if err != nil {
			n.log.WithError(err).Warn("job change subscription failed, polling only")
		} else {
			defer cancel()
			changes = ch
		}
	}

	if _, err := n.Refresh(ctx); err != nil {
		n.log.WithError(err).Warn("initial refresh failed")
	}

	pushed := false
	for {
		wait := n.NextInterval()
		if pushed {
			wait = min(wait, n.cooldownLeft())
		}
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case _, ok := <-changes:
			timer.Stop()
			if !ok {
				changes = nil
				continue
			}
			pushed = true
		case <-timer.C:
			ran, err := n.Refresh(ctx)
			if err != nil && ctx.Err() == nil {
				n.log.WithError(err).Warn("refresh active imports failed")
			}
			if ran {
				pushed = false
			}
		}
	}
}

func (n *Notifier) signal() {
	select {
	case n.updates <- struct{}{}:
	default:
	}
}
