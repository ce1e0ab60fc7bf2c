package memory

import (
	"context"
	"sync"

	domain "github.com/leadflow/lead-import/internal/domain/lead"
)

const subscriberBuffer = 16

// ChangeBroker fans job changes out to in-process subscribers. Slow
// subscribers miss events instead of blocking publishers.
type ChangeBroker struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan domain.JobChange
}

func NewChangeBroker() *ChangeBroker {
	return &ChangeBroker{subs: map[string]map[int]chan domain.JobChange{}}
}

func (b *ChangeBroker) PublishJobChange(ctx context.Context, change domain.JobChange) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs[change.TeamID] {
		select {
		case ch <- change:
		default:
		}
	}
	return nil
}

func (b *ChangeBroker) SubscribeJobChanges(ctx context.Context, teamID string) (<-chan domain.JobChange, func(), error) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan domain.JobChange, subscriberBuffer)
	if b.subs[teamID] == nil {
		b.subs[teamID] = map[int]chan domain.JobChange{}
	}
	b.subs[teamID][id] = ch
	b.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[teamID], id)
			b.mu.Unlock()
			close(ch)
			close(done)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return ch, cancel, nil
}
