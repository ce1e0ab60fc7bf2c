package redisnotify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	domain "github.com/leadflow/lead-import/internal/domain/lead"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const channelPrefix = "lead_import:team:"

func Channel(teamID string) string {
	return channelPrefix + teamID
}

// Broker publishes job changes on a per-team Redis channel so progress
// subscribers on any API instance are woken by any worker.
type Broker struct {
	client *redis.Client
	log    *logrus.Entry
}

func NewBroker(client *redis.Client, log *logrus.Entry) *Broker {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Broker{client: client, log: log.WithField("component", "redisnotify")}
}

func (b *Broker) PublishJobChange(ctx context.Context, change domain.JobChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("encode job change: %w", err)
	}
	if err := b.client.Publish(ctx, Channel(change.TeamID), payload).Err(); err != nil {
		return fmt.Errorf("publish job change: %w", err)
	}
	return nil
}

func (b *Broker) SubscribeJobChanges(ctx context.Context, teamID string) (<-chan domain.JobChange, func(), error) {
	sub := b.client.Subscribe(ctx, Channel(teamID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe job changes: %w", err)
	}

	out := make(chan domain.JobChange, 16)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = sub.Close()
		})
	}

	go func() {
		defer close(out)
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				change, err := decodeChange(msg.Payload)
				if err != nil {
					b.log.WithError(err).Warn("dropping malformed job change")
					continue
				}
				select {
				case out <- change:
				default:
				}
			}
		}
	}()

	return out, cancel, nil
}

func decodeChange(payload string) (domain.JobChange, error) {
	var change domain.JobChange
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return domain.JobChange{}, fmt.Errorf("decode job change: %w", err)
	}
	return change, nil
}
