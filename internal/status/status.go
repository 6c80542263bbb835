package status

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"clipforge/internal/jobs"
)

// Event is the message published for every job status change. Render
// completion carries the clip list; failures carry the error string.
type Event struct {
	Status    jobs.Status `json:"status"`
	ClipsPath []string    `json:"clips_path,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Status.IsTerminal()
}

// Topic returns the pub/sub channel name for a job.
func Topic(jobID string) string {
	return "job:" + jobID
}

// Publisher broadcasts job status events.
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher wraps an existing redis client.
func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// Publish sends an event to the job's topic. Subscribers that are not
// connected at publish time never see it.
func (p *Publisher) Publish(ctx context.Context, jobID string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode status event: %w", err)
	}
	if err := p.rdb.Publish(ctx, Topic(jobID), payload).Err(); err != nil {
		return fmt.Errorf("publish status event: %w", err)
	}
	return nil
}

// Subscription is one client's view of a job's status stream. Each
// subscription holds dedicated pub/sub state on the connection, mirroring the
// one-subscriber-connection-per-stream contract of the API layer.
type Subscription struct {
	pubsub    *redis.PubSub
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// Subscriber creates per-job subscriptions.
type Subscriber struct {
	rdb *redis.Client
}

// NewSubscriber wraps an existing redis client.
func NewSubscriber(rdb *redis.Client) *Subscriber {
	return &Subscriber{rdb: rdb}
}

// Subscribe opens a subscription for one job. The caller must Close it; the
// event channel is closed after a terminal event or when the context ends.
func (s *Subscriber) Subscribe(ctx context.Context, jobID string) (*Subscription, error) {
	pubsub := s.rdb.Subscribe(ctx, Topic(jobID))
	// Force the SUBSCRIBE round trip so publishes after this call are seen.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", Topic(jobID), err)
	}

	sub := &Subscription{
		pubsub: pubsub,
		events: make(chan Event, 8),
		done:   make(chan struct{}),
	}
	go sub.pump(ctx)
	return sub, nil
}

func (sub *Subscription) pump(ctx context.Context) {
	defer close(sub.events)
	ch := sub.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				// Malformed payloads are dropped; the stream stays open.
				continue
			}
			select {
			case sub.events <- event:
			case <-ctx.Done():
				return
			case <-sub.done:
				return
			}
			if event.Terminal() {
				return
			}
		}
	}
}

// Events returns the stream of status events. The channel closes after a
// terminal event, on Close, or when the subscribe context ends.
func (sub *Subscription) Events() <-chan Event {
	return sub.events
}

// Close unsubscribes and releases the pub/sub state. Safe to call more than once.
func (sub *Subscription) Close() error {
	sub.closeOnce.Do(func() { close(sub.done) })
	return sub.pubsub.Close()
}
