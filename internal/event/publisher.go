package event

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"caremesh.org/internal/obs"
)

// payloadField is the stream entry field holding the JSON payload.
const payloadField = "payload"

// Publisher is the identity event emission port.
type Publisher interface {
	Publish(ctx context.Context, evt Identity) error
}

// StreamPublisher appends events to per-topic Redis streams. Ordering is
// guaranteed within a single stream, not across streams.
type StreamPublisher struct {
	rdb    *redis.Client
	maxLen int64
}

// NewStreamPublisher constructs a publisher with a bounded stream length so
// an absent consumer cannot grow streams without limit.
func NewStreamPublisher(rdb *redis.Client, maxLen int64) *StreamPublisher {
	if maxLen <= 0 {
		maxLen = 100_000
	}
	return &StreamPublisher{rdb: rdb, maxLen: maxLen}
}

// Publish appends the event to its topic stream.
func (p *StreamPublisher) Publish(ctx context.Context, evt Identity) error {
	payload, err := evt.Encode()
	if err != nil {
		return err
	}
	err = p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: evt.Topic(),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{payloadField: payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish %s: %w", evt.Topic(), err)
	}
	obs.EventsPublished.WithLabelValues(evt.Topic()).Inc()
	return nil
}

// NopPublisher discards events. Used in tests and when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Identity) error { return nil }
