package event

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"caremesh.org/internal/obs"
)

// Handler applies the side effect for one event. Handlers run on the worker
// pool and must be idempotent: at-least-once delivery makes duplicates
// possible after any failure or restart.
type Handler func(ctx context.Context, evt Identity) error

const (
	defaultWorkers       = 3
	defaultMaxDeliveries = 5
	readBlock            = 5 * time.Second
	reclaimEvery         = time.Minute
	reclaimMinIdle       = time.Minute
	parkedSuffix         = ".parked"
)

// Consumer pulls identity events from per-topic streams as part of a shared
// consumer group, so each event is processed once per downstream service
// rather than once per instance. Entries are acknowledged only after the
// handler succeeds; unacknowledged entries are redelivered, and after
// maxDeliveries attempts they are parked on <topic>.parked instead of being
// retried forever.
type Consumer struct {
	rdb      *redis.Client
	group    string
	name     string
	handlers map[string]Handler

	workers       int
	maxDeliveries int64
	now           func() time.Time
}

// ConsumerOption configures Consumer behavior.
type ConsumerOption func(*Consumer)

// WithWorkers overrides the handler pool size.
func WithWorkers(n int) ConsumerOption {
	return func(c *Consumer) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithMaxDeliveries overrides the redelivery budget before parking.
func WithMaxDeliveries(n int64) ConsumerOption {
	return func(c *Consumer) {
		if n > 0 {
			c.maxDeliveries = n
		}
	}
}

// NewConsumer constructs a consumer for the given group and instance name.
// One Handler is registered per topic via Handle before calling Run.
func NewConsumer(rdb *redis.Client, group, name string, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		rdb:           rdb,
		group:         group,
		name:          name,
		handlers:      make(map[string]Handler),
		workers:       defaultWorkers,
		maxDeliveries: defaultMaxDeliveries,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle registers the handler for a topic. Not safe to call after Run.
func (c *Consumer) Handle(topic string, h Handler) {
	c.handlers[topic] = h
}

type delivery struct {
	topic   string
	id      string
	payload []byte
}

// Run blocks until ctx is cancelled. Shutdown is graceful: stop pulling new
// entries, finish in-flight handlers, return.
func (c *Consumer) Run(ctx context.Context) error {
	topics := make([]string, 0, len(c.handlers))
	for topic := range c.handlers {
		topics = append(topics, topic)
	}
	if len(topics) == 0 {
		return nil
	}
	if err := c.ensureGroups(ctx, topics); err != nil {
		return err
	}

	jobs := make(chan delivery)

	var workersWG sync.WaitGroup
	workersWG.Add(c.workers)
	for i := 0; i < c.workers; i++ {
		go func() {
			defer workersWG.Done()
			for job := range jobs {
				c.process(ctx, job)
			}
		}()
	}

	var producersWG sync.WaitGroup
	producersWG.Add(2)
	go func() {
		defer producersWG.Done()
		c.readLoop(ctx, topics, jobs)
	}()
	go func() {
		defer producersWG.Done()
		c.reclaimLoop(ctx, topics, jobs)
	}()

	producersWG.Wait()
	close(jobs)
	workersWG.Wait()
	return ctx.Err()
}

func (c *Consumer) ensureGroups(ctx context.Context, topics []string) error {
	for _, topic := range topics {
		err := c.rdb.XGroupCreateMkStream(ctx, topic, c.group, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return err
		}
	}
	return nil
}

func (c *Consumer) readLoop(ctx context.Context, topics []string, jobs chan<- delivery) {
	streams := make([]string, 0, 2*len(topics))
	streams = append(streams, topics...)
	for range topics {
		streams = append(streams, ">")
	}

	for {
		if ctx.Err() != nil {
			return
		}
		res, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.name,
			Streams:  streams,
			Count:    16,
			Block:    readBlock,
		}).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			obs.Warn("event read failed", map[string]any{"group": c.group, "error": err.Error()})
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		for _, stream := range res {
			for _, msg := range stream.Messages {
				payload, ok := msg.Values[payloadField].(string)
				if !ok {
					// Not one of ours; park immediately so it cannot loop.
					c.park(ctx, stream.Stream, msg.ID, nil)
					continue
				}
				select {
				case jobs <- delivery{topic: stream.Stream, id: msg.ID, payload: []byte(payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// reclaimLoop redelivers pending entries abandoned by dead consumers and
// parks entries that exhausted their delivery budget.
func (c *Consumer) reclaimLoop(ctx context.Context, topics []string, jobs chan<- delivery) {
	ticker := time.NewTicker(reclaimEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, topic := range topics {
			c.reclaimTopic(ctx, topic, jobs)
		}
	}
}

func (c *Consumer) reclaimTopic(ctx context.Context, topic string, jobs chan<- delivery) {
	pending, err := c.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: topic,
		Group:  c.group,
		Start:  "-",
		End:    "+",
		Count:  100,
		Idle:   reclaimMinIdle,
	}).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			obs.Warn("event pending scan failed", map[string]any{"topic": topic, "error": err.Error()})
		}
		return
	}
	for _, entry := range pending {
		msgs, err := c.rdb.XClaim(ctx, &redis.XClaimArgs{
			Stream:   topic,
			Group:    c.group,
			Consumer: c.name,
			MinIdle:  reclaimMinIdle,
			Messages: []string{entry.ID},
		}).Result()
		if err != nil || len(msgs) == 0 {
			continue
		}
		msg := msgs[0]
		payload, _ := msg.Values[payloadField].(string)
		if entry.RetryCount >= c.maxDeliveries {
			c.park(ctx, topic, msg.ID, []byte(payload))
			continue
		}
		select {
		case jobs <- delivery{topic: topic, id: msg.ID, payload: []byte(payload)}:
		case <-ctx.Done():
			return
		}
	}
}

// park moves a poisoned entry to the topic's parked stream and acknowledges
// the original so it is never redelivered again. Parked entries are kept for
// operator inspection; nothing replays them automatically.
func (c *Consumer) park(ctx context.Context, topic, id string, payload []byte) {
	err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: topic + parkedSuffix,
		Values: map[string]any{payloadField: payload, "origin_id": id, "group": c.group},
	}).Err()
	if err != nil {
		obs.Error("event park failed", map[string]any{"topic": topic, "id": id, "error": err.Error()})
		return
	}
	if err := c.rdb.XAck(ctx, topic, c.group, id).Err(); err != nil {
		obs.Error("event park ack failed", map[string]any{"topic": topic, "id": id, "error": err.Error()})
		return
	}
	obs.EventsParked.WithLabelValues(topic).Inc()
	obs.Warn("event parked after repeated failures", map[string]any{"topic": topic, "id": id})
}

func (c *Consumer) process(ctx context.Context, job delivery) {
	evt, err := Decode(job.payload)
	if err != nil {
		// Leave unacknowledged: the entry stays pending and is either
		// redelivered or parked by the reclaim loop.
		obs.EventsConsumed.WithLabelValues(job.topic, "decode_error").Inc()
		obs.Warn("event decode failed", map[string]any{"topic": job.topic, "id": job.id})
		return
	}
	handler, ok := c.handlers[job.topic]
	if !ok {
		obs.EventsConsumed.WithLabelValues(job.topic, "no_handler").Inc()
		return
	}
	if err := handler(ctx, evt); err != nil {
		obs.EventsConsumed.WithLabelValues(job.topic, "handler_error").Inc()
		obs.Warn("event handler failed", map[string]any{
			"topic": job.topic, "id": job.id, "user_id": evt.UserID, "error": err.Error(),
		})
		return
	}
	if err := c.rdb.XAck(ctx, job.topic, c.group, job.id).Err(); err != nil {
		obs.Warn("event ack failed", map[string]any{"topic": job.topic, "id": job.id, "error": err.Error()})
		return
	}
	obs.EventsConsumed.WithLabelValues(job.topic, "ok").Inc()
}
