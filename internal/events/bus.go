package events

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Subscriber is a per-listener buffered channel; a send that would block
// counts as a failure and removes the subscriber under the bus's lock, so a
// slow peer can never hold up fan-out to everyone else.
type Subscriber struct {
	id  string
	ch  chan Event
	seq uint64
}

// NewSubscriber creates a subscriber with the given buffer depth.
func NewSubscriber(id string, buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = 32
	}
	return &Subscriber{id: id, ch: make(chan Event, buffer)}
}

// C returns the channel a subscriber should range over to receive events.
func (s *Subscriber) C() <-chan Event { return s.ch }

// Bus is a process-singleton, job-scoped pub/sub fan-out. It has no
// persistence: a subscriber that attaches late only sees what it is sent
// after subscribing (callers synthesize an initial_status event from the
// current Plan snapshot separately).
type Bus struct {
	mu      sync.Mutex
	subs    map[string]map[*Subscriber]struct{}
	nextSeq uint64

	published metric.Int64Counter
	dropped   metric.Int64Counter
}

// NewBus constructs an empty event bus.
func NewBus(meter metric.Meter) *Bus {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter("journeyforge-events")
	}
	published, _ := meter.Int64Counter("journeyforge_events_published_total")
	dropped, _ := meter.Int64Counter("journeyforge_events_dropped_total")
	return &Bus{
		subs:      make(map[string]map[*Subscriber]struct{}),
		published: published,
		dropped:   dropped,
	}
}

// Subscribe registers sub to receive events for jobID. sub.seq is stamped
// with a monotonic sequence number so Publish can fan out in registration
// order despite Go's randomized map iteration.
func (b *Bus) Subscribe(jobID string, sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSeq++
	sub.seq = b.nextSeq
	set, ok := b.subs[jobID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		b.subs[jobID] = set
	}
	set[sub] = struct{}{}
}

// Unsubscribe removes sub from jobID's subscriber set. A second call or an
// unknown pair is a no-op.
func (b *Bus) Unsubscribe(jobID string, sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[jobID]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(b.subs, jobID)
	}
}

// UnsubscribeAll drops every subscriber for jobID, used when a job's plan is
// evicted from the registry.
func (b *Bus) UnsubscribeAll(jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, jobID)
}

// Publish fans ev out to every current subscriber of ev.JobID, in
// registration order. The bus mutex is held only long enough to snapshot
// the subscriber set; sends happen after releasing it so one slow peer
// cannot block delivery to the others. A send that would block is a
// failure: the subscriber is counted and removed.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.Lock()
	set := b.subs[ev.JobID]
	snapshot := make([]*Subscriber, 0, len(set))
	for sub := range set {
		snapshot = append(snapshot, sub)
	}
	b.mu.Unlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].seq < snapshot[j].seq })

	if b.published != nil {
		b.published.Add(ctx, 1, metric.WithAttributes(attribute.String("event", string(ev.EventKind))))
	}

	var failed []*Subscriber
	for _, sub := range snapshot {
		select {
		case sub.ch <- ev:
		default:
			failed = append(failed, sub)
		}
	}

	if len(failed) == 0 {
		return
	}

	b.mu.Lock()
	for _, sub := range failed {
		if set, ok := b.subs[ev.JobID]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(b.subs, ev.JobID)
			}
		}
	}
	b.mu.Unlock()

	if b.dropped != nil {
		b.dropped.Add(ctx, int64(len(failed)), metric.WithAttributes(attribute.String("event", string(ev.EventKind))))
	}
}

// SubscriberCount returns the number of active subscribers for jobID, for
// tests and diagnostics.
func (b *Bus) SubscriberCount(jobID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[jobID])
}
