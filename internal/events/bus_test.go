package events

import (
	"context"
	"testing"
	"time"
)

func TestSubscribeUnsubscribeLeavesEmptySet(t *testing.T) {
	bus := NewBus(nil)
	sub := NewSubscriber("s1", 4)
	bus.Subscribe("job_1", sub)
	if got := bus.SubscriberCount("job_1"); got != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", got)
	}
	bus.Unsubscribe("job_1", sub)
	if got := bus.SubscriberCount("job_1"); got != 0 {
		t.Fatalf("SubscriberCount after unsubscribe = %d, want 0", got)
	}
}

func TestPublishWithZeroSubscribersSucceedsSilently(t *testing.T) {
	bus := NewBus(nil)
	bus.Publish(context.Background(), Event{EventKind: KindPlanStarted, JobID: "no_subs"})
}

func TestPublishDoesNotBlockOnAFullSubscriber(t *testing.T) {
	bus := NewBus(nil)
	slow := NewSubscriber("slow", 1)
	fast := NewSubscriber("fast", 4)
	bus.Subscribe("job_2", slow)
	bus.Subscribe("job_2", fast)

	// Fill slow's one-deep buffer so the next publish cannot be delivered.
	bus.Publish(context.Background(), Event{EventKind: KindTaskStarted, JobID: "job_2"})

	done := make(chan struct{})
	go func() {
		bus.Publish(context.Background(), Event{EventKind: KindTaskProgress, JobID: "job_2"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber instead of dropping it")
	}

	select {
	case <-fast.C():
	case <-time.After(time.Second):
		t.Fatal("fast subscriber never received the first event")
	}
	select {
	case ev := <-fast.C():
		if ev.EventKind != KindTaskProgress {
			t.Fatalf("fast subscriber's second event = %q, want %q", ev.EventKind, KindTaskProgress)
		}
	case <-time.After(time.Second):
		t.Fatal("fast subscriber never received the second event")
	}

	if got := bus.SubscriberCount("job_2"); got != 1 {
		t.Fatalf("SubscriberCount after drop = %d, want 1 (slow removed, fast remains)", got)
	}
}

func TestSubscribeAssignsMonotonicRegistrationOrder(t *testing.T) {
	// Publish's fan-out snapshot is sorted by Subscriber.seq (see Publish),
	// so registration order is preserved despite Go's randomized map
	// iteration only if seq strictly increases with each Subscribe call,
	// across distinct jobIDs too since seq is bus-global.
	bus := NewBus(nil)
	const n = 20
	subs := make([]*Subscriber, n)
	for i := 0; i < n; i++ {
		jobID := "job_order_a"
		if i%2 == 0 {
			jobID = "job_order_b"
		}
		subs[i] = NewSubscriber(string(rune('a'+i)), 1)
		bus.Subscribe(jobID, subs[i])
	}
	for i := 1; i < n; i++ {
		if subs[i].seq <= subs[i-1].seq {
			t.Fatalf("seq not strictly increasing by registration order: subs[%d].seq=%d <= subs[%d].seq=%d",
				i, subs[i].seq, i-1, subs[i-1].seq)
		}
	}
}

func TestUnsubscribeAllDropsEveryListener(t *testing.T) {
	bus := NewBus(nil)
	bus.Subscribe("job_3", NewSubscriber("a", 1))
	bus.Subscribe("job_3", NewSubscriber("b", 1))
	bus.UnsubscribeAll("job_3")
	if got := bus.SubscriberCount("job_3"); got != 0 {
		t.Fatalf("SubscriberCount after UnsubscribeAll = %d, want 0", got)
	}
}
