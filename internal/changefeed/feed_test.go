package changefeed

import (
	"testing"
	"time"
)

func collect(t *testing.T, sub *Subscription, n int) []Event {
	t.Helper()
	out := make([]Event, 0, n)
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				t.Fatalf("subscription closed after %d events, want %d", len(out), n)
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("timed out after %d events, want %d", len(out), n)
		}
	}
	return out
}

func TestPublish_CommitOrderPerStream(t *testing.T) {
	f := NewFeed(16)
	sub := f.Subscribe(StreamNotifications, nil)
	defer f.Unsubscribe(sub)

	for i := 1; i <= 5; i++ {
		f.Publish(StreamNotifications, OpInsert, uint(i), i)
	}
	events := collect(t, sub, 5)
	for i, ev := range events {
		if ev.Seq != uint64(i+1) {
			t.Fatalf("event %d: seq = %d, want %d", i, ev.Seq, i+1)
		}
		if ev.Payload.(int) != i+1 {
			t.Fatalf("event %d: payload = %v, want %d", i, ev.Payload, i+1)
		}
	}
}

func TestSubscribe_PredicateFilters(t *testing.T) {
	f := NewFeed(16)
	sub := f.Subscribe(StreamNotifications, KeyIs(7))
	defer f.Unsubscribe(sub)

	f.Publish(StreamNotifications, OpInsert, 3, "other")
	f.Publish(StreamNotifications, OpInsert, 7, "mine")
	f.Publish(StreamNotifications, OpUpdate, 9, "other")
	f.Publish(StreamNotifications, OpUpdate, 7, "mine too")

	events := collect(t, sub, 2)
	if events[0].Payload != "mine" || events[1].Payload != "mine too" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestSubscribe_MissesEventsBeforeSubscribe(t *testing.T) {
	f := NewFeed(16)
	f.Publish(StreamMessages, OpInsert, 1, "early")

	sub := f.Subscribe(StreamMessages, nil)
	defer f.Unsubscribe(sub)
	f.Publish(StreamMessages, OpInsert, 1, "late")

	events := collect(t, sub, 1)
	if events[0].Payload != "late" {
		t.Fatalf("got %v, want only the event published after Subscribe", events[0].Payload)
	}
}

func TestStreams_AreIndependent(t *testing.T) {
	f := NewFeed(16)
	sub := f.Subscribe(StreamIncidents, nil)
	defer f.Unsubscribe(sub)

	f.Publish(StreamNotifications, OpInsert, 1, "wrong stream")
	f.Publish(StreamIncidents, OpInsert, 1, "right stream")

	events := collect(t, sub, 1)
	if events[0].Payload != "right stream" {
		t.Fatalf("got %v from the wrong stream", events[0].Payload)
	}
	if events[0].Seq != 1 {
		t.Fatalf("seq = %d, want per-stream sequence starting at 1", events[0].Seq)
	}
}

func TestSlowConsumer_IsDropped(t *testing.T) {
	f := NewFeed(2)
	sub := f.Subscribe(StreamNotifications, nil)

	for i := 0; i < 5; i++ {
		f.Publish(StreamNotifications, OpInsert, 1, i)
	}

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not dropped")
	}
	if sub.Err() != ErrSlowConsumer {
		t.Fatalf("err = %v, want ErrSlowConsumer", sub.Err())
	}
	// Buffered events remain readable; the channel then closes.
	got := 0
	for range sub.C() {
		got++
	}
	if got != 2 {
		t.Fatalf("drained %d buffered events, want 2", got)
	}
}

func TestUnsubscribe_StopsDeliveryAndIsIdempotent(t *testing.T) {
	f := NewFeed(16)
	sub := f.Subscribe(StreamAvailability, nil)
	f.Unsubscribe(sub)
	f.Unsubscribe(sub)

	f.Publish(StreamAvailability, OpUpdate, 1, "after")
	if _, ok := <-sub.C(); ok {
		t.Fatal("received event after Unsubscribe")
	}
	if sub.Err() != nil {
		t.Fatalf("err = %v, want nil after plain Unsubscribe", sub.Err())
	}
}

func TestSubscribers_GetIndependentSequences(t *testing.T) {
	f := NewFeed(16)
	a := f.Subscribe(StreamMessages, nil)
	b := f.Subscribe(StreamMessages, nil)
	defer f.Unsubscribe(a)
	defer f.Unsubscribe(b)

	f.Publish(StreamMessages, OpInsert, 1, "x")
	f.Publish(StreamMessages, OpInsert, 1, "y")

	for _, sub := range []*Subscription{a, b} {
		events := collect(t, sub, 2)
		if events[0].Payload != "x" || events[1].Payload != "y" {
			t.Fatalf("unexpected events: %+v", events)
		}
	}
}
