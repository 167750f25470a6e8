package eventbus

import (
	"testing"
	"time"
)

func receive(t *testing.T, ch <-chan Event) (Event, bool) {
	t.Helper()
	select {
	case evt, ok := <-ch:
		return evt, ok
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
		return Event{}, false
	}
}

func TestBus_PublishAndSubscribe(t *testing.T) {
	t.Parallel()
	bus := New()
	ch := bus.Subscribe(TopicTurnCompleted)

	bus.Publish(TopicTurnCompleted, "hello")

	evt, _ := receive(t, ch)
	if evt.Topic != TopicTurnCompleted || evt.Payload != "hello" {
		t.Errorf("unexpected event %+v", evt)
	}
}

func TestBus_EverySubscriberReceives(t *testing.T) {
	t.Parallel()
	bus := New()
	subs := []<-chan Event{bus.Subscribe("multi"), bus.Subscribe("multi")}

	bus.Publish("multi", 42)

	for i, ch := range subs {
		if evt, _ := receive(t, ch); evt.Payload != 42 {
			t.Errorf("subscriber %d: expected 42, got %v", i, evt.Payload)
		}
	}
}

func TestBus_TopicsAreIsolated(t *testing.T) {
	t.Parallel()
	bus := New()
	chA := bus.Subscribe("a")
	chB := bus.Subscribe("b")

	bus.Publish("a", "for-a")
	receive(t, chA)

	select {
	case evt := <-chB:
		t.Errorf("topic b received %v", evt)
	default:
	}
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	t.Parallel()
	bus := New()
	_ = bus.Subscribe("overflow")

	done := make(chan struct{})
	go func() {
		for i := 0; i <= defaultBufferSize+10; i++ {
			bus.Publish("overflow", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Error("Publish blocked on a full subscriber")
	}
}

func TestBus_Unsubscribe_ClosesChannel(t *testing.T) {
	t.Parallel()
	bus := New()
	ch := bus.Subscribe("x")
	other := bus.Subscribe("x")

	bus.Unsubscribe("x", ch)
	bus.Unsubscribe("x", ch) // second call is a no-op
	bus.Publish("x", 1)

	if _, ok := receive(t, ch); ok {
		t.Error("expected closed channel after Unsubscribe")
	}
	if evt, _ := receive(t, other); evt.Payload != 1 {
		t.Errorf("remaining subscriber should still receive, got %v", evt.Payload)
	}
}
