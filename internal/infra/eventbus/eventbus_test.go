package eventbus

import (
	"testing"
	"time"
)

func TestEventBus_PublishAndSubscribe(t *testing.T) {
	t.Parallel()
	bus := New()
	ch := bus.Subscribe("computation.completed")

	bus.Publish("computation.completed", "hello")

	select {
	case evt := <-ch:
		if evt.Topic != "computation.completed" {
			t.Errorf("expected topic 'computation.completed', got %q", evt.Topic)
		}
		if evt.Payload != "hello" {
			t.Errorf("expected payload 'hello', got %v", evt.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout: expected event to be received within 100ms")
	}
}

func TestEventBus_MultipleSubscribers_AllReceive(t *testing.T) {
	t.Parallel()
	bus := New()
	ch1 := bus.Subscribe("multi.topic")
	ch2 := bus.Subscribe("multi.topic")

	bus.Publish("multi.topic", 42)

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case evt := <-ch:
			if evt.Payload != 42 {
				t.Errorf("subscriber %d: expected payload 42, got %v", i, evt.Payload)
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("subscriber %d: timeout waiting for event", i)
		}
	}
}

func TestEventBus_DifferentTopics_NoInterference(t *testing.T) {
	t.Parallel()
	bus := New()
	chA := bus.Subscribe("topic.a")
	chB := bus.Subscribe("topic.b")

	bus.Publish("topic.a", "for-a")

	select {
	case evt := <-chA:
		if evt.Payload != "for-a" {
			t.Errorf("topic.a: unexpected payload %v", evt.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("topic.a: timeout waiting for event")
	}

	select {
	case evt := <-chB:
		t.Errorf("topic.b: received unexpected event: %v", evt)
	default:
	}
}

func TestEventBus_NonBlockingPublish_FullBuffer(t *testing.T) {
	t.Parallel()
	bus := NewWithBuffer(4)
	_ = bus.Subscribe("overflow.topic")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish("overflow.topic", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Publish blocked when buffer was full (should be non-blocking)")
	}
	if got := bus.Dropped(); got != 6 {
		t.Errorf("Dropped() = %d; want 6", got)
	}
}

func TestEventBus_CloseEndsSubscriptions(t *testing.T) {
	t.Parallel()
	bus := New()
	ch := bus.Subscribe("computation.completed")
	bus.Publish("computation.completed", 1)
	bus.Close()
	bus.Close()

	if evt, ok := <-ch; !ok || evt.Payload != 1 {
		t.Fatalf("buffered event lost on Close: %v %v", evt, ok)
	}
	if _, ok := <-ch; ok {
		t.Fatal("channel still open after Close")
	}

	bus.Publish("computation.completed", 2)
	if _, ok := <-bus.Subscribe("computation.completed"); ok {
		t.Error("Subscribe after Close must return a closed channel")
	}
}
