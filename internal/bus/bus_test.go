package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("alert.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindAlertMessage, Timestamp: time.Now(), Payload: Alert{ChatID: "c1"}})

	select {
	case evt := <-ch:
		if evt.Kind != KindAlertMessage {
			t.Errorf("got kind %q, want %s", evt.Kind, KindAlertMessage)
		}
		if a, ok := evt.Payload.(Alert); !ok || a.ChatID != "c1" {
			t.Errorf("payload = %#v, want Alert for c1", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("ui.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindAlertMessage})
	b.Publish(Event{Kind: KindModeChanged})

	select {
	case evt := <-ch:
		if evt.Kind != KindModeChanged {
			t.Errorf("got kind %q, want %s", evt.Kind, KindModeChanged)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("alert.", 10)
	unsub()

	b.Publish(Event{Kind: KindAlertMessage})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("test.", 1)
	defer unsub()

	b.Publish(Event{Kind: "test.one"})
	b.Publish(Event{Kind: "test.two"})

	evt := <-ch
	if evt.Kind != "test.one" {
		t.Errorf("got %q, want test.one", evt.Kind)
	}
	if d := b.Dropped(); d != 1 {
		t.Errorf("Dropped() = %d, want 1", d)
	}
}
