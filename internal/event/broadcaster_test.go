package event

import (
	"testing"

	"lasergimbal/internal/model"
)

func TestSubscribeReceives(t *testing.T) {
	b := NewBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	b.Status("hello")

	select {
	case ev := <-ch:
		if ev.Type != model.EventStatus || ev.Message != "hello" {
			t.Errorf("got %+v", ev)
		}
	default:
		t.Fatal("no event delivered")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroadcaster()
	ch, unsub := b.Subscribe()
	unsub()

	// Publishing after unsubscribe must not panic or deliver.
	b.Publish(model.PositionEvent(90, 90))

	if _, ok := <-ch; ok {
		t.Error("received event on closed subscription")
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroadcaster()
	_, unsub := b.Subscribe()
	defer unsub()

	// Overfill the buffer; Publish must never block.
	for i := 0; i < 200; i++ {
		b.Publish(model.StatusEvent("spam"))
	}
}

func TestMultipleSubscribers(t *testing.T) {
	b := NewBroadcaster()
	ch1, un1 := b.Subscribe()
	ch2, un2 := b.Subscribe()
	defer un1()
	defer un2()

	b.Publish(model.ConnectionEvent(true, "open"))

	for i, ch := range []<-chan model.Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if !ev.Connected {
				t.Errorf("subscriber %d: got %+v", i, ev)
			}
		default:
			t.Errorf("subscriber %d: no event", i)
		}
	}
}
