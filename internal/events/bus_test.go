package events

import (
	"testing"

	"expiry-alert-service/internal/models"
)

func eventFor(user int64) Event {
	return Event{Kind: KindCreated, Alert: models.ExpiryAlert{RecipientUserID: user}}
}

func TestBusDeliversToRecipient(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(7)
	defer cancel()

	bus.Publish(eventFor(7))

	select {
	case ev := <-ch:
		if ev.Alert.RecipientUserID != 7 {
			t.Errorf("wrong recipient: %d", ev.Alert.RecipientUserID)
		}
	default:
		t.Fatal("no event delivered")
	}
}

func TestBusDoesNotCrossRecipients(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(7)
	defer cancel()

	bus.Publish(eventFor(8))

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event for user %d", ev.Alert.RecipientUserID)
	default:
	}
}

func TestBusBroadcastSeesEverything(t *testing.T) {
	bus := NewBus()
	all, cancel := bus.Subscribe(BroadcastUser)
	defer cancel()

	bus.Publish(eventFor(7))
	bus.Publish(eventFor(8))

	for i := 0; i < 2; i++ {
		select {
		case <-all:
		default:
			t.Fatalf("broadcast subscriber missed event %d", i)
		}
	}
}

func TestBusCancelStopsDelivery(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(7)
	cancel()

	bus.Publish(eventFor(7))

	select {
	case <-ch:
		t.Fatal("event delivered after cancel")
	default:
	}
}

func TestBusDropsWhenSubscriberLags(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(7)
	defer cancel()

	// Publish never blocks, even past the subscriber's buffer.
	for i := 0; i < subscriberBuffer*2; i++ {
		bus.Publish(eventFor(7))
	}
	if got := len(ch); got != subscriberBuffer {
		t.Errorf("buffered %d events, want %d", got, subscriberBuffer)
	}
}
