package events

import (
	"sync"

	"expiry-alert-service/internal/models"
)

// Kind identifies what happened to an alert.
type Kind string

const (
	KindCreated   Kind = "created"
	KindRefreshed Kind = "refreshed"
	KindSent      Kind = "sent"
	KindRead      Kind = "read"
	KindDismissed Kind = "dismissed"
)

// Event is one alert change notification.
type Event struct {
	Kind  Kind               `json:"kind"`
	Alert models.ExpiryAlert `json:"alert"`
}

// BroadcastUser subscribes to changes for every recipient.
const BroadcastUser int64 = 0

const subscriberBuffer = 64

// Bus fans alert change events out to subscribers, keyed by recipient user.
// Publish never blocks: a subscriber that falls behind loses events, which is
// acceptable because consumers can always re-read current state from the
// store.
type Bus struct {
	mu   sync.Mutex
	subs map[int64]map[chan Event]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int64]map[chan Event]struct{})}
}

// Subscribe registers interest in one recipient's alerts (or all alerts via
// BroadcastUser). The returned cancel func must be called to release the
// subscription.
func (b *Bus) Subscribe(userID int64) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if _, ok := b.subs[userID]; !ok {
		b.subs[userID] = make(map[chan Event]struct{})
	}
	b.subs[userID][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if set, ok := b.subs[userID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(b.subs, userID)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to the alert recipient's subscribers and to
// broadcast subscribers.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deliver(ev, ev.Alert.RecipientUserID)
	if ev.Alert.RecipientUserID != BroadcastUser {
		b.deliver(ev, BroadcastUser)
	}
}

func (b *Bus) deliver(ev Event, key int64) {
	for ch := range b.subs[key] {
		select {
		case ch <- ev:
		default: // slow subscriber, drop
		}
	}
}
