// Package broadcast fans lifecycle events out to restaurant-scoped
// subscribers. Delivery is best-effort: a subscriber whose buffer is full
// loses the event and is expected to re-fetch authoritative order state.
package broadcast

import (
	"sync"

	"go.uber.org/zap"

	"expediter/internal/models"
	"expediter/internal/monitoring"
)

// DefaultBuffer is the subscriber channel capacity used by SubscribeDefault
const DefaultBuffer = 256

// Subscriber receives events for a single restaurant until unsubscribed
type Subscriber struct {
	restaurantID uint
	events       chan models.Event
}

// Events returns the subscriber's receive channel. It is closed by
// Unsubscribe.
func (s *Subscriber) Events() <-chan models.Event {
	return s.events
}

// Broadcaster is a process-wide fan-out of lifecycle events
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[uint]map[*Subscriber]struct{}
	log     *zap.Logger
	metrics *monitoring.Metrics
}

// New creates a broadcaster with no subscribers.
func New(log *zap.Logger, metrics *monitoring.Metrics) *Broadcaster {
	return &Broadcaster{
		subs:    make(map[uint]map[*Subscriber]struct{}),
		log:     log,
		metrics: metrics,
	}
}

// Subscribe registers a listener for one restaurant's events. buffer bounds
// how many undelivered events the subscriber may lag behind before drops
// start.
func (b *Broadcaster) Subscribe(restaurantID uint, buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	sub := &Subscriber{
		restaurantID: restaurantID,
		events:       make(chan models.Event, buffer),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[restaurantID] == nil {
		b.subs[restaurantID] = make(map[*Subscriber]struct{})
	}
	b.subs[restaurantID][sub] = struct{}{}
	return sub
}

// Unsubscribe removes the listener and closes its channel. Safe to call once
// per subscriber.
func (b *Broadcaster) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	group, ok := b.subs[sub.restaurantID]
	if !ok {
		return
	}
	if _, ok := group[sub]; !ok {
		return
	}
	delete(group, sub)
	if len(group) == 0 {
		delete(b.subs, sub.restaurantID)
	}
	close(sub.events)
}

// Publish delivers the event to every subscriber of its restaurant without
// blocking. Callers publish events for the same order id from a single
// goroutine, so channel order preserves per-order order.
func (b *Broadcaster) Publish(ev models.Event) {
	b.metrics.EventsPublished.WithLabelValues(string(ev.Type)).Inc()

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[ev.RestaurantID] {
		select {
		case sub.events <- ev:
		default:
			b.metrics.EventsDropped.Inc()
			b.log.Warn("subscriber buffer full, dropping event",
				zap.String("event_id", ev.ID),
				zap.String("type", string(ev.Type)),
				zap.Uint("restaurant_id", ev.RestaurantID),
				zap.Uint("order_id", ev.OrderID))
		}
	}
}

// SubscriberCount returns the number of listeners for a restaurant.
func (b *Broadcaster) SubscriberCount(restaurantID uint) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[restaurantID])
}
