package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a lifecycle event published to kitchen displays
type EventType string

const (
	EventOrderCreated     EventType = "order.created"
	EventOrderUpdated     EventType = "order.updated"
	EventTimerStarted     EventType = "order.timer_started"
	EventOrderCompleted   EventType = "order.completed"
	EventOrderDeleted     EventType = "order.deleted"
	EventAllOrdersDeleted EventType = "orders.all_deleted"
)

// Event is a best-effort notification that an order changed. Displays use it
// only as a refresh trigger; the order snapshot is a convenience, the durable
// record stays authoritative.
type Event struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	RestaurantID uint      `json:"restaurant_id"`
	OrderID      uint      `json:"order_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
	Order        *Order    `json:"order,omitempty"`
	Count        int       `json:"count,omitempty"`
}

// NewOrderEvent builds an event for a single order, snapshotting its current state.
func NewOrderEvent(t EventType, o *Order) Event {
	snapshot := *o
	return Event{
		ID:           uuid.NewString(),
		Type:         t,
		RestaurantID: o.RestaurantID,
		OrderID:      o.ID,
		OccurredAt:   time.Now(),
		Order:        &snapshot,
	}
}

// NewRestaurantEvent builds an event that concerns a whole restaurant rather
// than a single order, such as a bulk delete.
func NewRestaurantEvent(t EventType, restaurantID uint, count int) Event {
	return Event{
		ID:           uuid.NewString(),
		Type:         t,
		RestaurantID: restaurantID,
		OccurredAt:   time.Now(),
		Count:        count,
	}
}
