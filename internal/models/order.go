package models

import (
	"time"

	"github.com/jinzhu/gorm"
)

// Order represents a kitchen order tracked by the timer engine
type Order struct {
	gorm.Model
	RestaurantID uint
	TableSection string
	MenuItemID   uint
	BatchSize    int
	BatchNumber  int
	Status       OrderStatus
	TimerStart   *time.Time
	TimerEnd     *time.Time
	CompletedAt  *time.Time
	Version      int
}

// OrderStatus represents the possible states of an order
type OrderStatus string

const (
	OrderStatusPending      OrderStatus = "pending"
	OrderStatusCooking      OrderStatus = "cooking"
	OrderStatusTimerExpired OrderStatus = "timer_expired"
	OrderStatusReady        OrderStatus = "ready"
	OrderStatusCancelled    OrderStatus = "cancelled"
	OrderStatusDeleted      OrderStatus = "deleted"
)

// Terminal reports whether the status ends the order's lifecycle.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusReady, OrderStatusCancelled, OrderStatusDeleted:
		return true
	}
	return false
}

// TimerRunning reports whether the order is in a state that owns a countdown.
func (o *Order) TimerRunning() bool {
	return o.Status == OrderStatusCooking || o.Status == OrderStatusTimerExpired
}

// RemainingSeconds returns the whole seconds left on the countdown, floored
// at zero. Always computed from the persisted TimerEnd, so it is correct even
// right after a restart before the scheduler has been reconciled.
func (o *Order) RemainingSeconds(now time.Time) int64 {
	if o.TimerEnd == nil {
		return 0
	}
	remaining := o.TimerEnd.Sub(now)
	if remaining < 0 {
		return 0
	}
	return int64(remaining / time.Second)
}

// MenuTiming holds the suggested cooking duration for a menu item at a given
// batch stage. Batch number 0 is the catch-all default for the item.
type MenuTiming struct {
	gorm.Model
	MenuItemID     uint
	BatchNumber    int
	CookingMinutes int
}
