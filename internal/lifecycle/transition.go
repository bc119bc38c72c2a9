// Package lifecycle holds the pure transition rules for an order's cooking
// states. Functions here never touch storage, timers, or the clock beyond the
// instant they are handed; the orchestrator owns all side effects.
package lifecycle

import (
	"time"

	"expediter/internal/models"
)

// Start moves a pending order onto the stove: status Cooking, countdown set
// to now+minutes.
func Start(o models.Order, minutes int, now time.Time) (models.Order, error) {
	if minutes <= 0 {
		return o, &ValidationError{Field: "minutes", Reason: "must be greater than zero"}
	}
	if o.Status != models.OrderStatusPending {
		return o, &InvalidTransitionError{Current: o.Status, Attempted: CommandStart}
	}
	end := now.Add(time.Duration(minutes) * time.Minute)
	o.Status = models.OrderStatusCooking
	o.TimerStart = &now
	o.TimerEnd = &end
	return o, nil
}

// Cancel aborts cooking and returns the order to Pending with no timer.
func Cancel(o models.Order) (models.Order, error) {
	if o.Status != models.OrderStatusCooking {
		return o, &InvalidTransitionError{Current: o.Status, Attempted: CommandCancel}
	}
	o.Status = models.OrderStatusPending
	o.TimerStart = nil
	o.TimerEnd = nil
	return o, nil
}

// Expire marks a cooking order's countdown as elapsed. Only the scheduler's
// callback drives this edge; callers never invoke it directly.
func Expire(o models.Order) (models.Order, error) {
	if o.Status != models.OrderStatusCooking {
		return o, &InvalidTransitionError{Current: o.Status, Attempted: CommandExpire}
	}
	o.Status = models.OrderStatusTimerExpired
	return o, nil
}

// Extend gives an expired order a fresh interval: status back to Cooking with
// timerEnd = now+seconds. The new interval replaces the old expiry, it is not
// additive.
func Extend(o models.Order, seconds int, now time.Time) (models.Order, error) {
	if seconds <= 0 {
		return o, &ValidationError{Field: "seconds", Reason: "must be greater than zero"}
	}
	if o.Status != models.OrderStatusTimerExpired {
		return o, &InvalidTransitionError{Current: o.Status, Attempted: CommandExtend}
	}
	end := now.Add(time.Duration(seconds) * time.Second)
	o.Status = models.OrderStatusCooking
	if o.TimerStart == nil {
		o.TimerStart = &now
	}
	o.TimerEnd = &end
	return o, nil
}

// Complete finishes a cooking or expired order. completedAt defaults to now.
func Complete(o models.Order, completedAt *time.Time, now time.Time) (models.Order, error) {
	if o.Status != models.OrderStatusCooking && o.Status != models.OrderStatusTimerExpired {
		return o, &InvalidTransitionError{Current: o.Status, Attempted: CommandComplete}
	}
	if completedAt == nil {
		completedAt = &now
	}
	o.Status = models.OrderStatusReady
	o.TimerStart = nil
	o.TimerEnd = nil
	o.CompletedAt = completedAt
	return o, nil
}

// Destroy soft-deletes any non-terminal order. The caller must disarm the
// scheduler before persisting the result.
func Destroy(o models.Order, now time.Time) (models.Order, error) {
	if o.Status.Terminal() {
		return o, &InvalidTransitionError{Current: o.Status, Attempted: CommandDestroy}
	}
	o.Status = models.OrderStatusDeleted
	o.TimerStart = nil
	o.TimerEnd = nil
	o.DeletedAt = &now
	return o, nil
}
