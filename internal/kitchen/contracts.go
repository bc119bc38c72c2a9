package kitchen

import (
	"context"
	"errors"
	"time"

	"expediter/internal/models"
)

// ErrNotFound reports that a referenced order id does not exist.
var ErrNotFound = errors.New("order not found")

// ErrConcurrencyConflict reports that a save observed a version other than
// the one it loaded. Under the per-order serialization in TimerService this
// cannot happen; it exists to surface misuse instead of losing an update.
var ErrConcurrencyConflict = errors.New("order modified concurrently")

// OrderRepository is the durable order store consumed by the orchestrator
type OrderRepository interface {
	Get(ctx context.Context, id uint) (*models.Order, error)
	Create(ctx context.Context, order *models.Order) error
	Save(ctx context.Context, order *models.Order) error
	ListCooking(ctx context.Context, restaurantID uint) ([]models.Order, error)
	ListActive(ctx context.Context, restaurantID uint) ([]models.Order, error)
	List(ctx context.Context, restaurantID uint) ([]models.Order, error)
}

// MenuCatalog supplies suggested cooking durations. It is only consulted when
// a caller starts a timer without an explicit duration.
type MenuCatalog interface {
	CookingMinutes(ctx context.Context, menuItemID uint, batchNumber int) (int, error)
}

// TimerScheduler is the countdown registry driven by the orchestrator
type TimerScheduler interface {
	Arm(orderID uint, expiresAt time.Time)
	Disarm(orderID uint)
	Stop()
}

// EventSink receives lifecycle events for fan-out to displays
type EventSink interface {
	Publish(ev models.Event)
}
