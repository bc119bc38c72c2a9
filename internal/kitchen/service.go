// Package kitchen is the command surface of the order timer engine. Every
// command runs the same pipeline: fetch the order, validate the transition
// with the lifecycle rules, persist, update the scheduler, publish an event.
package kitchen

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"expediter/internal/lifecycle"
	"expediter/internal/models"
	"expediter/internal/monitoring"
)

// TimerStatus is the read-only view returned by GetTimerStatus
type TimerStatus struct {
	OrderID          uint               `json:"order_id"`
	Status           models.OrderStatus `json:"status"`
	RemainingSeconds int64              `json:"remaining_seconds"`
	TimerEnd         time.Time          `json:"timer_end"`
}

// TimerService orchestrates order cooking timers. A single process-wide
// instance owns every order mutation; the repository, scheduler, and event
// sink are injected so tests can substitute doubles.
type TimerService struct {
	repo    OrderRepository
	catalog MenuCatalog
	sched   TimerScheduler
	events  EventSink
	log     *zap.Logger
	metrics *monitoring.Metrics
	locks   *lockTable
}

// NewTimerService wires the orchestrator. catalog may be nil when no menu
// duration lookup is available; StartTimer then requires explicit minutes.
func NewTimerService(repo OrderRepository, catalog MenuCatalog, sched TimerScheduler, events EventSink, log *zap.Logger, metrics *monitoring.Metrics) *TimerService {
	return &TimerService{
		repo:    repo,
		catalog: catalog,
		sched:   sched,
		events:  events,
		log:     log,
		metrics: metrics,
		locks:   newLockTable(),
	}
}

// CreateOrder persists a new pending order on behalf of the surrounding
// dashboard layer and announces it to displays.
func (s *TimerService) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	defer s.observe("create_order", time.Now())

	order.Status = models.OrderStatusPending
	order.TimerStart = nil
	order.TimerEnd = nil
	order.CompletedAt = nil
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, s.fail("create_order", err)
	}
	s.events.Publish(models.NewOrderEvent(models.EventOrderCreated, order))
	s.ok("create_order")
	return order, nil
}

// GetOrder returns the current durable state of an order.
func (s *TimerService) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	return s.repo.Get(ctx, id)
}

// ListOrders returns every order for a restaurant, including completed ones.
func (s *TimerService) ListOrders(ctx context.Context, restaurantID uint) ([]models.Order, error) {
	return s.repo.List(ctx, restaurantID)
}

// StartTimer moves a pending order to Cooking and arms its countdown.
// minutes == 0 asks the menu catalog for the item's suggested duration.
func (s *TimerService) StartTimer(ctx context.Context, id uint, minutes int) (*models.Order, error) {
	defer s.observe("start_timer", time.Now())
	unlock := s.locks.lock(id)
	defer unlock()

	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.fail("start_timer", err)
	}

	if minutes == 0 {
		minutes, err = s.defaultMinutes(ctx, order)
		if err != nil {
			return nil, s.fail("start_timer", err)
		}
	}

	updated, err := lifecycle.Start(*order, minutes, time.Now())
	if err != nil {
		return nil, s.fail("start_timer", err)
	}
	if err := s.repo.Save(ctx, &updated); err != nil {
		return nil, s.fail("start_timer", err)
	}

	s.sched.Arm(updated.ID, *updated.TimerEnd)
	s.events.Publish(models.NewOrderEvent(models.EventTimerStarted, &updated))
	s.ok("start_timer")

	s.log.Info("timer started",
		zap.Uint("order_id", updated.ID),
		zap.Int("minutes", minutes),
		zap.Time("timer_end", *updated.TimerEnd))
	return &updated, nil
}

// CancelTimer aborts cooking: the order returns to Pending and its countdown
// is disarmed.
func (s *TimerService) CancelTimer(ctx context.Context, id uint) (*models.Order, error) {
	defer s.observe("cancel_timer", time.Now())
	unlock := s.locks.lock(id)
	defer unlock()

	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.fail("cancel_timer", err)
	}
	updated, err := lifecycle.Cancel(*order)
	if err != nil {
		return nil, s.fail("cancel_timer", err)
	}
	if err := s.repo.Save(ctx, &updated); err != nil {
		return nil, s.fail("cancel_timer", err)
	}

	s.sched.Disarm(updated.ID)
	s.events.Publish(models.NewOrderEvent(models.EventOrderUpdated, &updated))
	s.ok("cancel_timer")
	return &updated, nil
}

// ExtendTimer gives an expired order a fresh interval and re-arms the
// countdown under a new generation.
func (s *TimerService) ExtendTimer(ctx context.Context, id uint, seconds int) (*models.Order, error) {
	defer s.observe("extend_timer", time.Now())
	unlock := s.locks.lock(id)
	defer unlock()

	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.fail("extend_timer", err)
	}
	updated, err := lifecycle.Extend(*order, seconds, time.Now())
	if err != nil {
		return nil, s.fail("extend_timer", err)
	}
	if err := s.repo.Save(ctx, &updated); err != nil {
		return nil, s.fail("extend_timer", err)
	}

	s.sched.Arm(updated.ID, *updated.TimerEnd)
	s.events.Publish(models.NewOrderEvent(models.EventTimerStarted, &updated))
	s.ok("extend_timer")

	s.log.Info("timer extended",
		zap.Uint("order_id", updated.ID),
		zap.Int("seconds", seconds),
		zap.Time("timer_end", *updated.TimerEnd))
	return &updated, nil
}

// CompleteOrder finishes a cooking or expired order. completedAt defaults to
// the current time.
func (s *TimerService) CompleteOrder(ctx context.Context, id uint, completedAt *time.Time) (*models.Order, error) {
	defer s.observe("complete_order", time.Now())
	unlock := s.locks.lock(id)
	defer unlock()

	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.fail("complete_order", err)
	}
	updated, err := lifecycle.Complete(*order, completedAt, time.Now())
	if err != nil {
		return nil, s.fail("complete_order", err)
	}
	if err := s.repo.Save(ctx, &updated); err != nil {
		return nil, s.fail("complete_order", err)
	}

	s.sched.Disarm(updated.ID)
	s.events.Publish(models.NewOrderEvent(models.EventOrderCompleted, &updated))
	s.ok("complete_order")
	return &updated, nil
}

// GetTimerStatus reports the remaining whole seconds on an order's countdown.
// It never mutates the order and never consults scheduler internals.
func (s *TimerService) GetTimerStatus(ctx context.Context, id uint) (*TimerStatus, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.TimerRunning() || order.TimerEnd == nil {
		return nil, &lifecycle.InvalidTransitionError{Current: order.Status, Attempted: lifecycle.CommandStatus}
	}
	return &TimerStatus{
		OrderID:          order.ID,
		Status:           order.Status,
		RemainingSeconds: order.RemainingSeconds(time.Now()),
		TimerEnd:         *order.TimerEnd,
	}, nil
}

// DeleteOrder disarms any active countdown and soft-deletes the order.
func (s *TimerService) DeleteOrder(ctx context.Context, id uint) error {
	defer s.observe("delete_order", time.Now())
	unlock := s.locks.lock(id)
	defer unlock()

	if err := s.deleteLocked(ctx, id, true); err != nil {
		return s.fail("delete_order", err)
	}
	s.ok("delete_order")
	return nil
}

// DeleteAllOrders soft-deletes every non-terminal order of a restaurant,
// disarming each active countdown. Individual failures are logged and
// skipped; the returned count is the number of orders actually deleted.
func (s *TimerService) DeleteAllOrders(ctx context.Context, restaurantID uint) (int, error) {
	defer s.observe("delete_all_orders", time.Now())

	orders, err := s.repo.ListActive(ctx, restaurantID)
	if err != nil {
		return 0, s.fail("delete_all_orders", err)
	}

	deleted := 0
	for i := range orders {
		id := orders[i].ID
		unlock := s.locks.lock(id)
		err := s.deleteLocked(ctx, id, false)
		unlock()
		if err != nil {
			s.log.Warn("bulk delete: skipping order",
				zap.Uint("order_id", id),
				zap.Error(err))
			continue
		}
		deleted++
	}

	s.events.Publish(models.NewRestaurantEvent(models.EventAllOrdersDeleted, restaurantID, deleted))
	s.ok("delete_all_orders")

	s.log.Info("bulk delete finished",
		zap.Uint("restaurant_id", restaurantID),
		zap.Int("deleted", deleted),
		zap.Int("requested", len(orders)))
	return deleted, nil
}

// deleteLocked runs the destroy pipeline for one order. The caller holds the
// order's lock. publish controls whether a per-order event is emitted; bulk
// deletes announce a single aggregate event instead.
func (s *TimerService) deleteLocked(ctx context.Context, id uint, publish bool) error {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	updated, err := lifecycle.Destroy(*order, time.Now())
	if err != nil {
		return err
	}

	// Disarm before persisting so a callback cannot fire against a record
	// that is about to be deleted.
	s.sched.Disarm(updated.ID)

	if err := s.repo.Save(ctx, &updated); err != nil {
		return err
	}
	if publish {
		s.events.Publish(models.NewOrderEvent(models.EventOrderDeleted, &updated))
	}
	return nil
}

// ExpireTimer is the scheduler-driven edge: it moves a cooking order to
// TimerExpired. A transient save failure is retried once immediately, since
// the remaining delay at this point is zero or negative; a second failure is
// logged for operators and the scheduler keeps running for other orders.
func (s *TimerService) ExpireTimer(ctx context.Context, id uint) error {
	defer s.observe("expire_timer", time.Now())
	unlock := s.locks.lock(id)
	defer unlock()

	err := s.expireOnce(ctx, id)
	if err == nil {
		s.ok("expire_timer")
		return nil
	}

	var invalid *lifecycle.InvalidTransitionError
	if errors.As(err, &invalid) || errors.Is(err, ErrNotFound) {
		// The order left Cooking (or was removed) while the callback was in
		// flight; nothing to do.
		s.log.Debug("expiration arrived for a non-cooking order",
			zap.Uint("order_id", id),
			zap.Error(err))
		s.ok("expire_timer")
		return nil
	}

	s.log.Warn("expire failed, retrying once",
		zap.Uint("order_id", id),
		zap.Error(err))
	if err := s.expireOnce(ctx, id); err != nil {
		s.log.Error("expire failed after retry, giving up",
			zap.Uint("order_id", id),
			zap.Error(err))
		return s.fail("expire_timer", err)
	}
	s.ok("expire_timer")
	return nil
}

func (s *TimerService) expireOnce(ctx context.Context, id uint) error {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	updated, err := lifecycle.Expire(*order)
	if err != nil {
		return err
	}
	if err := s.repo.Save(ctx, &updated); err != nil {
		return err
	}
	s.events.Publish(models.NewOrderEvent(models.EventOrderUpdated, &updated))

	s.log.Info("timer expired",
		zap.Uint("order_id", updated.ID),
		zap.Uint("restaurant_id", updated.RestaurantID))
	return nil
}

// Reconcile rebuilds the volatile scheduler registry from durable state. Any
// cooking order whose timerEnd already elapsed is expired immediately; the
// rest get a countdown for the remaining delta. Must complete before the
// service accepts commands, so callers run it ahead of the listener.
func (s *TimerService) Reconcile(ctx context.Context) error {
	orders, err := s.repo.ListCooking(ctx, 0)
	if err != nil {
		return err
	}

	expired, rearmed := 0, 0
	for i := range orders {
		order := &orders[i]
		if order.TimerEnd == nil {
			s.log.Warn("cooking order has no timer end, skipping",
				zap.Uint("order_id", order.ID))
			continue
		}
		if order.TimerEnd.After(time.Now()) {
			s.sched.Arm(order.ID, *order.TimerEnd)
			s.metrics.ReconciledOrders.WithLabelValues("rearmed").Inc()
			rearmed++
			continue
		}
		if err := s.ExpireTimer(ctx, order.ID); err != nil {
			s.log.Warn("reconcile: could not expire order",
				zap.Uint("order_id", order.ID),
				zap.Error(err))
			continue
		}
		s.metrics.ReconciledOrders.WithLabelValues("expired").Inc()
		expired++
	}

	s.log.Info("reconciliation finished",
		zap.Int("scanned", len(orders)),
		zap.Int("rearmed", rearmed),
		zap.Int("expired", expired))
	return nil
}

func (s *TimerService) defaultMinutes(ctx context.Context, order *models.Order) (int, error) {
	if s.catalog == nil {
		return 0, &lifecycle.ValidationError{Field: "minutes", Reason: "required, no menu catalog configured"}
	}
	minutes, err := s.catalog.CookingMinutes(ctx, order.MenuItemID, order.BatchNumber)
	if err != nil {
		return 0, &lifecycle.ValidationError{Field: "minutes", Reason: "required, no catalog duration for menu item"}
	}
	return minutes, nil
}

func (s *TimerService) observe(command string, start time.Time) {
	s.metrics.CommandDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
}

func (s *TimerService) ok(command string) {
	s.metrics.Commands.WithLabelValues(command, "ok").Inc()
}

func (s *TimerService) fail(command string, err error) error {
	s.metrics.Commands.WithLabelValues(command, "error").Inc()
	return err
}
