package kitchen

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"expediter/internal/lifecycle"
	"expediter/internal/models"
	"expediter/internal/monitoring"
	"expediter/internal/scheduler"
)

type fixture struct {
	svc   *TimerService
	repo  *memRepo
	sink  *sinkRecorder
	sched *scheduler.Scheduler
}

func newFixture(t *testing.T, catalog MenuCatalog) *fixture {
	t.Helper()
	repo := newMemRepo()
	sink := &sinkRecorder{}
	sched := scheduler.New(zap.NewNop(), monitoring.NewMetrics(prometheus.NewRegistry()))
	svc := NewTimerService(repo, catalog, sched, sink, zap.NewNop(), monitoring.NewMetrics(prometheus.NewRegistry()))
	sched.OnExpire(func(orderID uint) {
		_ = svc.ExpireTimer(context.Background(), orderID)
	})
	t.Cleanup(sched.Stop)
	return &fixture{svc: svc, repo: repo, sink: sink, sched: sched}
}

func pendingOrder(restaurantID uint) models.Order {
	return models.Order{
		RestaurantID: restaurantID,
		TableSection: "grill",
		MenuItemID:   9,
		BatchSize:    4,
		BatchNumber:  1,
		Status:       models.OrderStatusPending,
	}
}

func cookingOrder(restaurantID uint, endIn time.Duration) models.Order {
	start := time.Now().Add(-time.Minute)
	end := time.Now().Add(endIn)
	return models.Order{
		RestaurantID: restaurantID,
		Status:       models.OrderStatusCooking,
		TimerStart:   &start,
		TimerEnd:     &end,
	}
}

func expiredOrder(restaurantID uint) models.Order {
	o := cookingOrder(restaurantID, -time.Minute)
	o.Status = models.OrderStatusTimerExpired
	return o
}

func TestStartTimer(t *testing.T) {
	f := newFixture(t, nil)
	id := f.repo.seed(pendingOrder(3))

	before := time.Now()
	order, err := f.svc.StartTimer(context.Background(), id, 5)
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusCooking, order.Status)
	require.NotNil(t, order.TimerStart)
	require.NotNil(t, order.TimerEnd)
	assert.Equal(t, order.TimerStart.Add(5*time.Minute), *order.TimerEnd)
	assert.WithinDuration(t, before.Add(5*time.Minute), *order.TimerEnd, time.Second)
	assert.True(t, f.sched.Armed(id))

	events := f.sink.ofType(models.EventTimerStarted)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].OrderID)
	assert.Equal(t, uint(3), events[0].RestaurantID)
}

func TestStartTimerErrors(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.StartTimer(context.Background(), 999, 5)
	assert.ErrorIs(t, err, ErrNotFound)

	id := f.repo.seed(cookingOrder(3, 5*time.Minute))
	_, err = f.svc.StartTimer(context.Background(), id, 5)
	var invalid *lifecycle.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, models.OrderStatusCooking, invalid.Current)

	id = f.repo.seed(pendingOrder(3))
	_, err = f.svc.StartTimer(context.Background(), id, -2)
	var validation *lifecycle.ValidationError
	assert.ErrorAs(t, err, &validation)
	assert.False(t, f.sched.Armed(id))
}

func TestStartTimerDefaultsFromCatalog(t *testing.T) {
	f := newFixture(t, &fixedCatalog{minutes: 7})
	id := f.repo.seed(pendingOrder(3))

	order, err := f.svc.StartTimer(context.Background(), id, 0)
	require.NoError(t, err)
	assert.Equal(t, order.TimerStart.Add(7*time.Minute), *order.TimerEnd)
}

func TestStartTimerWithoutDurationOrCatalog(t *testing.T) {
	f := newFixture(t, &fixedCatalog{err: errors.New("unknown item")})
	id := f.repo.seed(pendingOrder(3))

	_, err := f.svc.StartTimer(context.Background(), id, 0)
	var validation *lifecycle.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestCancelTimerSuppressesExpiration(t *testing.T) {
	f := newFixture(t, nil)
	id := f.repo.seed(cookingOrder(3, 200*time.Millisecond))
	require.NoError(t, f.svc.Reconcile(context.Background()))
	require.True(t, f.sched.Armed(id))

	order, err := f.svc.CancelTimer(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Nil(t, order.TimerStart)
	assert.Nil(t, order.TimerEnd)
	assert.False(t, f.sched.Armed(id))

	// Sleep past the original deadline: the cancelled countdown must not fire.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, models.OrderStatusPending, f.repo.raw(id).Status)
	assert.Empty(t, f.sink.ofType(models.EventOrderCompleted))
	assert.Len(t, f.sink.ofType(models.EventOrderUpdated), 1) // the cancel itself
}

func TestExpireThenExtend(t *testing.T) {
	f := newFixture(t, nil)
	id := f.repo.seed(cookingOrder(3, 30*time.Millisecond))
	require.NoError(t, f.svc.Reconcile(context.Background()))

	// Extending while still cooking is rejected.
	_, err := f.svc.ExtendTimer(context.Background(), id, 20)
	var invalid *lifecycle.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, models.OrderStatusCooking, invalid.Current)
	assert.Equal(t, lifecycle.CommandExtend, invalid.Attempted)

	// Let the countdown elapse.
	require.Eventually(t, func() bool {
		return f.repo.raw(id).Status == models.OrderStatusTimerExpired
	}, time.Second, 5*time.Millisecond)

	// After expiry the extend succeeds with a fresh interval.
	before := time.Now()
	order, err := f.svc.ExtendTimer(context.Background(), id, 20)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCooking, order.Status)
	assert.WithinDuration(t, before.Add(20*time.Second), *order.TimerEnd, time.Second)
	assert.True(t, f.sched.Armed(id))
}

func TestExpirationFiresExactlyOnce(t *testing.T) {
	f := newFixture(t, nil)
	id := f.repo.seed(cookingOrder(3, 20*time.Millisecond))
	require.NoError(t, f.svc.Reconcile(context.Background()))

	require.Eventually(t, func() bool {
		return f.repo.raw(id).Status == models.OrderStatusTimerExpired
	}, time.Second, 5*time.Millisecond)

	time.Sleep(60 * time.Millisecond)
	assert.Len(t, f.sink.ofType(models.EventOrderUpdated), 1)

	// Timer fields stay set while expired, awaiting extend or complete.
	raw := f.repo.raw(id)
	assert.NotNil(t, raw.TimerStart)
	assert.NotNil(t, raw.TimerEnd)
}

func TestCompleteOrder(t *testing.T) {
	f := newFixture(t, nil)

	for _, seed := range []models.Order{cookingOrder(3, 5*time.Minute), expiredOrder(3)} {
		id := f.repo.seed(seed)
		order, err := f.svc.CompleteOrder(context.Background(), id, nil)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusReady, order.Status)
		assert.Nil(t, order.TimerEnd)
		require.NotNil(t, order.CompletedAt)
		assert.False(t, f.sched.Armed(id))
	}
	assert.Len(t, f.sink.ofType(models.EventOrderCompleted), 2)

	for _, seed := range []models.Order{pendingOrder(3), {RestaurantID: 3, Status: models.OrderStatusReady}} {
		id := f.repo.seed(seed)
		_, err := f.svc.CompleteOrder(context.Background(), id, nil)
		var invalid *lifecycle.InvalidTransitionError
		assert.ErrorAs(t, err, &invalid)
	}
}

func TestGetTimerStatus(t *testing.T) {
	f := newFixture(t, nil)
	id := f.repo.seed(cookingOrder(3, 5*time.Minute))

	status, err := f.svc.GetTimerStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, status.OrderID)
	assert.InDelta(t, 300, status.RemainingSeconds, 2)

	// Status reads are idempotent: no mutation, no events.
	before := f.repo.raw(id)
	for i := 0; i < 3; i++ {
		_, err := f.svc.GetTimerStatus(context.Background(), id)
		require.NoError(t, err)
	}
	after := f.repo.raw(id)
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.TimerStart, after.TimerStart)
	assert.Equal(t, before.TimerEnd, after.TimerEnd)
	assert.Empty(t, f.sink.all())

	// Remaining time floors at zero once past the deadline.
	expiredID := f.repo.seed(expiredOrder(3))
	status, err = f.svc.GetTimerStatus(context.Background(), expiredID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), status.RemainingSeconds)

	pendingID := f.repo.seed(pendingOrder(3))
	_, err = f.svc.GetTimerStatus(context.Background(), pendingID)
	var invalid *lifecycle.InvalidTransitionError
	assert.ErrorAs(t, err, &invalid)
}

func TestDeleteOrder(t *testing.T) {
	f := newFixture(t, nil)
	id := f.repo.seed(cookingOrder(3, 5*time.Minute))
	require.NoError(t, f.svc.Reconcile(context.Background()))
	require.True(t, f.sched.Armed(id))

	require.NoError(t, f.svc.DeleteOrder(context.Background(), id))
	assert.False(t, f.sched.Armed(id))

	raw := f.repo.raw(id)
	assert.Equal(t, models.OrderStatusDeleted, raw.Status)
	assert.NotNil(t, raw.DeletedAt)
	assert.Len(t, f.sink.ofType(models.EventOrderDeleted), 1)

	assert.ErrorIs(t, f.svc.DeleteOrder(context.Background(), id), ErrNotFound)
}

func TestDeleteAllOrders(t *testing.T) {
	f := newFixture(t, nil)

	var ids []uint
	for i := 0; i < 5; i++ {
		ids = append(ids, f.repo.seed(cookingOrder(3, 300*time.Millisecond)))
	}
	otherID := f.repo.seed(cookingOrder(4, time.Hour))
	require.NoError(t, f.svc.Reconcile(context.Background()))

	deleted, err := f.svc.DeleteAllOrders(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 5, deleted)

	for _, id := range ids {
		assert.False(t, f.sched.Armed(id))
		assert.Equal(t, models.OrderStatusDeleted, f.repo.raw(id).Status)
	}
	assert.True(t, f.sched.Armed(otherID), "other restaurant must be untouched")

	events := f.sink.ofType(models.EventAllOrdersDeleted)
	require.Len(t, events, 1)
	assert.Equal(t, uint(3), events[0].RestaurantID)
	assert.Equal(t, 5, events[0].Count)

	// None of the five cancelled countdowns may still fire.
	time.Sleep(400 * time.Millisecond)
	for _, id := range ids {
		assert.Equal(t, models.OrderStatusDeleted, f.repo.raw(id).Status)
	}
	assert.Empty(t, f.sink.ofType(models.EventOrderUpdated))
}

func TestReconcile(t *testing.T) {
	f := newFixture(t, nil)

	overdueID := f.repo.seed(cookingOrder(3, -10*time.Minute))
	runningID := f.repo.seed(cookingOrder(3, time.Hour))
	pendingID := f.repo.seed(pendingOrder(3))

	require.NoError(t, f.svc.Reconcile(context.Background()))

	assert.Equal(t, models.OrderStatusTimerExpired, f.repo.raw(overdueID).Status)
	assert.Len(t, f.sink.ofType(models.EventOrderUpdated), 1)

	assert.True(t, f.sched.Armed(runningID))
	assert.Equal(t, models.OrderStatusCooking, f.repo.raw(runningID).Status)
	assert.False(t, f.sched.Armed(pendingID))

	// A second pass finds nothing cooking past deadline: no duplicate event.
	require.NoError(t, f.svc.Reconcile(context.Background()))
	assert.Len(t, f.sink.ofType(models.EventOrderUpdated), 1)
}

func TestExpireRetriesOnce(t *testing.T) {
	f := newFixture(t, nil)
	id := f.repo.seed(cookingOrder(3, -time.Second))

	f.repo.setFailSaves(1)
	require.NoError(t, f.svc.ExpireTimer(context.Background(), id))
	assert.Equal(t, models.OrderStatusTimerExpired, f.repo.raw(id).Status)
	assert.Len(t, f.sink.ofType(models.EventOrderUpdated), 1)
}

func TestExpireGivesUpAfterSecondFailure(t *testing.T) {
	f := newFixture(t, nil)
	id := f.repo.seed(cookingOrder(3, -time.Second))

	f.repo.setFailSaves(2)
	err := f.svc.ExpireTimer(context.Background(), id)
	require.Error(t, err)
	assert.Equal(t, models.OrderStatusCooking, f.repo.raw(id).Status)
	assert.Empty(t, f.sink.all())
}

func TestExpireOnNonCookingOrderIsNoOp(t *testing.T) {
	f := newFixture(t, nil)
	id := f.repo.seed(pendingOrder(3))

	require.NoError(t, f.svc.ExpireTimer(context.Background(), id))
	assert.Equal(t, models.OrderStatusPending, f.repo.raw(id).Status)
	assert.Empty(t, f.sink.all())

	require.NoError(t, f.svc.ExpireTimer(context.Background(), 999))
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t, nil)

	order, err := f.svc.CreateOrder(context.Background(), &models.Order{RestaurantID: 3, TableSection: "window"})
	require.NoError(t, err)
	assert.NotZero(t, order.ID)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Len(t, f.sink.ofType(models.EventOrderCreated), 1)
}

func TestSaveConflictSurfaces(t *testing.T) {
	// Bypassing the per-order lock and saving a stale version must surface
	// ErrConcurrencyConflict rather than silently overwrite.
	repo := newMemRepo()
	id := repo.seed(pendingOrder(3))

	stale, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	fresh, err := repo.Get(context.Background(), id)
	require.NoError(t, err)

	require.NoError(t, repo.Save(context.Background(), fresh))
	assert.ErrorIs(t, repo.Save(context.Background(), stale), ErrConcurrencyConflict)
}
