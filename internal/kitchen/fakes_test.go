package kitchen

import (
	"context"
	"errors"
	"sync"
	"time"

	"expediter/internal/models"
)

// memRepo is an in-memory OrderRepository with optional save-failure
// injection for the expire retry paths.
type memRepo struct {
	mu        sync.Mutex
	orders    map[uint]*models.Order
	nextID    uint
	failSaves int
}

func newMemRepo() *memRepo {
	return &memRepo{orders: make(map[uint]*models.Order)}
}

func (r *memRepo) Get(_ context.Context, id uint) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status == models.OrderStatusDeleted {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memRepo) Create(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	order.ID = r.nextID
	order.CreatedAt = time.Now()
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

func (r *memRepo) Save(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSaves > 0 {
		r.failSaves--
		return errors.New("simulated storage outage")
	}
	current, ok := r.orders[order.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != order.Version {
		return ErrConcurrencyConflict
	}
	order.Version++
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

func (r *memRepo) ListCooking(_ context.Context, restaurantID uint) ([]models.Order, error) {
	return r.listWhere(restaurantID, func(o *models.Order) bool {
		return o.Status == models.OrderStatusCooking
	})
}

func (r *memRepo) ListActive(_ context.Context, restaurantID uint) ([]models.Order, error) {
	return r.listWhere(restaurantID, func(o *models.Order) bool {
		return !o.Status.Terminal()
	})
}

func (r *memRepo) List(_ context.Context, restaurantID uint) ([]models.Order, error) {
	return r.listWhere(restaurantID, func(o *models.Order) bool {
		return o.Status != models.OrderStatusDeleted
	})
}

func (r *memRepo) listWhere(restaurantID uint, keep func(*models.Order) bool) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Order
	for _, o := range r.orders {
		if restaurantID != 0 && o.RestaurantID != restaurantID {
			continue
		}
		if keep(o) {
			out = append(out, *o)
		}
	}
	return out, nil
}

// seed inserts an order directly, bypassing the command pipeline.
func (r *memRepo) seed(o models.Order) uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	o.ID = r.nextID
	o.CreatedAt = time.Now()
	r.orders[o.ID] = &o
	return o.ID
}

func (r *memRepo) setFailSaves(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failSaves = n
}

// raw returns the stored record without the deleted-status filter.
func (r *memRepo) raw(id uint) models.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.orders[id]
}

// sinkRecorder captures published events for assertions
type sinkRecorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (s *sinkRecorder) Publish(ev models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *sinkRecorder) all() []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Event(nil), s.events...)
}

func (s *sinkRecorder) ofType(t models.EventType) []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Event
	for _, ev := range s.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// fixedCatalog returns one duration for every menu item
type fixedCatalog struct {
	minutes int
	err     error
}

func (c *fixedCatalog) CookingMinutes(context.Context, uint, int) (int, error) {
	return c.minutes, c.err
}
