package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jinzhu/gorm"

	"expediter/internal/kitchen"
	"expediter/internal/models"
)

// OrderStore is the gorm-backed implementation of kitchen.OrderRepository.
// The context parameters satisfy the contract; gorm v1 has no context
// support, so they are not propagated into queries.
type OrderStore struct {
	db *gorm.DB
}

// NewOrderStore creates the store.
func NewOrderStore(db *gorm.DB) *OrderStore {
	return &OrderStore{db: db}
}

// Get loads an order, excluding soft-deleted records.
func (s *OrderStore) Get(_ context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := s.db.First(&order, id).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, kitchen.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	return &order, nil
}

// Create inserts a new order row.
func (s *OrderStore) Create(_ context.Context, order *models.Order) error {
	if err := s.db.Create(order).Error; err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

// Save persists a mutated order with an optimistic version check: the update
// only applies if the stored version still matches the one the caller
// loaded. Zero rows affected on an existing order means another writer got
// there first, which the orchestrator's per-order lock should make
// impossible; it is surfaced as ErrConcurrencyConflict rather than silently
// overwritten.
func (s *OrderStore) Save(_ context.Context, order *models.Order) error {
	prev := order.Version
	order.Version = prev + 1

	res := s.db.Model(&models.Order{}).
		Unscoped().
		Where("id = ? AND version = ?", order.ID, prev).
		Updates(map[string]interface{}{
			"status":       order.Status,
			"timer_start":  order.TimerStart,
			"timer_end":    order.TimerEnd,
			"completed_at": order.CompletedAt,
			"deleted_at":   order.DeletedAt,
			"version":      order.Version,
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		order.Version = prev
		return fmt.Errorf("save order %d: %w", order.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		order.Version = prev
		var count int
		if err := s.db.Unscoped().Model(&models.Order{}).Where("id = ?", order.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("save order %d: %w", order.ID, err)
		}
		if count == 0 {
			return kitchen.ErrNotFound
		}
		return kitchen.ErrConcurrencyConflict
	}
	return nil
}

// ListCooking returns every order whose countdown should be running, for the
// boot reconciliation pass. restaurantID 0 means all restaurants.
func (s *OrderStore) ListCooking(_ context.Context, restaurantID uint) ([]models.Order, error) {
	return s.list(s.db.Where("status = ?", models.OrderStatusCooking), restaurantID)
}

// ListActive returns every non-terminal order of a restaurant.
func (s *OrderStore) ListActive(_ context.Context, restaurantID uint) ([]models.Order, error) {
	statuses := []models.OrderStatus{
		models.OrderStatusPending,
		models.OrderStatusCooking,
		models.OrderStatusTimerExpired,
	}
	return s.list(s.db.Where("status IN (?)", statuses), restaurantID)
}

// List returns all orders of a restaurant for display, newest first.
func (s *OrderStore) List(_ context.Context, restaurantID uint) ([]models.Order, error) {
	return s.list(s.db.Order("created_at DESC"), restaurantID)
}

func (s *OrderStore) list(query *gorm.DB, restaurantID uint) ([]models.Order, error) {
	if restaurantID != 0 {
		query = query.Where("restaurant_id = ?", restaurantID)
	}
	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}
