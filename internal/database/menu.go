package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jinzhu/gorm"

	"expediter/internal/models"
)

// ErrNoTiming reports that the catalog has no cooking duration for a menu
// item.
var ErrNoTiming = errors.New("no cooking duration for menu item")

// MenuStore is the gorm-backed implementation of kitchen.MenuCatalog
type MenuStore struct {
	db *gorm.DB
}

// NewMenuStore creates the store.
func NewMenuStore(db *gorm.DB) *MenuStore {
	return &MenuStore{db: db}
}

// CookingMinutes returns the suggested duration for a menu item at the given
// batch stage, falling back to the item's batch-0 default row.
func (s *MenuStore) CookingMinutes(_ context.Context, menuItemID uint, batchNumber int) (int, error) {
	var timing models.MenuTiming
	err := s.db.Where("menu_item_id = ? AND batch_number = ?", menuItemID, batchNumber).First(&timing).Error
	if gorm.IsRecordNotFoundError(err) && batchNumber != 0 {
		err = s.db.Where("menu_item_id = ? AND batch_number = 0", menuItemID).First(&timing).Error
	}
	if gorm.IsRecordNotFoundError(err) {
		return 0, ErrNoTiming
	}
	if err != nil {
		return 0, fmt.Errorf("lookup cooking minutes for item %d: %w", menuItemID, err)
	}
	return timing.CookingMinutes, nil
}
