package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"libmgmt/pkg/domain"
)

func (s *GormStore) CreateInventory(ctx context.Context, inv *domain.Inventory) error {
	model := inventoryToModel(*inv)
	if err := s.conn(ctx).Omit(clause.Associations).Create(&model).Error; err != nil {
		return err
	}
	inv.ID = model.ID
	return nil
}

// UpdateInventory writes status, location and the last-borrowed pair.
func (s *GormStore) UpdateInventory(ctx context.Context, inv domain.Inventory) error {
	return s.conn(ctx).Model(&InventoryModel{}).
		Where("id = ?", inv.ID).
		Updates(map[string]any{
			"status":           int(inv.Status),
			"location":         inv.Location,
			"last_borrowed_on": utcPtr(inv.LastBorrowedOn),
			"last_borrowed_by": inv.LastBorrowedBy,
		}).Error
}

func (s *GormStore) DeleteInventory(ctx context.Context, id uint) error {
	return s.conn(ctx).Delete(&InventoryModel{}, "id = ?", id).Error
}

// GetInventory returns a copy with its book and category.
func (s *GormStore) GetInventory(ctx context.Context, id uint) (domain.Inventory, bool, error) {
	var model InventoryModel
	ok, err := first(s.conn(ctx).Preload("Book.Category"), &model, "id = ?", id)
	if !ok {
		return domain.Inventory{}, false, err
	}
	return inventoryFromModel(model), true, nil
}

// LockInventory loads a copy with SELECT ... FOR UPDATE. The book is read
// without a lock.
func (s *GormStore) LockInventory(ctx context.Context, id uint) (domain.Inventory, bool, error) {
	var model InventoryModel
	ok, err := first(s.forUpdate(ctx), &model, "id = ?", id)
	if !ok {
		return domain.Inventory{}, false, err
	}
	var book BookModel
	if ok, err := first(s.conn(ctx).Preload("Category"), &book, "id = ?", model.BookID); err != nil {
		return domain.Inventory{}, false, err
	} else if ok {
		model.Book = book
	}
	return inventoryFromModel(model), true, nil
}

// ListCopiesOfBook lists the copies of a book, copies in the library first.
// Borrowed copies carry the due date of their open record.
func (s *GormStore) ListCopiesOfBook(ctx context.Context, bookID uint) ([]domain.CopyAvailability, error) {
	var models []InventoryModel
	err := s.conn(ctx).
		Where("book_id = ?", bookID).
		Order(fmt.Sprintf("CASE WHEN status = %d THEN 0 ELSE 1 END", domain.InventoryInLibrary)).
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	borrowed := make([]uint, 0)
	for _, m := range models {
		if m.Status == int(domain.InventoryBorrowed) {
			borrowed = append(borrowed, m.ID)
		}
	}
	due := make(map[uint]time.Time, len(borrowed))
	if len(borrowed) > 0 {
		var open []BorrowRecordModel
		if err := s.conn(ctx).
			Where("inventory_id IN ? AND status = ?", borrowed, int(domain.BorrowBorrowed)).
			Find(&open).Error; err != nil {
			return nil, err
		}
		for _, r := range open {
			due[r.InventoryID] = r.ReturnDate.UTC()
		}
	}
	res := make([]domain.CopyAvailability, 0, len(models))
	for _, m := range models {
		c := domain.CopyAvailability{Inventory: inventoryFromModel(m)}
		if d, ok := due[m.ID]; ok {
			c.DueDate = &d
		}
		res = append(res, c)
	}
	return res, nil
}

func (s *GormStore) CountBorrowRecordsOfInventory(ctx context.Context, inventoryID uint) (int64, error) {
	var count int64
	err := s.conn(ctx).Model(&BorrowRecordModel{}).Where("inventory_id = ?", inventoryID).Count(&count).Error
	return count, err
}
