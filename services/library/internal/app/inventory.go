package app

import (
	"context"
	"fmt"

	"libmgmt/pkg/domain"
	"libmgmt/pkg/store"
)

// InventoryInput describes a new copy.
type InventoryInput struct {
	BookID   uint
	Status   domain.InventoryStatus
	Location string
}

// InventoryUpdate is the staff edit of a copy.
type InventoryUpdate struct {
	Status   domain.InventoryStatus
	Location string
}

func (a *App) GetInventory(ctx context.Context, id uint) (domain.Inventory, error) {
	inv, ok, err := a.store.GetInventory(ctx, id)
	if err != nil {
		return domain.Inventory{}, fmt.Errorf("fetch inventory: %w", err)
	}
	if !ok {
		return domain.Inventory{}, ErrInventoryNotFound
	}
	return inv, nil
}

// CreateInventory adds a copy of an existing book. A new copy cannot start
// out borrowed.
func (a *App) CreateInventory(ctx context.Context, actor domain.User, in InventoryInput) (domain.Inventory, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.Inventory{}, err
	}
	var inv domain.Inventory
	err := a.store.WithTx(ctx, func(tx store.Store) error {
		book, ok, err := tx.GetBook(ctx, in.BookID)
		if err != nil {
			return fmt.Errorf("fetch book: %w", err)
		}
		if !ok {
			return ErrBookNotFound
		}
		inv, err = createInventory(ctx, tx, book, in.Status, in.Location)
		return err
	})
	if err != nil {
		return domain.Inventory{}, err
	}
	a.record(ctx, actor, inventoryChange(domain.OpCreate, inv))
	return inv, nil
}

// UpdateInventory sets status and location. A borrowed copy keeps its
// status; it only leaves Borrowed through a return.
func (a *App) UpdateInventory(ctx context.Context, actor domain.User, id uint, upd InventoryUpdate) (domain.Inventory, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.Inventory{}, err
	}
	if err := checkLength("Location", upd.Location, 100); err != nil {
		return domain.Inventory{}, err
	}
	var inv domain.Inventory
	err := a.store.WithTx(ctx, func(tx store.Store) error {
		current, ok, err := tx.LockInventory(ctx, id)
		if err != nil {
			return fmt.Errorf("lock inventory: %w", err)
		}
		if !ok {
			return ErrInventoryNotFound
		}
		if err := checkTransition(current.Status, upd.Status); err != nil {
			return err
		}
		current.Status = upd.Status
		current.Location = upd.Location
		if err := tx.UpdateInventory(ctx, current); err != nil {
			return fmt.Errorf("update inventory: %w", err)
		}
		inv = current
		return nil
	})
	if err != nil {
		return domain.Inventory{}, err
	}
	a.record(ctx, actor, inventoryChange(domain.OpUpdate, inv))
	return inv, nil
}

// DeleteInventory removes a copy that was never borrowed.
func (a *App) DeleteInventory(ctx context.Context, actor domain.User, id uint) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	var deleted domain.Inventory
	err := a.store.WithTx(ctx, func(tx store.Store) error {
		inv, ok, err := tx.GetInventory(ctx, id)
		if err != nil {
			return fmt.Errorf("fetch inventory: %w", err)
		}
		if !ok {
			return ErrInventoryNotFound
		}
		n, err := tx.CountBorrowRecordsOfInventory(ctx, id)
		if err != nil {
			return fmt.Errorf("count borrow records: %w", err)
		}
		if n > 0 {
			return ErrInventoryInUse
		}
		deleted = inv
		return tx.DeleteInventory(ctx, id)
	})
	if err != nil {
		return err
	}
	a.record(ctx, actor, inventoryChange(domain.OpDelete, deleted))
	return nil
}

// ListCopies returns a book and its copies, those in the library first.
func (a *App) ListCopies(ctx context.Context, bookID uint) (domain.Book, []domain.CopyAvailability, error) {
	book, err := a.GetBook(ctx, bookID)
	if err != nil {
		return domain.Book{}, nil, err
	}
	copies, err := a.store.ListCopiesOfBook(ctx, bookID)
	if err != nil {
		return domain.Book{}, nil, fmt.Errorf("list copies: %w", err)
	}
	return book, copies, nil
}

func createInventory(ctx context.Context, s store.Store, book domain.Book, status domain.InventoryStatus, location string) (domain.Inventory, error) {
	if !status.AdminSettable() {
		return domain.Inventory{}, ErrInvalidStatus
	}
	if err := checkLength("Location", location, 100); err != nil {
		return domain.Inventory{}, err
	}
	inv := domain.Inventory{BookID: book.ID, Book: book, Status: status, Location: location}
	if err := s.CreateInventory(ctx, &inv); err != nil {
		return domain.Inventory{}, fmt.Errorf("save inventory: %w", err)
	}
	return inv, nil
}

func checkTransition(from, to domain.InventoryStatus) error {
	if from == domain.InventoryBorrowed {
		if to != domain.InventoryBorrowed {
			return ErrStatusTransition
		}
		return nil
	}
	if !to.AdminSettable() {
		return ErrStatusTransition
	}
	return nil
}
