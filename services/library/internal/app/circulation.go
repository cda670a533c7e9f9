package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"libmgmt/internal/util"
	"libmgmt/pkg/domain"
	"libmgmt/pkg/events"
	"libmgmt/pkg/store"
)

// ActiveBorrows is a reader's open records and remaining quota.
type ActiveBorrows struct {
	Records   []domain.BorrowRecord
	Remaining int64
}

// Borrow lends copy inventoryID to the actor. The reader and copy rows are
// locked for the whole check-then-write sequence, so two borrows of one copy
// or two borrows against the last unit of quota cannot both succeed.
func (a *App) Borrow(ctx context.Context, actor domain.User, inventoryID uint) (rec domain.BorrowRecord, err error) {
	ctx, span := a.startSpan(ctx, "library.borrow",
		attribute.Int64("user.id", int64(actor.ID)),
		attribute.Int64("inventory.id", int64(inventoryID)),
	)
	defer func() { endSpan(span, err) }()

	now := a.now()
	var inv domain.Inventory
	err = a.store.WithTx(ctx, func(tx store.Store) error {
		reader, err := a.readerOf(ctx, tx, actor)
		if err != nil {
			return err
		}
		reader, ok, err := tx.LockReader(ctx, reader.ID)
		if err != nil {
			return fmt.Errorf("lock reader: %w", err)
		}
		if !ok {
			return ErrReaderNotFound
		}
		inv, ok, err = tx.LockInventory(ctx, inventoryID)
		if err != nil {
			return fmt.Errorf("lock inventory: %w", err)
		}
		if !ok {
			return ErrInventoryNotFound
		}
		if inv.Status != domain.InventoryInLibrary {
			return ErrNotAvailable
		}
		active, err := tx.CountOpenBorrows(ctx, reader.ID)
		if err != nil {
			return fmt.Errorf("count borrows: %w", err)
		}
		if int64(reader.MaxBorrowLimit)-active <= 0 {
			return ErrQuotaExceeded
		}

		readerID := reader.ID
		inv.Status = domain.InventoryBorrowed
		inv.LastBorrowedOn = &now
		inv.LastBorrowedBy = &readerID
		if err := tx.UpdateInventory(ctx, inv); err != nil {
			return fmt.Errorf("update inventory: %w", err)
		}
		rec = domain.BorrowRecord{
			ReaderID:    reader.ID,
			Reader:      reader,
			InventoryID: inv.ID,
			BorrowDate:  now,
			ReturnDate:  now.Add(domain.LoanPeriod),
			Status:      domain.BorrowBorrowed,
		}
		if err := tx.CreateBorrowRecord(ctx, &rec); err != nil {
			return fmt.Errorf("save borrow record: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.BorrowRecord{}, err
	}
	rec.Inventory = inv
	span.SetAttributes(attribute.Int64("borrow_record.id", int64(rec.ID)))

	a.record(ctx, actor,
		inventoryChange(domain.OpUpdate, inv),
		recordChange(domain.OpCreate, rec),
	)
	a.publish(ctx, events.TypeInventoryBorrowed, rec)
	return rec, nil
}

// Return closes the actor's open record recordID and puts the copy back in
// the library.
func (a *App) Return(ctx context.Context, actor domain.User, recordID uint) (rec domain.BorrowRecord, err error) {
	ctx, span := a.startSpan(ctx, "library.return",
		attribute.Int64("user.id", int64(actor.ID)),
		attribute.Int64("borrow_record.id", int64(recordID)),
	)
	defer func() { endSpan(span, err) }()

	var inv domain.Inventory
	err = a.store.WithTx(ctx, func(tx store.Store) error {
		reader, err := a.readerOf(ctx, tx, actor)
		if err != nil {
			return err
		}
		var ok bool
		rec, ok, err = tx.LockOpenBorrowRecord(ctx, recordID, reader.ID)
		if err != nil {
			return fmt.Errorf("lock borrow record: %w", err)
		}
		if !ok {
			return ErrRecordNotFound
		}
		inv, ok, err = tx.LockInventory(ctx, rec.InventoryID)
		if err != nil {
			return fmt.Errorf("lock inventory: %w", err)
		}
		if !ok {
			return ErrInventoryNotFound
		}
		if err := tx.SetBorrowRecordStatus(ctx, rec.ID, domain.BorrowReturned); err != nil {
			return fmt.Errorf("update borrow record: %w", err)
		}
		inv.Status = domain.InventoryInLibrary
		if err := tx.UpdateInventory(ctx, inv); err != nil {
			return fmt.Errorf("update inventory: %w", err)
		}
		rec.Status = domain.BorrowReturned
		rec.Reader = reader
		return nil
	})
	if err != nil {
		return domain.BorrowRecord{}, err
	}
	rec.Inventory = inv

	a.record(ctx, actor,
		recordChange(domain.OpUpdate, rec),
		inventoryChange(domain.OpUpdate, inv),
	)
	a.publish(ctx, events.TypeInventoryReturned, rec)
	return rec, nil
}

// ActiveBorrows lists the actor's open records with the quota left.
func (a *App) ActiveBorrows(ctx context.Context, actor domain.User) (ActiveBorrows, error) {
	reader, err := a.readerOf(ctx, a.store, actor)
	if err != nil {
		return ActiveBorrows{}, err
	}
	records, err := a.store.ListOpenBorrows(ctx, reader.ID)
	if err != nil {
		return ActiveBorrows{}, fmt.Errorf("list borrows: %w", err)
	}
	return ActiveBorrows{
		Records:   records,
		Remaining: int64(reader.MaxBorrowLimit) - int64(len(records)),
	}, nil
}

func (a *App) publish(ctx context.Context, eventType string, rec domain.BorrowRecord) {
	if a.events == nil {
		return
	}
	e := events.Event{
		ID:          util.NewID(),
		Type:        eventType,
		OccurredAt:  a.now(),
		ReaderID:    rec.ReaderID,
		InventoryID: rec.InventoryID,
		BookID:      rec.Inventory.BookID,
		RecordID:    rec.ID,
		DueDate:     rec.ReturnDate,
	}
	if err := a.events.Publish(ctx, e); err != nil {
		logger(ctx).Warn("circulation event publish failed", "type", eventType, "record_id", rec.ID, "err", err)
	}
}
