package app

import (
	"context"
	"encoding/json"
	"fmt"

	"libmgmt/pkg/domain"
)

const (
	entityUser         = "User"
	entityReader       = "Reader"
	entityCategory     = "Category"
	entityBook         = "Book"
	entityInventory    = "Inventory"
	entityBorrowRecord = "BorrowRecord"
)

// change is one mutated row, collected inside a transaction and logged once
// it has committed.
type change struct {
	op      domain.OperationType
	entity  string
	id      uint
	details map[string]any
}

// record appends one operation log entry per change. Failures are logged and
// never returned.
func (a *App) record(ctx context.Context, actor domain.User, changes ...change) {
	for _, c := range changes {
		entry := domain.OperationLog{
			OperationType: c.op,
			Content:       fmt.Sprintf("%s a %s instance: #%d", c.op, c.entity, c.id),
			Timestamp:     a.now(),
		}
		if actor.ID != 0 {
			operator := actor.ID
			entry.OperatorID = &operator
		}
		if c.details != nil {
			raw, err := json.Marshal(c.details)
			if err == nil {
				entry.Details = raw
			}
		}
		if err := a.store.AppendOperationLog(ctx, &entry); err != nil {
			logger(ctx).Warn("operation log append failed",
				"op", string(c.op),
				"entity", c.entity,
				"id", c.id,
				"err", err,
			)
		}
	}
}

func userChange(op domain.OperationType, u domain.User) change {
	return change{op: op, entity: entityUser, id: u.ID, details: map[string]any{
		"username": u.Username,
		"email":    u.Email,
		"role":     string(u.Role),
		"status":   string(u.Status),
	}}
}

func readerChange(op domain.OperationType, r domain.Reader) change {
	return change{op: op, entity: entityReader, id: r.ID, details: map[string]any{
		"user_id":          r.UserID,
		"max_borrow_limit": r.MaxBorrowLimit,
	}}
}

func categoryChange(op domain.OperationType, c domain.Category) change {
	return change{op: op, entity: entityCategory, id: c.ID, details: map[string]any{
		"category_number": c.CategoryNumber,
		"name":            c.Name,
	}}
}

func bookChange(op domain.OperationType, b domain.Book) change {
	return change{op: op, entity: entityBook, id: b.ID, details: map[string]any{
		"title":        b.Title,
		"index_number": b.IndexNumber,
		"category_id":  b.CategoryID,
	}}
}

func inventoryChange(op domain.OperationType, inv domain.Inventory) change {
	return change{op: op, entity: entityInventory, id: inv.ID, details: map[string]any{
		"book_id":  inv.BookID,
		"status":   int(inv.Status),
		"location": inv.Location,
	}}
}

func recordChange(op domain.OperationType, rec domain.BorrowRecord) change {
	return change{op: op, entity: entityBorrowRecord, id: rec.ID, details: map[string]any{
		"reader_id":    rec.ReaderID,
		"inventory_id": rec.InventoryID,
		"status":       int(rec.Status),
		"return_date":  rec.ReturnDate,
	}}
}
