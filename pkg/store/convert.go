package store

import (
	"time"

	"libmgmt/pkg/domain"
)

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Status:       string(u.Status),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         domain.UserRole(m.Role),
		Status:       domain.UserStatus(m.Status),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func readerFromModel(m ReaderModel) domain.Reader {
	return domain.Reader{
		ID:             m.ID,
		UserID:         m.UserID,
		MaxBorrowLimit: m.MaxBorrowLimit,
		User:           userFromModel(m.User),
	}
}

func categoryToModel(c domain.Category) CategoryModel {
	return CategoryModel{ID: c.ID, CategoryNumber: c.CategoryNumber, Name: c.Name}
}

func categoryFromModel(m CategoryModel) domain.Category {
	return domain.Category{ID: m.ID, CategoryNumber: m.CategoryNumber, Name: m.Name}
}

func bookToModel(b domain.Book) BookModel {
	return BookModel{
		ID:          b.ID,
		Title:       b.Title,
		Author:      b.Author,
		Publisher:   b.Publisher,
		PublishDate: b.PublishDate,
		IndexNumber: b.IndexNumber,
		CategoryID:  b.CategoryID,
		Description: b.Description,
	}
}

func bookFromModel(m BookModel) domain.Book {
	return domain.Book{
		ID:          m.ID,
		Title:       m.Title,
		Author:      m.Author,
		Publisher:   m.Publisher,
		PublishDate: m.PublishDate,
		IndexNumber: m.IndexNumber,
		CategoryID:  m.CategoryID,
		Category:    categoryFromModel(m.Category),
		Description: m.Description,
	}
}

func inventoryToModel(inv domain.Inventory) InventoryModel {
	return InventoryModel{
		ID:             inv.ID,
		BookID:         inv.BookID,
		Status:         int(inv.Status),
		Location:       inv.Location,
		LastBorrowedOn: utcPtr(inv.LastBorrowedOn),
		LastBorrowedBy: inv.LastBorrowedBy,
	}
}

func inventoryFromModel(m InventoryModel) domain.Inventory {
	return domain.Inventory{
		ID:             m.ID,
		BookID:         m.BookID,
		Book:           bookFromModel(m.Book),
		Status:         domain.InventoryStatus(m.Status),
		Location:       m.Location,
		LastBorrowedOn: utcPtr(m.LastBorrowedOn),
		LastBorrowedBy: m.LastBorrowedBy,
	}
}

func borrowRecordToModel(r domain.BorrowRecord) BorrowRecordModel {
	return BorrowRecordModel{
		ID:          r.ID,
		ReaderID:    r.ReaderID,
		InventoryID: r.InventoryID,
		BorrowDate:  r.BorrowDate.UTC(),
		ReturnDate:  r.ReturnDate.UTC(),
		Status:      int(r.Status),
	}
}

func borrowRecordFromModel(m BorrowRecordModel) domain.BorrowRecord {
	return domain.BorrowRecord{
		ID:          m.ID,
		ReaderID:    m.ReaderID,
		Reader:      readerFromModel(m.Reader),
		InventoryID: m.InventoryID,
		Inventory:   inventoryFromModel(m.Inventory),
		BorrowDate:  m.BorrowDate.UTC(),
		ReturnDate:  m.ReturnDate.UTC(),
		Status:      domain.BorrowStatus(m.Status),
	}
}

func operationLogToModel(e domain.OperationLog) OperationLogModel {
	return OperationLogModel{
		ID:            e.ID,
		OperationType: string(e.OperationType),
		Content:       e.Content,
		Timestamp:     e.Timestamp.UTC(),
		OperatorID:    e.OperatorID,
		Details:       e.Details,
	}
}

func operationLogFromModel(m OperationLogModel) domain.OperationLog {
	e := domain.OperationLog{
		ID:            m.ID,
		OperationType: domain.OperationType(m.OperationType),
		Content:       m.Content,
		Timestamp:     m.Timestamp.UTC(),
		OperatorID:    m.OperatorID,
		Details:       []byte(m.Details),
	}
	if m.Operator != nil {
		op := userFromModel(*m.Operator)
		e.Operator = &op
	}
	return e
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
