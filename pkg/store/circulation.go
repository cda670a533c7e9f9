package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"libmgmt/pkg/domain"
)

func (s *GormStore) CreateBorrowRecord(ctx context.Context, rec *domain.BorrowRecord) error {
	model := borrowRecordToModel(*rec)
	if err := s.conn(ctx).Omit(clause.Associations).Create(&model).Error; err != nil {
		return err
	}
	rec.ID = model.ID
	return nil
}

func (s *GormStore) SetBorrowRecordStatus(ctx context.Context, id uint, status domain.BorrowStatus) error {
	return s.conn(ctx).Model(&BorrowRecordModel{}).Where("id = ?", id).Update("status", int(status)).Error
}

// GetBorrowRecord returns a record with its reader, copy and book.
func (s *GormStore) GetBorrowRecord(ctx context.Context, id uint) (domain.BorrowRecord, bool, error) {
	var model BorrowRecordModel
	ok, err := first(withRecordRelations(s.conn(ctx)), &model, "id = ?", id)
	if !ok {
		return domain.BorrowRecord{}, false, err
	}
	return borrowRecordFromModel(model), true, nil
}

// LockOpenBorrowRecord locks the open record id owned by readerID.
func (s *GormStore) LockOpenBorrowRecord(ctx context.Context, id, readerID uint) (domain.BorrowRecord, bool, error) {
	var model BorrowRecordModel
	ok, err := first(s.forUpdate(ctx), &model,
		"id = ? AND reader_id = ? AND status = ?", id, readerID, int(domain.BorrowBorrowed))
	if !ok {
		return domain.BorrowRecord{}, false, err
	}
	return borrowRecordFromModel(model), true, nil
}

// ListOpenBorrows returns the reader's open records, oldest due date first.
func (s *GormStore) ListOpenBorrows(ctx context.Context, readerID uint) ([]domain.BorrowRecord, error) {
	var models []BorrowRecordModel
	if err := withRecordRelations(s.conn(ctx)).
		Where("reader_id = ? AND status = ?", readerID, int(domain.BorrowBorrowed)).
		Order("return_date ASC").
		Order("id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.BorrowRecord, 0, len(models))
	for _, m := range models {
		res = append(res, borrowRecordFromModel(m))
	}
	return res, nil
}

func (s *GormStore) CountOpenBorrows(ctx context.Context, readerID uint) (int64, error) {
	var count int64
	err := s.conn(ctx).Model(&BorrowRecordModel{}).
		Where("reader_id = ? AND status = ?", readerID, int(domain.BorrowBorrowed)).
		Count(&count).Error
	return count, err
}

// CountOpenBorrowsDue counts open records with after < return_date <= until.
// A zero after leaves the lower bound open.
func (s *GormStore) CountOpenBorrowsDue(ctx context.Context, readerID uint, after, until time.Time) (int64, error) {
	q := s.conn(ctx).Model(&BorrowRecordModel{}).
		Where("reader_id = ? AND status = ?", readerID, int(domain.BorrowBorrowed)).
		Where("return_date <= ?", until.UTC())
	if !after.IsZero() {
		q = q.Where("return_date > ?", after.UTC())
	}
	var count int64
	err := q.Count(&count).Error
	return count, err
}

// ListBorrowDates returns the borrow dates of a reader's records since a
// point in time. A zero readerID covers every reader.
func (s *GormStore) ListBorrowDates(ctx context.Context, readerID uint, since time.Time) ([]time.Time, error) {
	q := s.conn(ctx).Model(&BorrowRecordModel{}).Where("borrow_date >= ?", since.UTC())
	if readerID != 0 {
		q = q.Where("reader_id = ?", readerID)
	}
	var dates []time.Time
	if err := q.Order("borrow_date ASC").Pluck("borrow_date", &dates).Error; err != nil {
		return nil, err
	}
	for i := range dates {
		dates[i] = dates[i].UTC()
	}
	return dates, nil
}

// TopBorrowedBooks ranks books by the number of records borrowed since a
// point in time.
func (s *GormStore) TopBorrowedBooks(ctx context.Context, since time.Time, limit int) ([]domain.BookBorrowCount, error) {
	if limit <= 0 {
		limit = 5
	}
	var rows []struct {
		Title   string
		Borrows int64
	}
	err := s.conn(ctx).Table("borrow_record_models").
		Select("book_models.title AS title, COUNT(*) AS borrows").
		Joins("JOIN inventory_models ON inventory_models.id = borrow_record_models.inventory_id").
		Joins("JOIN book_models ON book_models.id = inventory_models.book_id").
		Where("borrow_record_models.borrow_date >= ?", since.UTC()).
		Group("book_models.id, book_models.title").
		Order("borrows DESC").
		Order("book_models.id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	res := make([]domain.BookBorrowCount, 0, len(rows))
	for _, r := range rows {
		res = append(res, domain.BookBorrowCount{Title: r.Title, Count: r.Borrows})
	}
	return res, nil
}

func withRecordRelations(q *gorm.DB) *gorm.DB {
	return q.Preload("Reader.User").Preload("Inventory.Book.Category")
}
