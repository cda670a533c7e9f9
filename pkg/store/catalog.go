package store

import (
	"context"

	"gorm.io/gorm/clause"

	"libmgmt/pkg/domain"
)

func (s *GormStore) CreateCategory(ctx context.Context, c *domain.Category) error {
	model := categoryToModel(*c)
	if err := s.conn(ctx).Create(&model).Error; err != nil {
		return err
	}
	c.ID = model.ID
	return nil
}

func (s *GormStore) UpdateCategory(ctx context.Context, c domain.Category) error {
	return s.conn(ctx).Model(&CategoryModel{}).
		Where("id = ?", c.ID).
		Updates(map[string]any{
			"category_number": c.CategoryNumber,
			"name":            c.Name,
		}).Error
}

func (s *GormStore) DeleteCategory(ctx context.Context, id uint) error {
	return s.conn(ctx).Delete(&CategoryModel{}, "id = ?", id).Error
}

func (s *GormStore) GetCategory(ctx context.Context, id uint) (domain.Category, bool, error) {
	var model CategoryModel
	ok, err := first(s.conn(ctx), &model, "id = ?", id)
	if !ok {
		return domain.Category{}, false, err
	}
	return categoryFromModel(model), true, nil
}

// GetCategoryByNumber returns the oldest category carrying number.
func (s *GormStore) GetCategoryByNumber(ctx context.Context, number string) (domain.Category, bool, error) {
	var model CategoryModel
	ok, err := first(s.conn(ctx).Order("id ASC"), &model, "category_number = ?", number)
	if !ok {
		return domain.Category{}, false, err
	}
	return categoryFromModel(model), true, nil
}

// ListCategories returns every category ordered by ID.
func (s *GormStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var models []CategoryModel
	if err := s.conn(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Category, 0, len(models))
	for _, m := range models {
		res = append(res, categoryFromModel(m))
	}
	return res, nil
}

func (s *GormStore) CountBooksInCategory(ctx context.Context, categoryID uint) (int64, error) {
	var count int64
	err := s.conn(ctx).Model(&BookModel{}).Where("category_id = ?", categoryID).Count(&count).Error
	return count, err
}

func (s *GormStore) CreateBook(ctx context.Context, b *domain.Book) error {
	model := bookToModel(*b)
	if err := s.conn(ctx).Omit(clause.Associations).Create(&model).Error; err != nil {
		return err
	}
	b.ID = model.ID
	return nil
}

func (s *GormStore) UpdateBook(ctx context.Context, b domain.Book) error {
	return s.conn(ctx).Model(&BookModel{}).
		Where("id = ?", b.ID).
		Updates(map[string]any{
			"title":        b.Title,
			"author":       b.Author,
			"publisher":    b.Publisher,
			"publish_date": b.PublishDate,
			"index_number": b.IndexNumber,
			"category_id":  b.CategoryID,
			"description":  b.Description,
		}).Error
}

func (s *GormStore) DeleteBook(ctx context.Context, id uint) error {
	return s.conn(ctx).Delete(&BookModel{}, "id = ?", id).Error
}

// GetBook returns a book with its category.
func (s *GormStore) GetBook(ctx context.Context, id uint) (domain.Book, bool, error) {
	var model BookModel
	ok, err := first(s.conn(ctx).Preload("Category"), &model, "id = ?", id)
	if !ok {
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// FindBookByIndexNumber resolves an index number to a book. Index numbers are
// not unique; the lowest ID wins.
func (s *GormStore) FindBookByIndexNumber(ctx context.Context, indexNumber string) (domain.Book, bool, error) {
	var model BookModel
	ok, err := first(s.conn(ctx).Preload("Category").Order("id ASC"), &model, "index_number = ?", indexNumber)
	if !ok {
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

func (s *GormStore) CountInventoriesOfBook(ctx context.Context, bookID uint) (int64, error) {
	var count int64
	err := s.conn(ctx).Model(&InventoryModel{}).Where("book_id = ?", bookID).Count(&count).Error
	return count, err
}
