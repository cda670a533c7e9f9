package app

import (
	"context"
	"fmt"
	"strings"

	"libmgmt/pkg/domain"
	"libmgmt/pkg/store"
)

// CategoryInput carries the editable category fields.
type CategoryInput struct {
	CategoryNumber string
	Name           string
}

// BookInput carries the editable book fields. The category is referenced by
// number and created on demand.
type BookInput struct {
	Title          string
	Author         string
	Publisher      string
	PublishDate    string
	IndexNumber    string
	CategoryNumber string
	Description    string
}

func (in CategoryInput) check() error {
	if err := checkLength("Category number", in.CategoryNumber, 50); err != nil {
		return err
	}
	return checkLength("Name", in.Name, 100)
}

func (in BookInput) check() error {
	for _, f := range []struct {
		label string
		value string
		max   int
	}{
		{"Title", in.Title, 100},
		{"Author", in.Author, 100},
		{"Publisher", in.Publisher, 100},
		{"Publish date", in.PublishDate, 100},
		{"Index number", in.IndexNumber, 50},
		{"Category", in.CategoryNumber, 100},
	} {
		if err := checkLength(f.label, f.value, f.max); err != nil {
			return err
		}
	}
	return nil
}

// ListCategories returns every category.
func (a *App) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return a.store.ListCategories(ctx)
}

func (a *App) GetCategory(ctx context.Context, id uint) (domain.Category, error) {
	c, ok, err := a.store.GetCategory(ctx, id)
	if err != nil {
		return domain.Category{}, fmt.Errorf("fetch category: %w", err)
	}
	if !ok {
		return domain.Category{}, ErrCategoryNotFound
	}
	return c, nil
}

func (a *App) CreateCategory(ctx context.Context, actor domain.User, in CategoryInput) (domain.Category, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.Category{}, err
	}
	c, err := createCategory(ctx, a.store, in)
	if err != nil {
		return domain.Category{}, err
	}
	a.record(ctx, actor, categoryChange(domain.OpCreate, c))
	return c, nil
}

func (a *App) UpdateCategory(ctx context.Context, actor domain.User, id uint, in CategoryInput) (domain.Category, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.Category{}, err
	}
	if err := in.check(); err != nil {
		return domain.Category{}, err
	}
	c, err := a.GetCategory(ctx, id)
	if err != nil {
		return domain.Category{}, err
	}
	c.CategoryNumber = in.CategoryNumber
	c.Name = in.Name
	if err := a.store.UpdateCategory(ctx, c); err != nil {
		return domain.Category{}, fmt.Errorf("update category: %w", err)
	}
	a.record(ctx, actor, categoryChange(domain.OpUpdate, c))
	return c, nil
}

// DeleteCategory removes a category no book refers to.
func (a *App) DeleteCategory(ctx context.Context, actor domain.User, id uint) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	var deleted domain.Category
	err := a.store.WithTx(ctx, func(tx store.Store) error {
		c, ok, err := tx.GetCategory(ctx, id)
		if err != nil {
			return fmt.Errorf("fetch category: %w", err)
		}
		if !ok {
			return ErrCategoryNotFound
		}
		n, err := tx.CountBooksInCategory(ctx, id)
		if err != nil {
			return fmt.Errorf("count books: %w", err)
		}
		if n > 0 {
			return ErrCategoryInUse
		}
		deleted = c
		return tx.DeleteCategory(ctx, id)
	})
	if err != nil {
		return err
	}
	a.record(ctx, actor, categoryChange(domain.OpDelete, deleted))
	return nil
}

func (a *App) GetBook(ctx context.Context, id uint) (domain.Book, error) {
	b, ok, err := a.store.GetBook(ctx, id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrBookNotFound
	}
	return b, nil
}

// CreateBook adds a book, creating its category when the number is unknown.
func (a *App) CreateBook(ctx context.Context, actor domain.User, in BookInput) (domain.Book, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.Book{}, err
	}
	var (
		book    domain.Book
		changes []change
	)
	err := a.store.WithTx(ctx, func(tx store.Store) error {
		var err error
		book, changes, err = createBook(ctx, tx, in)
		return err
	})
	if err != nil {
		return domain.Book{}, err
	}
	a.record(ctx, actor, changes...)
	return book, nil
}

func (a *App) UpdateBook(ctx context.Context, actor domain.User, id uint, in BookInput) (domain.Book, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.Book{}, err
	}
	if err := in.check(); err != nil {
		return domain.Book{}, err
	}
	var (
		book    domain.Book
		changes []change
	)
	err := a.store.WithTx(ctx, func(tx store.Store) error {
		current, ok, err := tx.GetBook(ctx, id)
		if err != nil {
			return fmt.Errorf("fetch book: %w", err)
		}
		if !ok {
			return ErrBookNotFound
		}
		category, created, err := getOrCreateCategory(ctx, tx, in.CategoryNumber)
		if err != nil {
			return err
		}
		if created != nil {
			changes = append(changes, *created)
		}
		book = applyBook(current, in, category)
		if err := tx.UpdateBook(ctx, book); err != nil {
			return fmt.Errorf("update book: %w", err)
		}
		changes = append(changes, bookChange(domain.OpUpdate, book))
		return nil
	})
	if err != nil {
		return domain.Book{}, err
	}
	a.record(ctx, actor, changes...)
	return book, nil
}

// DeleteBook removes a book that has no copies.
func (a *App) DeleteBook(ctx context.Context, actor domain.User, id uint) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	var deleted domain.Book
	err := a.store.WithTx(ctx, func(tx store.Store) error {
		b, ok, err := tx.GetBook(ctx, id)
		if err != nil {
			return fmt.Errorf("fetch book: %w", err)
		}
		if !ok {
			return ErrBookNotFound
		}
		n, err := tx.CountInventoriesOfBook(ctx, id)
		if err != nil {
			return fmt.Errorf("count inventories: %w", err)
		}
		if n > 0 {
			return ErrBookInUse
		}
		deleted = b
		return tx.DeleteBook(ctx, id)
	})
	if err != nil {
		return err
	}
	a.record(ctx, actor, bookChange(domain.OpDelete, deleted))
	return nil
}

func createCategory(ctx context.Context, s store.Store, in CategoryInput) (domain.Category, error) {
	if err := in.check(); err != nil {
		return domain.Category{}, err
	}
	c := domain.Category{CategoryNumber: in.CategoryNumber, Name: in.Name}
	if err := s.CreateCategory(ctx, &c); err != nil {
		return domain.Category{}, fmt.Errorf("save category: %w", err)
	}
	return c, nil
}

func createBook(ctx context.Context, s store.Store, in BookInput) (domain.Book, []change, error) {
	if err := in.check(); err != nil {
		return domain.Book{}, nil, err
	}
	var changes []change
	category, created, err := getOrCreateCategory(ctx, s, in.CategoryNumber)
	if err != nil {
		return domain.Book{}, nil, err
	}
	if created != nil {
		changes = append(changes, *created)
	}
	book := applyBook(domain.Book{}, in, category)
	if err := s.CreateBook(ctx, &book); err != nil {
		return domain.Book{}, nil, fmt.Errorf("save book: %w", err)
	}
	return book, append(changes, bookChange(domain.OpCreate, book)), nil
}

// getOrCreateCategory resolves a category number, creating an unnamed
// category when none exists. The returned change is non-nil when a row was
// created.
func getOrCreateCategory(ctx context.Context, s store.Store, number string) (domain.Category, *change, error) {
	number = strings.TrimSpace(number)
	c, ok, err := s.GetCategoryByNumber(ctx, number)
	if err != nil {
		return domain.Category{}, nil, fmt.Errorf("fetch category: %w", err)
	}
	if ok {
		return c, nil, nil
	}
	c = domain.Category{CategoryNumber: number, Name: domain.UnnamedCategory}
	if err := s.CreateCategory(ctx, &c); err != nil {
		return domain.Category{}, nil, fmt.Errorf("save category: %w", err)
	}
	created := categoryChange(domain.OpCreate, c)
	return c, &created, nil
}

func applyBook(b domain.Book, in BookInput, category domain.Category) domain.Book {
	b.Title = in.Title
	b.Author = in.Author
	b.Publisher = in.Publisher
	b.PublishDate = in.PublishDate
	b.IndexNumber = in.IndexNumber
	b.Description = in.Description
	b.CategoryID = category.ID
	b.Category = category
	return b
}
