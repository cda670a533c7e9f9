package app

import (
	"context"
	"fmt"
	"strings"

	"libmgmt/pkg/domain"
	"libmgmt/pkg/store"
)

// SplitKeyword splits a search keyword on single spaces. Empty tokens are
// kept; an empty token matches everything.
func SplitKeyword(keyword string) []string {
	return strings.Split(keyword, " ")
}

func searchQuery(keyword string, page int) store.SearchQuery {
	if page < 1 {
		page = 1
	}
	return store.SearchQuery{Tokens: SplitKeyword(keyword), Page: page}
}

func newPage[T any](q store.SearchQuery, items []T, count int64) domain.Page[T] {
	return domain.Page[T]{
		Keywords:  q.Tokens,
		Items:     items,
		Count:     count,
		PageCount: int((count + domain.PageSize - 1) / domain.PageSize),
		Page:      q.Page,
	}
}

// SearchBooks is the book search shared by readers and staff.
func (a *App) SearchBooks(ctx context.Context, keyword string, page int) (domain.Page[domain.BookListing], error) {
	q := searchQuery(keyword, page)
	items, count, err := a.store.SearchBooks(ctx, q)
	if err != nil {
		return domain.Page[domain.BookListing]{}, fmt.Errorf("search books: %w", err)
	}
	return newPage(q, items, count), nil
}

func (a *App) SearchReaders(ctx context.Context, keyword string, page int) (domain.Page[domain.Reader], error) {
	q := searchQuery(keyword, page)
	items, count, err := a.store.SearchReaders(ctx, q)
	if err != nil {
		return domain.Page[domain.Reader]{}, fmt.Errorf("search readers: %w", err)
	}
	return newPage(q, items, count), nil
}

func (a *App) SearchCategories(ctx context.Context, keyword string, page int) (domain.Page[domain.Category], error) {
	q := searchQuery(keyword, page)
	items, count, err := a.store.SearchCategories(ctx, q)
	if err != nil {
		return domain.Page[domain.Category]{}, fmt.Errorf("search categories: %w", err)
	}
	return newPage(q, items, count), nil
}

func (a *App) SearchInventories(ctx context.Context, keyword string, page int) (domain.Page[domain.Inventory], error) {
	q := searchQuery(keyword, page)
	items, count, err := a.store.SearchInventories(ctx, q)
	if err != nil {
		return domain.Page[domain.Inventory]{}, fmt.Errorf("search inventories: %w", err)
	}
	return newPage(q, items, count), nil
}

// SearchRecords searches every borrow record.
func (a *App) SearchRecords(ctx context.Context, keyword string, page int) (domain.Page[domain.BorrowRecord], error) {
	q := searchQuery(keyword, page)
	items, count, err := a.store.SearchBorrowRecords(ctx, 0, q)
	if err != nil {
		return domain.Page[domain.BorrowRecord]{}, fmt.Errorf("search borrow records: %w", err)
	}
	return newPage(q, items, count), nil
}

// SearchMyRecords searches the actor's own borrow records.
func (a *App) SearchMyRecords(ctx context.Context, actor domain.User, keyword string, page int) (domain.Page[domain.BorrowRecord], error) {
	reader, err := a.readerOf(ctx, a.store, actor)
	if err != nil {
		return domain.Page[domain.BorrowRecord]{}, err
	}
	q := searchQuery(keyword, page)
	items, count, err := a.store.SearchBorrowRecords(ctx, reader.ID, q)
	if err != nil {
		return domain.Page[domain.BorrowRecord]{}, fmt.Errorf("search borrow records: %w", err)
	}
	return newPage(q, items, count), nil
}

func (a *App) SearchLogs(ctx context.Context, keyword string, page int) (domain.Page[domain.OperationLog], error) {
	q := searchQuery(keyword, page)
	items, count, err := a.store.SearchOperationLogs(ctx, q)
	if err != nil {
		return domain.Page[domain.OperationLog]{}, fmt.Errorf("search operation logs: %w", err)
	}
	return newPage(q, items, count), nil
}
