package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libmgmt/pkg/domain"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	dsn := "sqlite:" + filepath.Join(t.TempDir(), "store.db") + "?_busy_timeout=5000&_foreign_keys=on"
	s, err := NewGormStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedBook(t *testing.T, s *GormStore, title, author, index string, categoryID uint) domain.Book {
	t.Helper()
	b := domain.Book{Title: title, Author: author, IndexNumber: index, CategoryID: categoryID}
	require.NoError(t, s.CreateBook(context.Background(), &b))
	return b
}

func TestKeywordClause(t *testing.T) {
	expr, args := keywordClause([]string{"a", ""}, []string{"x"})
	assert.Empty(t, expr)
	assert.Nil(t, args)

	expr, args = keywordClause([]string{"50%", "Ab_"}, []string{"x", "y"})
	assert.Equal(t, `((LOWER(x) LIKE ? ESCAPE '\' OR LOWER(y) LIKE ? ESCAPE '\') OR (LOWER(x) LIKE ? ESCAPE '\' OR LOWER(y) LIKE ? ESCAPE '\'))`, expr)
	assert.Equal(t, []any{`%50\%%`, `%50\%%`, `%ab\_%`, `%ab\_%`}, args)
}

func TestSearchBooksUnionAndPaging(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	cat := domain.Category{CategoryNumber: "FIC", Name: "Fiction"}
	require.NoError(t, s.CreateCategory(ctx, &cat))

	for i := 0; i < 12; i++ {
		seedBook(t, s, fmt.Sprintf("Essay %02d", i), "Tolkien", fmt.Sprintf("TK-%02d", i), cat.ID)
	}
	hobbit := seedBook(t, s, "The Hobbit", "Someone", "HB-1", cat.ID)
	seedBook(t, s, "Unrelated", "Nobody", "UN-1", cat.ID)
	require.NoError(t, s.CreateInventory(ctx, &domain.Inventory{BookID: hobbit.ID, Status: domain.InventoryInLibrary}))
	require.NoError(t, s.CreateInventory(ctx, &domain.Inventory{BookID: hobbit.ID, Status: domain.InventoryUnderMaintenance}))

	page1, count, err := s.SearchBooks(ctx, SearchQuery{Tokens: []string{"tolkien", "HOBBIT"}, Page: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 13, count)
	require.Len(t, page1, domain.PageSize)
	for i := 1; i < len(page1); i++ {
		assert.Less(t, page1[i-1].Book.ID, page1[i].Book.ID)
	}

	page2, _, err := s.SearchBooks(ctx, SearchQuery{Tokens: []string{"tolkien", "HOBBIT"}, Page: 2})
	require.NoError(t, err)
	require.Len(t, page2, 3)
	last := page2[len(page2)-1]
	assert.Equal(t, hobbit.ID, last.Book.ID)
	assert.EqualValues(t, 2, last.InventoryCount)
	assert.Equal(t, "Fiction", last.Book.Category.Name)

	all, count, err := s.SearchBooks(ctx, SearchQuery{Tokens: []string{"zzz", ""}, Page: 0})
	require.NoError(t, err)
	assert.EqualValues(t, 14, count)
	assert.Len(t, all, domain.PageSize)
}

func TestSearchEscapesWildcards(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.CreateCategory(ctx, &domain.Category{CategoryNumber: "C_1", Name: "100% Science"}))
	require.NoError(t, s.CreateCategory(ctx, &domain.Category{CategoryNumber: "C11", Name: "1000 Poems"}))

	res, count, err := s.SearchCategories(ctx, SearchQuery{Tokens: []string{"c_"}, Page: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	require.Len(t, res, 1)
	assert.Equal(t, "C_1", res[0].CategoryNumber)

	_, count, err = s.SearchCategories(ctx, SearchQuery{Tokens: []string{"100%"}, Page: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestListCopiesOfBookOrdersInLibraryFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	cat := domain.Category{CategoryNumber: "FIC", Name: "Fiction"}
	require.NoError(t, s.CreateCategory(ctx, &cat))
	book := seedBook(t, s, "Dune", "Herbert", "HB-2", cat.ID)

	user := domain.User{Username: "alice", Role: domain.RoleReader, Status: domain.StatusActive, PasswordHash: "x"}
	require.NoError(t, s.CreateUser(ctx, &user))
	reader := domain.Reader{UserID: user.ID, MaxBorrowLimit: 5}
	require.NoError(t, s.CreateReader(ctx, &reader))

	borrowed := domain.Inventory{BookID: book.ID, Status: domain.InventoryBorrowed}
	maint := domain.Inventory{BookID: book.ID, Status: domain.InventoryUnderMaintenance}
	inLib := domain.Inventory{BookID: book.ID, Status: domain.InventoryInLibrary}
	for _, inv := range []*domain.Inventory{&borrowed, &maint, &inLib} {
		require.NoError(t, s.CreateInventory(ctx, inv))
	}
	due := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.CreateBorrowRecord(ctx, &domain.BorrowRecord{
		ReaderID:    reader.ID,
		InventoryID: borrowed.ID,
		BorrowDate:  due.Add(-domain.LoanPeriod),
		ReturnDate:  due,
		Status:      domain.BorrowBorrowed,
	}))

	copies, err := s.ListCopiesOfBook(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, copies, 3)
	assert.Equal(t, inLib.ID, copies[0].Inventory.ID)
	assert.Equal(t, borrowed.ID, copies[1].Inventory.ID)
	require.NotNil(t, copies[1].DueDate)
	assert.True(t, copies[1].DueDate.Equal(due))
	assert.Nil(t, copies[2].DueDate)
}

func TestCountOpenBorrowsDue(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	cat := domain.Category{CategoryNumber: "FIC", Name: "Fiction"}
	require.NoError(t, s.CreateCategory(ctx, &cat))
	book := seedBook(t, s, "Dune", "Herbert", "HB-2", cat.ID)
	user := domain.User{Username: "bob", Role: domain.RoleReader, Status: domain.StatusActive, PasswordHash: "x"}
	require.NoError(t, s.CreateUser(ctx, &user))
	reader := domain.Reader{UserID: user.ID, MaxBorrowLimit: 5}
	require.NoError(t, s.CreateReader(ctx, &reader))

	now := time.Now().UTC()
	dues := []time.Time{now.Add(-time.Hour), now.Add(48 * time.Hour), now.Add(20 * 24 * time.Hour)}
	for _, d := range dues {
		inv := domain.Inventory{BookID: book.ID, Status: domain.InventoryBorrowed}
		require.NoError(t, s.CreateInventory(ctx, &inv))
		require.NoError(t, s.CreateBorrowRecord(ctx, &domain.BorrowRecord{
			ReaderID: reader.ID, InventoryID: inv.ID,
			BorrowDate: d.Add(-domain.LoanPeriod), ReturnDate: d, Status: domain.BorrowBorrowed,
		}))
	}

	open, err := s.CountOpenBorrows(ctx, reader.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, open)

	overdue, err := s.CountOpenBorrowsDue(ctx, reader.ID, time.Time{}, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, overdue)

	soon, err := s.CountOpenBorrowsDue(ctx, reader.ID, now, now.Add(domain.SoonOverdueWindow))
	require.NoError(t, err)
	assert.EqualValues(t, 1, soon)
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.WithTx(ctx, func(tx Store) error {
		if err := tx.CreateCategory(ctx, &domain.Category{CategoryNumber: "X", Name: "Gone"}); err != nil {
			return err
		}
		return domain.NewError(domain.KindValidation, "abort")
	})
	require.Error(t, err)

	cats, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, cats)
}

func TestUsernameIsUnique(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.CreateUser(ctx, &domain.User{Username: "carol", Role: domain.RoleReader, Status: domain.StatusActive, PasswordHash: "x"}))
	err := s.CreateUser(ctx, &domain.User{Username: "carol", Role: domain.RoleReader, Status: domain.StatusActive, PasswordHash: "y"})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	taken, err := s.HasUsername(ctx, "carol")
	require.NoError(t, err)
	assert.True(t, taken)
}
