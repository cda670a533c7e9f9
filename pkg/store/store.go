package store

import (
	"context"
	"errors"
	"time"

	"libmgmt/pkg/domain"
)

// ErrUsernameTaken is returned by CreateUser when the username already exists.
var ErrUsernameTaken = errors.New("username already taken")

// SearchQuery selects one page of a keyword search. An empty token matches
// every row.
type SearchQuery struct {
	Tokens []string
	Page   int
}

// Offset returns the row offset of the page. Pages below 1 read as 1.
func (q SearchQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * domain.PageSize
}

// Store defines persistence for the library catalog, readers and circulation.
// Implementations must be safe for concurrent use; WithTx hands fn a Store
// bound to a single transaction.
type Store interface {
	WithTx(ctx context.Context, fn func(Store) error) error

	// accounts
	CreateUser(ctx context.Context, u *domain.User) error
	UpdateUser(ctx context.Context, u domain.User) error
	GetUserByID(ctx context.Context, id uint) (domain.User, bool, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, bool, error)
	HasUsername(ctx context.Context, username string) (bool, error)

	// readers
	CreateReader(ctx context.Context, r *domain.Reader) error
	UpdateReaderLimit(ctx context.Context, id uint, limit int) error
	GetReader(ctx context.Context, id uint) (domain.Reader, bool, error)
	GetReaderByUserID(ctx context.Context, userID uint) (domain.Reader, bool, error)
	LockReader(ctx context.Context, id uint) (domain.Reader, bool, error)

	// categories
	CreateCategory(ctx context.Context, c *domain.Category) error
	UpdateCategory(ctx context.Context, c domain.Category) error
	DeleteCategory(ctx context.Context, id uint) error
	GetCategory(ctx context.Context, id uint) (domain.Category, bool, error)
	GetCategoryByNumber(ctx context.Context, number string) (domain.Category, bool, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CountBooksInCategory(ctx context.Context, categoryID uint) (int64, error)

	// books
	CreateBook(ctx context.Context, b *domain.Book) error
	UpdateBook(ctx context.Context, b domain.Book) error
	DeleteBook(ctx context.Context, id uint) error
	GetBook(ctx context.Context, id uint) (domain.Book, bool, error)
	FindBookByIndexNumber(ctx context.Context, indexNumber string) (domain.Book, bool, error)
	CountInventoriesOfBook(ctx context.Context, bookID uint) (int64, error)

	// inventory
	CreateInventory(ctx context.Context, inv *domain.Inventory) error
	UpdateInventory(ctx context.Context, inv domain.Inventory) error
	DeleteInventory(ctx context.Context, id uint) error
	GetInventory(ctx context.Context, id uint) (domain.Inventory, bool, error)
	LockInventory(ctx context.Context, id uint) (domain.Inventory, bool, error)
	ListCopiesOfBook(ctx context.Context, bookID uint) ([]domain.CopyAvailability, error)
	CountBorrowRecordsOfInventory(ctx context.Context, inventoryID uint) (int64, error)

	// circulation
	CreateBorrowRecord(ctx context.Context, rec *domain.BorrowRecord) error
	SetBorrowRecordStatus(ctx context.Context, id uint, status domain.BorrowStatus) error
	GetBorrowRecord(ctx context.Context, id uint) (domain.BorrowRecord, bool, error)
	LockOpenBorrowRecord(ctx context.Context, id, readerID uint) (domain.BorrowRecord, bool, error)
	ListOpenBorrows(ctx context.Context, readerID uint) ([]domain.BorrowRecord, error)
	CountOpenBorrows(ctx context.Context, readerID uint) (int64, error)
	CountOpenBorrowsDue(ctx context.Context, readerID uint, after, until time.Time) (int64, error)

	// search
	SearchBooks(ctx context.Context, q SearchQuery) ([]domain.BookListing, int64, error)
	SearchReaders(ctx context.Context, q SearchQuery) ([]domain.Reader, int64, error)
	SearchCategories(ctx context.Context, q SearchQuery) ([]domain.Category, int64, error)
	SearchInventories(ctx context.Context, q SearchQuery) ([]domain.Inventory, int64, error)
	SearchBorrowRecords(ctx context.Context, readerID uint, q SearchQuery) ([]domain.BorrowRecord, int64, error)
	SearchOperationLogs(ctx context.Context, q SearchQuery) ([]domain.OperationLog, int64, error)

	// operation log
	AppendOperationLog(ctx context.Context, entry *domain.OperationLog) error

	// statistics
	ListBorrowDates(ctx context.Context, readerID uint, since time.Time) ([]time.Time, error)
	TopBorrowedBooks(ctx context.Context, since time.Time, limit int) ([]domain.BookBorrowCount, error)
}

// SessionStore issues and resolves bearer session tokens.
type SessionStore interface {
	NewSession(userID uint) (string, error)
	GetUserIDByToken(token string) (uint, bool, error)
	DeleteSession(token string) error
}

// UserSessionRevoker is an optional capability that revokes all sessions
// issued for a user up to a cutoff time.
type UserSessionRevoker interface {
	RevokeUserSessions(userID uint, since time.Time) error
}
