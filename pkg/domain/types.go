package domain

import "time"

const (
	// DefaultMaxBorrowLimit is the quota given to self-registered readers.
	DefaultMaxBorrowLimit = 5
	// LoanPeriod is the time between borrow date and due date.
	LoanPeriod = 30 * 24 * time.Hour
	// SoonOverdueWindow bounds the "due soon" count in the reader summary.
	SoonOverdueWindow = 7 * 24 * time.Hour
	// PageSize is the fixed page size of every search listing.
	PageSize = 10
	// UnnamedCategory is the placeholder name of auto-created categories.
	UnnamedCategory = "Unnamed Category"
)

type UserRole string

const (
	RoleReader UserRole = "reader"
	RoleAdmin  UserRole = "admin"
)

type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusDisabled UserStatus = "disabled"
)

// InventoryStatus is the state of one physical copy.
type InventoryStatus int

const (
	InventoryRemoved          InventoryStatus = -1
	InventoryUnderMaintenance InventoryStatus = 0
	InventoryInLibrary        InventoryStatus = 1
	InventoryBorrowed         InventoryStatus = 2
)

// Label returns the display name of the status.
func (s InventoryStatus) Label() string {
	switch s {
	case InventoryRemoved:
		return "Removed"
	case InventoryUnderMaintenance:
		return "Under Maintenance"
	case InventoryInLibrary:
		return "In Library"
	case InventoryBorrowed:
		return "Borrowed"
	default:
		return "Unknown"
	}
}

// AdminSettable reports whether staff may set the status directly on a copy
// that is not currently borrowed.
func (s InventoryStatus) AdminSettable() bool {
	return s == InventoryRemoved || s == InventoryUnderMaintenance || s == InventoryInLibrary
}

// BorrowStatus is the state of a borrow record.
type BorrowStatus int

const (
	BorrowOverdue  BorrowStatus = -1
	BorrowReturned BorrowStatus = 0
	BorrowBorrowed BorrowStatus = 1
)

func (s BorrowStatus) Label() string {
	switch s {
	case BorrowOverdue:
		return "Overdue"
	case BorrowReturned:
		return "Returned"
	case BorrowBorrowed:
		return "Borrowed"
	default:
		return "Unknown"
	}
}

type OperationType string

const (
	OpCreate OperationType = "create"
	OpUpdate OperationType = "update"
	OpDelete OperationType = "delete"
)

type User struct {
	ID           uint
	Username     string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Role         UserRole
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u User) IsActive() bool {
	return u.Status != StatusDisabled
}

// Reader is the borrowing profile attached one-to-one to a User.
type Reader struct {
	ID             uint
	UserID         uint
	MaxBorrowLimit int
	User           User
}

type Category struct {
	ID             uint
	CategoryNumber string
	Name           string
}

type Book struct {
	ID          uint
	Title       string
	Author      string
	Publisher   string
	PublishDate string
	IndexNumber string
	CategoryID  uint
	Category    Category
	Description string
}

// Inventory is one physical copy of a Book.
type Inventory struct {
	ID             uint
	BookID         uint
	Book           Book
	Status         InventoryStatus
	Location       string
	LastBorrowedOn *time.Time
	LastBorrowedBy *uint
}

type BorrowRecord struct {
	ID          uint
	ReaderID    uint
	Reader      Reader
	InventoryID uint
	Inventory   Inventory
	BorrowDate  time.Time
	ReturnDate  time.Time
	Status      BorrowStatus
}

// EffectiveStatus reports Overdue for open records whose due date has passed.
// Overdue is never stored.
func (r BorrowRecord) EffectiveStatus(now time.Time) BorrowStatus {
	if r.Status == BorrowBorrowed && !r.ReturnDate.After(now) {
		return BorrowOverdue
	}
	return r.Status
}

type OperationLog struct {
	ID            uint
	OperationType OperationType
	Content       string
	Timestamp     time.Time
	OperatorID    *uint
	Operator      *User
	Details       []byte
}

// Page is one page of a keyword search.
type Page[T any] struct {
	Keywords  []string
	Items     []T
	Count     int64
	PageCount int
	Page      int
}

// BookListing is a search hit with its copy count.
type BookListing struct {
	Book           Book
	InventoryCount int64
}

// CopyAvailability describes one copy of a book for the borrow screen.
type CopyAvailability struct {
	Inventory Inventory
	DueDate   *time.Time
}

// ReaderSummary holds the counters of the reader home screen.
type ReaderSummary struct {
	Borrowed       int64
	SoonOverdue    int64
	Overdue        int64
	RemainingQuota int64
}

type DailyCount struct {
	Date  string
	Count int64
}

type BookBorrowCount struct {
	Title string
	Count int64
}
