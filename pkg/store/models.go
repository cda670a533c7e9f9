package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           uint      `gorm:"primaryKey"`
	Username     string    `gorm:"size:20;uniqueIndex;not null"`
	FirstName    string    `gorm:"size:30"`
	LastName     string    `gorm:"size:30"`
	Email        string    `gorm:"size:100;index"`
	PasswordHash string    `gorm:"not null"`
	Role         string    `gorm:"size:16;not null"`
	Status       string    `gorm:"size:16;not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type ReaderModel struct {
	ID             uint      `gorm:"primaryKey"`
	UserID         uint      `gorm:"uniqueIndex;not null"`
	User           UserModel `gorm:"foreignKey:UserID"`
	MaxBorrowLimit int       `gorm:"not null"`
}

type CategoryModel struct {
	ID             uint   `gorm:"primaryKey"`
	CategoryNumber string `gorm:"size:50;index;not null"`
	Name           string `gorm:"size:100;not null"`
}

type BookModel struct {
	ID          uint          `gorm:"primaryKey"`
	Title       string        `gorm:"size:100;not null"`
	Author      string        `gorm:"size:100"`
	Publisher   string        `gorm:"size:100"`
	PublishDate string        `gorm:"size:100"`
	IndexNumber string        `gorm:"size:50;index"`
	CategoryID  uint          `gorm:"not null;index"`
	Category    CategoryModel `gorm:"foreignKey:CategoryID"`
	Description string        `gorm:"type:text"`
}

type InventoryModel struct {
	ID             uint      `gorm:"primaryKey"`
	BookID         uint      `gorm:"not null;index"`
	Book           BookModel `gorm:"foreignKey:BookID"`
	Status         int       `gorm:"not null;index"`
	Location       string    `gorm:"size:100"`
	LastBorrowedOn *time.Time
	LastBorrowedBy *uint `gorm:"index"`
}

type BorrowRecordModel struct {
	ID          uint           `gorm:"primaryKey"`
	ReaderID    uint           `gorm:"not null;index"`
	Reader      ReaderModel    `gorm:"foreignKey:ReaderID"`
	InventoryID uint           `gorm:"not null;index"`
	Inventory   InventoryModel `gorm:"foreignKey:InventoryID"`
	BorrowDate  time.Time      `gorm:"not null;index"`
	ReturnDate  time.Time      `gorm:"not null;index"`
	Status      int            `gorm:"not null;index"`
}

type OperationLogModel struct {
	ID            uint       `gorm:"primaryKey"`
	OperationType string     `gorm:"size:16;not null"`
	Content       string     `gorm:"type:text;not null"`
	Timestamp     time.Time  `gorm:"not null;index"`
	OperatorID    *uint      `gorm:"index"`
	Operator      *UserModel `gorm:"foreignKey:OperatorID"`
	Details       datatypes.JSON
}

func allModels() []any {
	return []any{
		&UserModel{},
		&ReaderModel{},
		&CategoryModel{},
		&BookModel{},
		&InventoryModel{},
		&BorrowRecordModel{},
		&OperationLogModel{},
	}
}
