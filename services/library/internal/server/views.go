package server

import (
	"encoding/json"
	"time"

	"libmgmt/pkg/domain"
	"libmgmt/services/library/internal/app"
)

const summaryRunes = 200

type userView struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	IsStaff   bool   `json:"isStaff"`
}

func newUserView(u domain.User) userView {
	return userView{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      string(u.Role),
		Status:    string(u.Status),
		IsStaff:   u.IsAdmin(),
	}
}

type readerView struct {
	ID             uint     `json:"id"`
	MaxBorrowLimit int      `json:"maxBorrowLimit"`
	User           userView `json:"user"`
}

func newReaderView(r domain.Reader) readerView {
	return readerView{ID: r.ID, MaxBorrowLimit: r.MaxBorrowLimit, User: newUserView(r.User)}
}

type categoryView struct {
	ID             uint   `json:"id"`
	CategoryNumber string `json:"categoryNumber"`
	Name           string `json:"name"`
}

func newCategoryView(c domain.Category) categoryView {
	return categoryView{ID: c.ID, CategoryNumber: c.CategoryNumber, Name: c.Name}
}

type bookView struct {
	ID          uint         `json:"id"`
	Title       string       `json:"title"`
	Author      string       `json:"author"`
	Publisher   string       `json:"publisher"`
	PublishDate string       `json:"publishDate"`
	IndexNumber string       `json:"indexNumber"`
	Category    categoryView `json:"category"`
	Description string       `json:"description"`
	Summary     string       `json:"summary"`
}

func newBookView(b domain.Book) bookView {
	return bookView{
		ID:          b.ID,
		Title:       b.Title,
		Author:      b.Author,
		Publisher:   b.Publisher,
		PublishDate: b.PublishDate,
		IndexNumber: b.IndexNumber,
		Category:    newCategoryView(b.Category),
		Description: b.Description,
		Summary:     app.Summarize(b.Description, summaryRunes),
	}
}

type bookListingView struct {
	bookView
	InventoryCount int64 `json:"inventoryCount"`
}

type inventoryView struct {
	ID             uint       `json:"id"`
	BookID         uint       `json:"bookId"`
	BookTitle      string     `json:"bookTitle"`
	IndexNumber    string     `json:"indexNumber"`
	Status         int        `json:"status"`
	StatusLabel    string     `json:"statusLabel"`
	Location       string     `json:"location"`
	LastBorrowedOn *time.Time `json:"lastBorrowedOn,omitempty"`
	LastBorrowedBy *uint      `json:"lastBorrowedBy,omitempty"`
}

func newInventoryView(inv domain.Inventory) inventoryView {
	return inventoryView{
		ID:             inv.ID,
		BookID:         inv.BookID,
		BookTitle:      inv.Book.Title,
		IndexNumber:    inv.Book.IndexNumber,
		Status:         int(inv.Status),
		StatusLabel:    inv.Status.Label(),
		Location:       inv.Location,
		LastBorrowedOn: inv.LastBorrowedOn,
		LastBorrowedBy: inv.LastBorrowedBy,
	}
}

type copyView struct {
	inventoryView
	DueDate *time.Time `json:"dueDate,omitempty"`
}

type recordView struct {
	ID          uint      `json:"id"`
	ReaderID    uint      `json:"readerId"`
	Username    string    `json:"username"`
	InventoryID uint      `json:"inventoryId"`
	BookTitle   string    `json:"bookTitle"`
	BorrowDate  time.Time `json:"borrowDate"`
	ReturnDate  time.Time `json:"returnDate"`
	Status      int       `json:"status"`
	StatusLabel string    `json:"statusLabel"`
}

func newRecordView(rec domain.BorrowRecord, now time.Time) recordView {
	status := rec.EffectiveStatus(now)
	return recordView{
		ID:          rec.ID,
		ReaderID:    rec.ReaderID,
		Username:    rec.Reader.User.Username,
		InventoryID: rec.InventoryID,
		BookTitle:   rec.Inventory.Book.Title,
		BorrowDate:  rec.BorrowDate,
		ReturnDate:  rec.ReturnDate,
		Status:      int(status),
		StatusLabel: status.Label(),
	}
}

type logView struct {
	ID            uint            `json:"id"`
	OperationType string          `json:"operationType"`
	Content       string          `json:"content"`
	Timestamp     time.Time       `json:"timestamp"`
	Operator      string          `json:"operator,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
}

func newLogView(l domain.OperationLog) logView {
	v := logView{
		ID:            l.ID,
		OperationType: string(l.OperationType),
		Content:       l.Content,
		Timestamp:     l.Timestamp,
	}
	if l.Operator != nil {
		v.Operator = l.Operator.Username
	}
	if json.Valid(l.Details) {
		v.Details = json.RawMessage(l.Details)
	}
	return v
}

func mapViews[T, V any](items []T, fn func(T) V) []V {
	out := make([]V, 0, len(items))
	for _, it := range items {
		out = append(out, fn(it))
	}
	return out
}

// searchResponse renders a page under the entity's own key, for example
// {"success":true,"keyword":[...],"books":[...],"page_count":2,"count":12}.
func searchResponse[T, V any](key string, page domain.Page[T], fn func(T) V) map[string]any {
	return map[string]any{
		"success":    true,
		"keyword":    page.Keywords,
		key:          mapViews(page.Items, fn),
		"page":       page.Page,
		"page_count": page.PageCount,
		"count":      page.Count,
	}
}
