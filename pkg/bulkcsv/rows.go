package bulkcsv

import "libmgmt/pkg/domain"

type BookRow struct {
	Line           int
	Title          string
	Author         string
	Publisher      string
	PublishDate    string
	IndexNumber    string
	CategoryNumber string
	Description    string
}

type CategoryRow struct {
	Line           int
	CategoryNumber string
	Name           string
}

// InventoryRow carries the copy columns. Book holds a book id, or an index
// number when it is not numeric. LastBorrowedOn and LastBorrowedBy are
// informational only.
type InventoryRow struct {
	Line           int
	Book           string
	Status         string
	Location       string
	LastBorrowedOn string
	LastBorrowedBy string
}

type ReaderRow struct {
	Line           int
	Username       string
	FirstName      string
	LastName       string
	Email          string
	Password       string
	IsStaff        string
	MaxBorrowLimit string
}

// ParseBooks validates data and returns one BookRow per non-blank line.
func ParseBooks(data string) ([]BookRow, error) {
	rows, err := validated(Books, data)
	if err != nil {
		return nil, err
	}
	out := make([]BookRow, 0, len(rows))
	for _, r := range rows {
		f := r.fields
		out = append(out, BookRow{
			Line:           r.line,
			Title:          f[0],
			Author:         f[1],
			Publisher:      f[2],
			PublishDate:    f[3],
			IndexNumber:    f[4],
			CategoryNumber: f[5],
			Description:    f[6],
		})
	}
	return out, nil
}

func ParseCategories(data string) ([]CategoryRow, error) {
	rows, err := validated(Categories, data)
	if err != nil {
		return nil, err
	}
	out := make([]CategoryRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, CategoryRow{Line: r.line, CategoryNumber: r.fields[0], Name: r.fields[1]})
	}
	return out, nil
}

func ParseInventory(data string) ([]InventoryRow, error) {
	rows, err := validated(Inventory, data)
	if err != nil {
		return nil, err
	}
	out := make([]InventoryRow, 0, len(rows))
	for _, r := range rows {
		f := r.fields
		out = append(out, InventoryRow{
			Line:           r.line,
			Book:           f[0],
			Status:         f[1],
			Location:       f[2],
			LastBorrowedOn: fieldAt(f, 3),
			LastBorrowedBy: fieldAt(f, 4),
		})
	}
	return out, nil
}

func ParseReaders(data string) ([]ReaderRow, error) {
	rows, err := validated(Readers, data)
	if err != nil {
		return nil, err
	}
	out := make([]ReaderRow, 0, len(rows))
	for _, r := range rows {
		f := r.fields
		out = append(out, ReaderRow{
			Line:           r.line,
			Username:       f[0],
			FirstName:      f[1],
			LastName:       f[2],
			Email:          f[3],
			Password:       f[4],
			IsStaff:        f[5],
			MaxBorrowLimit: f[6],
		})
	}
	return out, nil
}

func validated(kind Kind, data string) ([]row, error) {
	if ok, reason := Validate(kind, data); !ok {
		return nil, domain.NewError(domain.KindValidation, reason)
	}
	return splitRows(data)
}
