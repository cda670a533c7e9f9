package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"libmgmt/internal/util"
	"libmgmt/pkg/bulkcsv"
	"libmgmt/pkg/domain"
	"libmgmt/pkg/store"
)

// ImportResult reports a committed bulk import.
type ImportResult struct {
	Kind bulkcsv.Kind
	Rows int
	// ArchiveKey is empty when no archive is configured or archiving failed.
	ArchiveKey string
}

// Import validates an uploaded CSV file and inserts every row in one
// transaction. Any failing row rolls back the whole file.
func (a *App) Import(ctx context.Context, actor domain.User, kind bulkcsv.Kind, filename string, data []byte) (res ImportResult, err error) {
	if err := requireAdmin(actor); err != nil {
		return ImportResult{}, err
	}
	if !strings.HasSuffix(strings.ToLower(strings.TrimSpace(filename)), ".csv") {
		return ImportResult{}, ErrFileType
	}
	ctx, span := a.startSpan(ctx, "library.import",
		attribute.String("import.kind", string(kind)),
		attribute.Int("import.bytes", len(data)),
	)
	defer func() { endSpan(span, err) }()

	text := string(data)
	var changes []change
	err = a.store.WithTx(ctx, func(tx store.Store) error {
		var err error
		switch kind {
		case bulkcsv.Books:
			changes, err = a.importBooks(ctx, tx, text)
		case bulkcsv.Categories:
			changes, err = a.importCategories(ctx, tx, text)
		case bulkcsv.Inventory:
			changes, err = a.importInventory(ctx, tx, text)
		case bulkcsv.Readers:
			changes, err = a.importReaders(ctx, tx, text)
		default:
			err = domain.Errorf(domain.KindValidation, "unknown upload kind %q", kind)
		}
		return err
	})
	if err != nil {
		return ImportResult{}, err
	}
	res = ImportResult{Kind: kind, Rows: rowCount(changes, kind)}
	span.SetAttributes(attribute.Int("import.rows", res.Rows))

	a.record(ctx, actor, changes...)
	res.ArchiveKey = a.archiveImport(ctx, kind, data)
	return res, nil
}

func (a *App) importBooks(ctx context.Context, tx store.Store, text string) ([]change, error) {
	rows, err := bulkcsv.ParseBooks(text)
	if err != nil {
		return nil, err
	}
	var changes []change
	for _, r := range rows {
		_, created, err := createBook(ctx, tx, BookInput{
			Title:          r.Title,
			Author:         r.Author,
			Publisher:      r.Publisher,
			PublishDate:    r.PublishDate,
			IndexNumber:    r.IndexNumber,
			CategoryNumber: r.CategoryNumber,
			Description:    r.Description,
		})
		if err != nil {
			return nil, atRow(err, r.Line)
		}
		changes = append(changes, created...)
	}
	return changes, nil
}

func (a *App) importCategories(ctx context.Context, tx store.Store, text string) ([]change, error) {
	rows, err := bulkcsv.ParseCategories(text)
	if err != nil {
		return nil, err
	}
	changes := make([]change, 0, len(rows))
	for _, r := range rows {
		c, err := createCategory(ctx, tx, CategoryInput{CategoryNumber: r.CategoryNumber, Name: r.Name})
		if err != nil {
			return nil, atRow(err, r.Line)
		}
		changes = append(changes, categoryChange(domain.OpCreate, c))
	}
	return changes, nil
}

// importInventory resolves each row's book by id, or by index number when the
// first column is not numeric. The last borrowed pair of a row is
// informational and not stored.
func (a *App) importInventory(ctx context.Context, tx store.Store, text string) ([]change, error) {
	rows, err := bulkcsv.ParseInventory(text)
	if err != nil {
		return nil, err
	}
	changes := make([]change, 0, len(rows))
	for _, r := range rows {
		book, ok, err := findImportBook(ctx, tx, r.Book)
		if err != nil {
			return nil, fmt.Errorf("row %d: fetch book: %w", r.Line, err)
		}
		if !ok {
			return nil, atRow(ErrBookNotFound, r.Line)
		}
		status, err := strconv.Atoi(r.Status)
		if err != nil {
			return nil, atRow(ErrInvalidStatus, r.Line)
		}
		inv, err := createInventory(ctx, tx, book, domain.InventoryStatus(status), r.Location)
		if err != nil {
			return nil, atRow(err, r.Line)
		}
		changes = append(changes, inventoryChange(domain.OpCreate, inv))
	}
	return changes, nil
}

func findImportBook(ctx context.Context, tx store.Store, ref string) (domain.Book, bool, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.ParseUint(ref, 10, 64); err == nil {
		return tx.GetBook(ctx, uint(id))
	}
	return tx.FindBookByIndexNumber(ctx, ref)
}

// importReaders creates one account per row. is_staff "1" makes the account
// staff; an empty max_borrow_limit means the default quota.
func (a *App) importReaders(ctx context.Context, tx store.Store, text string) ([]change, error) {
	rows, err := bulkcsv.ParseReaders(text)
	if err != nil {
		return nil, err
	}
	var changes []change
	for _, r := range rows {
		limit := domain.DefaultMaxBorrowLimit
		if v := strings.TrimSpace(r.MaxBorrowLimit); v != "" {
			limit, err = strconv.Atoi(v)
			if err != nil {
				return nil, atRow(ErrInvalidLimit, r.Line)
			}
		}
		role := domain.RoleReader
		if strings.TrimSpace(r.IsStaff) == "1" {
			role = domain.RoleAdmin
		}
		_, created, err := a.createAccount(ctx, tx, AccountInput{
			Username:  r.Username,
			FirstName: r.FirstName,
			LastName:  r.LastName,
			Email:     r.Email,
			Password:  r.Password,
		}, role, limit)
		if err != nil {
			return nil, atRow(err, r.Line)
		}
		changes = append(changes, created...)
	}
	return changes, nil
}

func (a *App) archiveImport(ctx context.Context, kind bulkcsv.Kind, data []byte) string {
	if a.archive == nil {
		return ""
	}
	key := fmt.Sprintf("imports/%s/%s.csv", kind, util.NewID())
	if err := a.archive.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "text/csv"); err != nil {
		logger(ctx).Warn("import archive failed", "kind", string(kind), "key", key, "err", err)
		return ""
	}
	return key
}

// atRow appends the file line to a classified error.
func atRow(err error, line int) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return domain.Errorf(de.Kind, "%s (row %d)", de.Message, line)
	}
	return fmt.Errorf("row %d: %w", line, err)
}

// rowCount counts the imported rows. Auto-created categories and the
// account half of a reader are not rows of their own.
func rowCount(changes []change, kind bulkcsv.Kind) int {
	entity := map[bulkcsv.Kind]string{
		bulkcsv.Books:      entityBook,
		bulkcsv.Categories: entityCategory,
		bulkcsv.Inventory:  entityInventory,
		bulkcsv.Readers:    entityReader,
	}[kind]
	n := 0
	for _, c := range changes {
		if c.entity == entity {
			n++
		}
	}
	return n
}
