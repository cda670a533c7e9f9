package store

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"libmgmt/pkg/domain"
)

// searchSpec describes the rows and text columns one keyword search covers.
// Columns are SQL expressions that evaluate to text.
type searchSpec struct {
	table   string
	joins   []string
	columns []string
}

var (
	bookSearch = searchSpec{
		table: "book_models",
		joins: []string{
			"LEFT JOIN category_models ON category_models.id = book_models.category_id",
		},
		columns: []string{
			"book_models.title",
			"book_models.author",
			"book_models.publisher",
			"book_models.publish_date",
			"book_models.index_number",
			"category_models.name",
		},
	}
	readerSearch = searchSpec{
		table: "reader_models",
		joins: []string{
			"JOIN user_models ON user_models.id = reader_models.user_id",
		},
		columns: []string{
			"user_models.username",
			"user_models.first_name",
			"user_models.last_name",
			"user_models.email",
		},
	}
	categorySearch = searchSpec{
		table: "category_models",
		columns: []string{
			"category_models.category_number",
			"category_models.name",
		},
	}
	inventorySearch = searchSpec{
		table: "inventory_models",
		joins: []string{
			"JOIN book_models ON book_models.id = inventory_models.book_id",
			"LEFT JOIN category_models ON category_models.id = book_models.category_id",
		},
		columns: []string{
			"book_models.title",
			"book_models.author",
			"book_models.publisher",
			"book_models.publish_date",
			"book_models.index_number",
			"category_models.category_number",
			"category_models.name",
			"CAST(inventory_models.status AS TEXT)",
			"inventory_models.location",
		},
	}
	borrowRecordSearch = searchSpec{
		table: "borrow_record_models",
		joins: []string{
			"JOIN reader_models ON reader_models.id = borrow_record_models.reader_id",
			"JOIN user_models ON user_models.id = reader_models.user_id",
			"JOIN inventory_models ON inventory_models.id = borrow_record_models.inventory_id",
			"JOIN book_models ON book_models.id = inventory_models.book_id",
		},
		columns: []string{
			"user_models.username",
			"user_models.email",
			"book_models.title",
			"book_models.index_number",
			"CAST(borrow_record_models.borrow_date AS TEXT)",
			"CAST(borrow_record_models.return_date AS TEXT)",
			"CAST(borrow_record_models.status AS TEXT)",
		},
	}
	operationLogSearch = searchSpec{
		table: "operation_log_models",
		joins: []string{
			"LEFT JOIN user_models ON user_models.id = operation_log_models.operator_id",
		},
		columns: []string{
			"user_models.username",
			"user_models.email",
			"operation_log_models.content",
			"operation_log_models.operation_type",
			"CAST(operation_log_models.timestamp AS TEXT)",
		},
	}
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// keywordClause ORs a case-insensitive substring match of every token against
// every column. It returns "" when any token is empty, since an empty token
// matches all rows.
func keywordClause(tokens []string, columns []string) (string, []any) {
	if len(tokens) == 0 {
		return "", nil
	}
	groups := make([]string, 0, len(tokens))
	args := make([]any, 0, len(tokens)*len(columns))
	for _, tok := range tokens {
		if tok == "" {
			return "", nil
		}
		pattern := "%" + likeEscaper.Replace(strings.ToLower(tok)) + "%"
		parts := make([]string, len(columns))
		for i, col := range columns {
			parts[i] = "LOWER(" + col + `) LIKE ? ESCAPE '\'`
			args = append(args, pattern)
		}
		groups = append(groups, "("+strings.Join(parts, " OR ")+")")
	}
	return "(" + strings.Join(groups, " OR ") + ")", args
}

// pageIDs counts the matching rows and returns the IDs on the requested page
// in ascending order. filter, when set, narrows the rows further.
func (s *GormStore) pageIDs(ctx context.Context, spec searchSpec, q SearchQuery, filter func(*gorm.DB) *gorm.DB) ([]uint, int64, error) {
	base := func() *gorm.DB {
		tx := s.conn(ctx).Table(spec.table)
		for _, j := range spec.joins {
			tx = tx.Joins(j)
		}
		if expr, args := keywordClause(q.Tokens, spec.columns); expr != "" {
			tx = tx.Where(expr, args...)
		}
		if filter != nil {
			tx = filter(tx)
		}
		return tx
	}
	var count int64
	if err := base().Count(&count).Error; err != nil {
		return nil, 0, err
	}
	if count == 0 {
		return nil, 0, nil
	}
	var ids []uint
	if err := base().
		Order(spec.table + ".id ASC").
		Offset(q.Offset()).
		Limit(domain.PageSize).
		Pluck(spec.table+".id", &ids).Error; err != nil {
		return nil, 0, err
	}
	return ids, count, nil
}

func (s *GormStore) SearchBooks(ctx context.Context, q SearchQuery) ([]domain.BookListing, int64, error) {
	ids, count, err := s.pageIDs(ctx, bookSearch, q, nil)
	if err != nil || len(ids) == 0 {
		return []domain.BookListing{}, count, err
	}
	var models []BookModel
	if err := s.conn(ctx).Preload("Category").Where("id IN ?", ids).Order("id ASC").Find(&models).Error; err != nil {
		return nil, 0, err
	}
	var copies []struct {
		BookID uint
		Copies int64
	}
	if err := s.conn(ctx).Model(&InventoryModel{}).
		Select("book_id, COUNT(*) AS copies").
		Where("book_id IN ?", ids).
		Group("book_id").
		Scan(&copies).Error; err != nil {
		return nil, 0, err
	}
	perBook := make(map[uint]int64, len(copies))
	for _, c := range copies {
		perBook[c.BookID] = c.Copies
	}
	res := make([]domain.BookListing, 0, len(models))
	for _, m := range models {
		res = append(res, domain.BookListing{Book: bookFromModel(m), InventoryCount: perBook[m.ID]})
	}
	return res, count, nil
}

func (s *GormStore) SearchReaders(ctx context.Context, q SearchQuery) ([]domain.Reader, int64, error) {
	ids, count, err := s.pageIDs(ctx, readerSearch, q, nil)
	if err != nil || len(ids) == 0 {
		return []domain.Reader{}, count, err
	}
	var models []ReaderModel
	if err := s.conn(ctx).Preload("User").Where("id IN ?", ids).Order("id ASC").Find(&models).Error; err != nil {
		return nil, 0, err
	}
	res := make([]domain.Reader, 0, len(models))
	for _, m := range models {
		res = append(res, readerFromModel(m))
	}
	return res, count, nil
}

func (s *GormStore) SearchCategories(ctx context.Context, q SearchQuery) ([]domain.Category, int64, error) {
	ids, count, err := s.pageIDs(ctx, categorySearch, q, nil)
	if err != nil || len(ids) == 0 {
		return []domain.Category{}, count, err
	}
	var models []CategoryModel
	if err := s.conn(ctx).Where("id IN ?", ids).Order("id ASC").Find(&models).Error; err != nil {
		return nil, 0, err
	}
	res := make([]domain.Category, 0, len(models))
	for _, m := range models {
		res = append(res, categoryFromModel(m))
	}
	return res, count, nil
}

func (s *GormStore) SearchInventories(ctx context.Context, q SearchQuery) ([]domain.Inventory, int64, error) {
	ids, count, err := s.pageIDs(ctx, inventorySearch, q, nil)
	if err != nil || len(ids) == 0 {
		return []domain.Inventory{}, count, err
	}
	var models []InventoryModel
	if err := s.conn(ctx).Preload("Book.Category").Where("id IN ?", ids).Order("id ASC").Find(&models).Error; err != nil {
		return nil, 0, err
	}
	res := make([]domain.Inventory, 0, len(models))
	for _, m := range models {
		res = append(res, inventoryFromModel(m))
	}
	return res, count, nil
}

// SearchBorrowRecords searches borrow records. A non-zero readerID restricts
// the search to that reader's records.
func (s *GormStore) SearchBorrowRecords(ctx context.Context, readerID uint, q SearchQuery) ([]domain.BorrowRecord, int64, error) {
	var filter func(*gorm.DB) *gorm.DB
	if readerID != 0 {
		filter = func(tx *gorm.DB) *gorm.DB {
			return tx.Where("borrow_record_models.reader_id = ?", readerID)
		}
	}
	ids, count, err := s.pageIDs(ctx, borrowRecordSearch, q, filter)
	if err != nil || len(ids) == 0 {
		return []domain.BorrowRecord{}, count, err
	}
	var models []BorrowRecordModel
	if err := withRecordRelations(s.conn(ctx)).Where("id IN ?", ids).Order("id ASC").Find(&models).Error; err != nil {
		return nil, 0, err
	}
	res := make([]domain.BorrowRecord, 0, len(models))
	for _, m := range models {
		res = append(res, borrowRecordFromModel(m))
	}
	return res, count, nil
}

func (s *GormStore) SearchOperationLogs(ctx context.Context, q SearchQuery) ([]domain.OperationLog, int64, error) {
	ids, count, err := s.pageIDs(ctx, operationLogSearch, q, nil)
	if err != nil || len(ids) == 0 {
		return []domain.OperationLog{}, count, err
	}
	var models []OperationLogModel
	if err := s.conn(ctx).Preload("Operator").Where("id IN ?", ids).Order("id ASC").Find(&models).Error; err != nil {
		return nil, 0, err
	}
	res := make([]domain.OperationLog, 0, len(models))
	for _, m := range models {
		res = append(res, operationLogFromModel(m))
	}
	return res, count, nil
}
