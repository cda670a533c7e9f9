package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"libmgmt/pkg/domain"
)

const migrateLockID int64 = 51170917

type GormStoreOptions struct {
	LogLevel     gormlogger.LogLevel
	MaxOpenConns int
}

type GormStoreOption func(*GormStoreOptions)

// WithLogLevel overrides the gorm logger level (default Warn).
func WithLogLevel(level gormlogger.LogLevel) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.LogLevel = level
	}
}

// WithMaxOpenConns caps the Postgres connection pool. SQLite always uses a
// single connection.
func WithMaxOpenConns(n int) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.MaxOpenConns = n
	}
}

// GormStore implements Store using GORM on Postgres or SQLite.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB selected by dsn and runs auto-migrations.
// "sqlite:<path>" and "file:<path>" DSNs open SQLite; anything else is
// handed to the Postgres driver.
func NewGormStore(dsn string, options ...GormStoreOption) (*GormStore, error) {
	opts := GormStoreOptions{LogLevel: gormlogger.Warn}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}

	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  opts.LogLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	dialector, isPostgres := openDialector(dsn)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLog,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	switch {
	case !isPostgres:
		sqlDB.SetMaxOpenConns(1)
	case opts.MaxOpenConns > 0:
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}

	migrate := func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(allModels()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}
	if isPostgres {
		err = withMigrationLock(db, migrate)
	} else {
		err = migrate(db)
	}
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func openDialector(dsn string) (gorm.Dialector, bool) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case strings.HasPrefix(dsn, "sqlite:"):
		return sqlite.Open(strings.TrimPrefix(dsn, "sqlite:")), false
	case strings.HasPrefix(dsn, "file:"):
		return sqlite.Open(dsn), false
	default:
		return postgres.Open(dsn), true
	}
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// Ping checks database connectivity.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn inside one transaction. The Store passed to fn must be used
// for every statement that belongs to the transaction.
func (s *GormStore) WithTx(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *GormStore) forUpdate(ctx context.Context) *gorm.DB {
	return s.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
}

// first loads one row into dest and folds gorm.ErrRecordNotFound into a
// false return.
func first(q *gorm.DB, dest any, conds ...any) (bool, error) {
	if err := q.First(dest, conds...).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CreateUser inserts a new account and sets its ID.
func (s *GormStore) CreateUser(ctx context.Context, u *domain.User) error {
	model := userToModel(*u)
	if err := s.conn(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUsernameTaken
		}
		return err
	}
	*u = userFromModel(model)
	return nil
}

// UpdateUser writes the mutable account fields.
func (s *GormStore) UpdateUser(ctx context.Context, u domain.User) error {
	return s.conn(ctx).Model(&UserModel{}).
		Where("id = ?", u.ID).
		Updates(map[string]any{
			"first_name":    u.FirstName,
			"last_name":     u.LastName,
			"email":         u.Email,
			"password_hash": u.PasswordHash,
			"role":          string(u.Role),
			"status":        string(u.Status),
			"updated_at":    time.Now().UTC(),
		}).Error
}

// GetUserByID returns an account by ID.
func (s *GormStore) GetUserByID(ctx context.Context, id uint) (domain.User, bool, error) {
	var model UserModel
	ok, err := first(s.conn(ctx), &model, "id = ?", id)
	if !ok {
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByUsername looks up an account by username.
func (s *GormStore) GetUserByUsername(ctx context.Context, username string) (domain.User, bool, error) {
	var model UserModel
	ok, err := first(s.conn(ctx), &model, "username = ?", username)
	if !ok {
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// HasUsername checks if username is taken.
func (s *GormStore) HasUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	if err := s.conn(ctx).Model(&UserModel{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateReader inserts the reader profile of an existing account.
func (s *GormStore) CreateReader(ctx context.Context, r *domain.Reader) error {
	model := ReaderModel{UserID: r.UserID, MaxBorrowLimit: r.MaxBorrowLimit}
	if err := s.conn(ctx).Omit(clause.Associations).Create(&model).Error; err != nil {
		return err
	}
	r.ID = model.ID
	return nil
}

func (s *GormStore) UpdateReaderLimit(ctx context.Context, id uint, limit int) error {
	return s.conn(ctx).Model(&ReaderModel{}).Where("id = ?", id).Update("max_borrow_limit", limit).Error
}

// GetReader returns a reader with its account.
func (s *GormStore) GetReader(ctx context.Context, id uint) (domain.Reader, bool, error) {
	var model ReaderModel
	ok, err := first(s.conn(ctx).Preload("User"), &model, "id = ?", id)
	if !ok {
		return domain.Reader{}, false, err
	}
	return readerFromModel(model), true, nil
}

func (s *GormStore) GetReaderByUserID(ctx context.Context, userID uint) (domain.Reader, bool, error) {
	var model ReaderModel
	ok, err := first(s.conn(ctx).Preload("User"), &model, "user_id = ?", userID)
	if !ok {
		return domain.Reader{}, false, err
	}
	return readerFromModel(model), true, nil
}

// LockReader loads a reader with SELECT ... FOR UPDATE. Only meaningful
// inside WithTx.
func (s *GormStore) LockReader(ctx context.Context, id uint) (domain.Reader, bool, error) {
	var model ReaderModel
	ok, err := first(s.forUpdate(ctx), &model, "id = ?", id)
	if !ok {
		return domain.Reader{}, false, err
	}
	var user UserModel
	if ok, err := first(s.conn(ctx), &user, "id = ?", model.UserID); !ok {
		return domain.Reader{}, false, err
	}
	model.User = user
	return readerFromModel(model), true, nil
}

// AppendOperationLog appends one audit entry.
func (s *GormStore) AppendOperationLog(ctx context.Context, entry *domain.OperationLog) error {
	model := operationLogToModel(*entry)
	if model.Timestamp.IsZero() {
		model.Timestamp = time.Now().UTC()
	}
	if err := s.conn(ctx).Omit(clause.Associations).Create(&model).Error; err != nil {
		return err
	}
	entry.ID = model.ID
	entry.Timestamp = model.Timestamp
	return nil
}
