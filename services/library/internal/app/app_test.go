package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"libmgmt/pkg/domain"
	"libmgmt/pkg/events"
	"libmgmt/pkg/store"
)

const adminPassword = "Adm1n!Password"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type memoryArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryArchive) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = buf.Bytes()
	return nil
}

type fixture struct {
	app     *App
	store   *store.GormStore
	clock   *testClock
	events  *recordingPublisher
	archive *memoryArchive
	admin   domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &testClock{now: time.Now().UTC()}
	f := buildFixture(t, sqliteDSN(t), clock.Now, nil)
	f.clock = clock
	return f
}

func sqliteDSN(t *testing.T) string {
	return "sqlite:" + filepath.Join(t.TempDir(), "library.db") + "?_busy_timeout=5000&_foreign_keys=on"
}

// postgresDSN points at a fresh schema on LIBRARY_TEST_POSTGRES_DSN, a
// postgres:// URL. The test is skipped when the variable is unset.
func postgresDSN(t *testing.T) string {
	t.Helper()
	base := strings.TrimSpace(os.Getenv("LIBRARY_TEST_POSTGRES_DSN"))
	if base == "" {
		t.Skip("LIBRARY_TEST_POSTGRES_DSN not set")
	}
	schema := "libtest_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	admin, err := gorm.Open(postgres.Open(base), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, admin.Exec("CREATE SCHEMA " + schema).Error)
	t.Cleanup(func() {
		_ = admin.Exec("DROP SCHEMA " + schema + " CASCADE").Error
		if sqlDB, err := admin.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "search_path=" + schema
}

// buildFixture wires the app and its session store to the same clock. wrap,
// when set, replaces the session store the app sees.
func buildFixture(t *testing.T, dsn string, now func() time.Time, wrap func(store.SessionStore) store.SessionStore) *fixture {
	t.Helper()
	s, err := store.NewGormStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	var sessions store.SessionStore
	sessions, err = store.NewJWTSessionStore("0123456789abcdef0123456789abcdef", time.Hour, store.NewMemoryTokenRevoker(), store.JWTOptions{Now: now})
	require.NoError(t, err)
	if wrap != nil {
		sessions = wrap(sessions)
	}

	f := &fixture{
		store:   s,
		events:  &recordingPublisher{},
		archive: &memoryArchive{},
	}
	f.app, err = New(Config{
		Store:    s,
		Sessions: sessions,
		Events:   f.events,
		Archive:  f.archive,
		Now:      now,
	})
	require.NoError(t, err)

	admin, err := f.app.CreateAdmin(context.Background(), AccountInput{
		Username: "root",
		Email:    "root@example.com",
		Password: adminPassword,
	})
	require.NoError(t, err)
	f.admin = admin.User
	return f
}

func (f *fixture) addReader(t *testing.T, username string, limit int) domain.Reader {
	t.Helper()
	r, err := f.app.AddReader(context.Background(), f.admin, ReaderInput{
		AccountInput:   AccountInput{Username: username, Email: username + "@example.com", Password: "pw"},
		MaxBorrowLimit: &limit,
	})
	require.NoError(t, err)
	return r
}

func (f *fixture) addBook(t *testing.T, title, author, index string) domain.Book {
	t.Helper()
	b, err := f.app.CreateBook(context.Background(), f.admin, BookInput{
		Title:          title,
		Author:         author,
		IndexNumber:    index,
		CategoryNumber: "FIC",
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) addCopy(t *testing.T, bookID uint, status domain.InventoryStatus) domain.Inventory {
	t.Helper()
	inv, err := f.app.CreateInventory(context.Background(), f.admin, InventoryInput{BookID: bookID, Status: status, Location: "Shelf A"})
	require.NoError(t, err)
	return inv
}

func assertKind(t *testing.T, err error, target error, msg string) {
	t.Helper()
	require.Error(t, err)
	assert.Truef(t, errors.Is(err, target), "error %q has kind %q", err, domain.KindOf(err))
	if msg != "" {
		assert.Equal(t, msg, err.Error())
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestRegisterLoginAndLogout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, _, err := f.app.Register(ctx, AccountInput{Username: "weak", Email: "weak@example.com", Password: "short"})
	assertKind(t, err, domain.ErrValidation, "")

	reader, token, err := f.app.Register(ctx, AccountInput{
		Username:  "alice",
		FirstName: "Alice",
		LastName:  "Liddell",
		Email:     "alice@example.com",
		Password:  "Wonderl4nd!Rabbit",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultMaxBorrowLimit, reader.MaxBorrowLimit)
	assert.Equal(t, domain.RoleReader, reader.User.Role)

	user, ok := f.app.UserFromToken(ctx, token)
	require.True(t, ok)
	assert.Equal(t, reader.User.ID, user.ID)

	_, _, err = f.app.Register(ctx, AccountInput{Username: "alice", Email: "a2@example.com", Password: "Wonderl4nd!Rabbit"})
	assertKind(t, err, domain.ErrIntegrity, "Username already exists")

	_, _, err = f.app.Login(ctx, "alice", "wrong")
	assertKind(t, err, domain.ErrUnauthenticated, "Invalid username or password")
	_, _, err = f.app.Login(ctx, "nobody", "wrong")
	assertKind(t, err, domain.ErrUnauthenticated, "Invalid username or password")

	_, token2, err := f.app.Login(ctx, " alice ", "Wonderl4nd!Rabbit")
	require.NoError(t, err)
	require.NoError(t, f.app.Logout(token2))
	_, ok = f.app.UserFromToken(ctx, token2)
	assert.False(t, ok)
	_, ok = f.app.UserFromToken(ctx, token)
	assert.True(t, ok)
}

func TestRegisterRejectsLongFields(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.app.Register(context.Background(), AccountInput{
		Username: "averyveryverylongusername",
		Email:    "x@example.com",
		Password: "Wonderl4nd!Rabbit",
	})
	assertKind(t, err, domain.ErrValidation, "Username too long")
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	reader, token, err := f.app.Register(ctx, AccountInput{Username: "bob", Email: "bob@example.com", Password: "Initial!Passw0rd"})
	require.NoError(t, err)

	err = f.app.ChangePassword(ctx, reader.User, "not-it", "Another!Passw0rd")
	assertKind(t, err, domain.ErrValidation, "Current password is incorrect")
	err = f.app.ChangePassword(ctx, reader.User, "Initial!Passw0rd", "Initial!Passw0rd")
	assertKind(t, err, domain.ErrValidation, "New password must differ from current password")

	f.clock.Advance(2 * time.Second)
	require.NoError(t, f.app.ChangePassword(ctx, reader.User, "Initial!Passw0rd", "Another!Passw0rd"))
	_, ok := f.app.UserFromToken(ctx, token)
	assert.False(t, ok)

	_, _, err = f.app.Login(ctx, "bob", "Initial!Passw0rd")
	assertKind(t, err, domain.ErrUnauthenticated, "")

	f.clock.Advance(time.Second)
	_, fresh, err := f.app.Login(ctx, "bob", "Another!Passw0rd")
	require.NoError(t, err)
	_, ok = f.app.UserFromToken(ctx, fresh)
	assert.True(t, ok)
}

func TestLoginRightAfterPasswordChangeIsAccepted(t *testing.T) {
	ctx := context.Background()
	f := buildFixture(t, sqliteDSN(t), time.Now, nil)
	reader, _, err := f.app.Register(ctx, AccountInput{Username: "bob", Email: "bob@example.com", Password: "Initial!Passw0rd"})
	require.NoError(t, err)

	passwords := []string{"Initial!Passw0rd", "Another!Passw0rd"}
	for i := 0; i < 5; i++ {
		current, next := passwords[i%2], passwords[(i+1)%2]
		require.NoError(t, f.app.ChangePassword(ctx, reader.User, current, next))
		_, token, err := f.app.Login(ctx, "bob", next)
		require.NoError(t, err)
		_, ok := f.app.UserFromToken(ctx, token)
		require.True(t, ok, "login %d right after password change was rejected", i)
	}
}

type brokenRevocationSessions struct {
	store.SessionStore
}

func (brokenRevocationSessions) RevokeUserSessions(uint, time.Time) error {
	return errors.New("revoker unavailable")
}

func TestPasswordChangeStandsWhenRevocationFails(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Now().UTC()}
	f := buildFixture(t, sqliteDSN(t), clock.Now, func(s store.SessionStore) store.SessionStore {
		return brokenRevocationSessions{SessionStore: s}
	})
	reader, _, err := f.app.Register(ctx, AccountInput{Username: "bob", Email: "bob@example.com", Password: "Initial!Passw0rd"})
	require.NoError(t, err)

	require.NoError(t, f.app.ChangePassword(ctx, reader.User, "Initial!Passw0rd", "Another!Passw0rd"))
	_, _, err = f.app.Login(ctx, "bob", "Another!Passw0rd")
	require.NoError(t, err)

	reset := "reset-pw"
	_, err = f.app.EditReader(ctx, f.admin, reader.ID, ReaderUpdate{Password: &reset})
	require.NoError(t, err)
	_, _, err = f.app.Login(ctx, "bob", "reset-pw")
	require.NoError(t, err)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	reader := f.addReader(t, "carol", 3)

	first := "Carol"
	email := " carol@library.test "
	user, err := f.app.UpdateProfile(ctx, reader.User, ProfileUpdate{FirstName: &first, Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "Carol", user.FirstName)
	assert.Equal(t, "carol@library.test", user.Email)

	long := "Bartholomew-Maximilian-Augustus"
	_, err = f.app.UpdateProfile(ctx, reader.User, ProfileUpdate{LastName: &long})
	assertKind(t, err, domain.ErrValidation, "Last name too long")
}

func TestAdminOperationsRequireStaff(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	reader := f.addReader(t, "dave", 3)

	_, err := f.app.CreateBook(ctx, reader.User, BookInput{Title: "x"})
	assertKind(t, err, domain.ErrPermission, "Permission denied")
	_, err = f.app.AddReader(ctx, reader.User, ReaderInput{AccountInput: AccountInput{Username: "eve", Password: "pw"}})
	assertKind(t, err, domain.ErrPermission, "")
	err = f.app.DeleteCategory(ctx, reader.User, 1)
	assertKind(t, err, domain.ErrPermission, "")
}

func TestEditReader(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	reader := f.addReader(t, "erin", 2)

	limit := 4
	staff := true
	password := "reset"
	updated, err := f.app.EditReader(ctx, f.admin, reader.ID, ReaderUpdate{
		IsStaff:        &staff,
		MaxBorrowLimit: &limit,
		Password:       &password,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.MaxBorrowLimit)
	assert.Equal(t, domain.RoleAdmin, updated.User.Role)

	_, _, err = f.app.Login(ctx, "erin", "reset")
	require.NoError(t, err)

	negative := -1
	_, err = f.app.EditReader(ctx, f.admin, reader.ID, ReaderUpdate{MaxBorrowLimit: &negative})
	assertKind(t, err, domain.ErrValidation, "Invalid max borrow limit")

	self, err := f.app.Profile(ctx, f.admin)
	require.NoError(t, err)
	demote := false
	_, err = f.app.EditReader(ctx, f.admin, self.ID, ReaderUpdate{IsStaff: &demote})
	assertKind(t, err, domain.ErrStateConflict, "Cannot change own role")

	_, err = f.app.EditReader(ctx, f.admin, 9999, ReaderUpdate{})
	assertKind(t, err, domain.ErrNotFound, "Reader not found")
}

func TestDisableAndEnableReader(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	reader := f.addReader(t, "frank", 2)
	_, token, err := f.app.Login(ctx, "frank", "pw")
	require.NoError(t, err)

	f.clock.Advance(2 * time.Second)
	disabled, err := f.app.DisableReader(ctx, f.admin, reader.ID)
	require.NoError(t, err)
	assert.False(t, disabled.User.IsActive())
	_, ok := f.app.UserFromToken(ctx, token)
	assert.False(t, ok)
	_, _, err = f.app.Login(ctx, "frank", "pw")
	assertKind(t, err, domain.ErrUnauthenticated, "")

	_, err = f.app.DisableReader(ctx, f.admin, reader.ID)
	assertKind(t, err, domain.ErrStateConflict, "User already disabled")

	enabled, err := f.app.EnableReader(ctx, f.admin, reader.ID)
	require.NoError(t, err)
	assert.True(t, enabled.User.IsActive())
	_, err = f.app.EnableReader(ctx, f.admin, reader.ID)
	assertKind(t, err, domain.ErrStateConflict, "User already enabled")

	f.clock.Advance(time.Second)
	_, fresh, err := f.app.Login(ctx, "frank", "pw")
	require.NoError(t, err)
	_, ok = f.app.UserFromToken(ctx, fresh)
	assert.True(t, ok)

	self, err := f.app.Profile(ctx, f.admin)
	require.NoError(t, err)
	_, err = f.app.DisableReader(ctx, f.admin, self.ID)
	assertKind(t, err, domain.ErrStateConflict, "Cannot disable yourself")
}

type failingLogStore struct {
	store.Store
}

func (failingLogStore) AppendOperationLog(context.Context, *domain.OperationLog) error {
	return errors.New("log table unavailable")
}

func TestAuditFailureDoesNotFailMutation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sessions, err := store.NewJWTSessionStore("0123456789abcdef0123456789abcdef", time.Hour, nil, store.JWTOptions{})
	require.NoError(t, err)
	a, err := New(Config{Store: failingLogStore{Store: f.store}, Sessions: sessions})
	require.NoError(t, err)

	c, err := a.CreateCategory(ctx, f.admin, CategoryInput{CategoryNumber: "POE", Name: "Poetry"})
	require.NoError(t, err)
	assert.NotZero(t, c.ID)
}

// staleUsernameStore answers the username pre-check as if a concurrent
// registration had not committed yet.
type staleUsernameStore struct {
	store.Store
}

func (s staleUsernameStore) WithTx(ctx context.Context, fn func(store.Store) error) error {
	return s.Store.WithTx(ctx, func(tx store.Store) error {
		return fn(staleUsernameStore{Store: tx})
	})
}

func (staleUsernameStore) HasUsername(context.Context, string) (bool, error) {
	return false, nil
}

func TestRegisterDuplicateRaceMapsToIntegrity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sessions, err := store.NewJWTSessionStore("0123456789abcdef0123456789abcdef", time.Hour, nil, store.JWTOptions{})
	require.NoError(t, err)
	a, err := New(Config{Store: staleUsernameStore{Store: f.store}, Sessions: sessions})
	require.NoError(t, err)

	_, _, err = a.Register(ctx, AccountInput{Username: "root", Email: "other@example.com", Password: "Initial!Passw0rd"})
	assertKind(t, err, domain.ErrIntegrity, "Username already exists")
}

func TestAuditRecordsOperator(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c, err := f.app.CreateCategory(ctx, f.admin, CategoryInput{CategoryNumber: "HIS", Name: "History"})
	require.NoError(t, err)

	page, err := f.app.SearchLogs(ctx, "Category", 1)
	require.NoError(t, err)
	require.NotEmpty(t, page.Items)
	var found bool
	for _, entry := range page.Items {
		if entry.Content == fmt.Sprintf("create a Category instance: #%d", c.ID) {
			found = true
			require.NotNil(t, entry.OperatorID)
			assert.Equal(t, f.admin.ID, *entry.OperatorID)
			assert.Equal(t, domain.OpCreate, entry.OperationType)
			assert.JSONEq(t, `{"category_number":"HIS","name":"History"}`, string(entry.Details))
		}
	}
	assert.True(t, found)
}
