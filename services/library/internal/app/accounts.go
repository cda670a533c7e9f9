package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"libmgmt/pkg/auth"
	"libmgmt/pkg/domain"
	"libmgmt/pkg/store"
)

const (
	maxUsernameLen = 20
	maxNameLen     = 30
	maxEmailLen    = 100
)

// AccountInput carries the fields of a new account.
type AccountInput struct {
	Username  string
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// ProfileUpdate changes the non-nil profile fields of an account.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
}

// Register creates a reader account with the default quota and signs it in.
func (a *App) Register(ctx context.Context, in AccountInput) (domain.Reader, string, error) {
	if err := checkPasswordPolicy(in.Password); err != nil {
		return domain.Reader{}, "", err
	}
	var (
		reader  domain.Reader
		changes []change
	)
	err := a.store.WithTx(ctx, func(tx store.Store) error {
		var err error
		reader, changes, err = a.createAccount(ctx, tx, in, domain.RoleReader, domain.DefaultMaxBorrowLimit)
		return err
	})
	if err != nil {
		return domain.Reader{}, "", err
	}
	a.record(ctx, reader.User, changes...)
	token, err := a.sessions.NewSession(reader.User.ID)
	if err != nil {
		return domain.Reader{}, "", fmt.Errorf("issue session: %w", err)
	}
	return reader, token, nil
}

// CreateAdmin creates a staff account. It is the bootstrap path used by the
// operator CLI, so there is no acting principal.
func (a *App) CreateAdmin(ctx context.Context, in AccountInput) (domain.Reader, error) {
	if err := checkPasswordPolicy(in.Password); err != nil {
		return domain.Reader{}, err
	}
	var (
		reader  domain.Reader
		changes []change
	)
	err := a.store.WithTx(ctx, func(tx store.Store) error {
		var err error
		reader, changes, err = a.createAccount(ctx, tx, in, domain.RoleAdmin, domain.DefaultMaxBorrowLimit)
		return err
	})
	if err != nil {
		return domain.Reader{}, err
	}
	a.record(ctx, reader.User, changes...)
	return reader, nil
}

// Login validates credentials and issues a session token.
func (a *App) Login(ctx context.Context, username, password string) (domain.User, string, error) {
	username = strings.TrimSpace(username)
	user, ok, err := a.store.GetUserByUsername(ctx, username)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !user.IsActive() || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// Logout invalidates one session token.
func (a *App) Logout(token string) error {
	return a.sessions.DeleteSession(token)
}

// UserFromToken resolves an active account from a session token.
func (a *App) UserFromToken(ctx context.Context, token string) (domain.User, bool) {
	uid, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(ctx, uid)
	if err != nil || !found || !user.IsActive() {
		return domain.User{}, false
	}
	return user, true
}

// Profile returns the reader profile of the actor.
func (a *App) Profile(ctx context.Context, actor domain.User) (domain.Reader, error) {
	return a.readerOf(ctx, a.store, actor)
}

// UpdateProfile edits the actor's own name and email.
func (a *App) UpdateProfile(ctx context.Context, actor domain.User, upd ProfileUpdate) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(ctx, actor.ID)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrReaderNotFound
	}
	applyProfile(&user, upd)
	if err := checkProfile(user.FirstName, user.LastName, user.Email); err != nil {
		return domain.User{}, err
	}
	user.UpdatedAt = a.now()
	if err := a.store.UpdateUser(ctx, user); err != nil {
		return domain.User{}, fmt.Errorf("update user: %w", err)
	}
	a.record(ctx, actor, userChange(domain.OpUpdate, user))
	return user, nil
}

// ChangePassword replaces the actor's password after checking the current
// one, then revokes every session issued so far.
func (a *App) ChangePassword(ctx context.Context, actor domain.User, current, next string) error {
	if err := checkPasswordPolicy(next); err != nil {
		return err
	}
	user, ok, err := a.store.GetUserByID(ctx, actor.ID)
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return ErrReaderNotFound
	}
	if !auth.CheckPassword(current, user.PasswordHash) {
		return ErrWrongPassword
	}
	if current == next {
		return ErrSamePassword
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	revokeSince := a.now()
	user.PasswordHash = hash
	user.UpdatedAt = revokeSince
	if err := a.store.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	a.record(ctx, actor, userChange(domain.OpUpdate, user))
	a.revokeUserSessions(ctx, user.ID, revokeSince)
	return nil
}

// createAccount inserts an account and its reader profile through s.
func (a *App) createAccount(ctx context.Context, s store.Store, in AccountInput, role domain.UserRole, limit int) (domain.Reader, []change, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" {
		return domain.Reader{}, nil, ErrUsernameRequired
	}
	if err := checkLength("Username", in.Username, maxUsernameLen); err != nil {
		return domain.Reader{}, nil, err
	}
	if err := checkProfile(in.FirstName, in.LastName, in.Email); err != nil {
		return domain.Reader{}, nil, err
	}
	if in.Password == "" {
		return domain.Reader{}, nil, ErrPasswordRequired
	}
	if limit < 0 {
		return domain.Reader{}, nil, ErrInvalidLimit
	}
	exists, err := s.HasUsername(ctx, in.Username)
	if err != nil {
		return domain.Reader{}, nil, fmt.Errorf("check username: %w", err)
	}
	if exists {
		return domain.Reader{}, nil, ErrUsernameExists
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.Reader{}, nil, fmt.Errorf("hash password: %w", err)
	}
	now := a.now()
	user := domain.User{
		Username:     in.Username,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			return domain.Reader{}, nil, ErrUsernameExists
		}
		return domain.Reader{}, nil, fmt.Errorf("save user: %w", err)
	}
	reader := domain.Reader{UserID: user.ID, MaxBorrowLimit: limit}
	if err := s.CreateReader(ctx, &reader); err != nil {
		return domain.Reader{}, nil, fmt.Errorf("save reader: %w", err)
	}
	reader.User = user
	return reader, []change{userChange(domain.OpCreate, user), readerChange(domain.OpCreate, reader)}, nil
}

func (a *App) readerOf(ctx context.Context, s store.Store, actor domain.User) (domain.Reader, error) {
	reader, ok, err := s.GetReaderByUserID(ctx, actor.ID)
	if err != nil {
		return domain.Reader{}, fmt.Errorf("fetch reader: %w", err)
	}
	if !ok {
		return domain.Reader{}, ErrReaderNotFound
	}
	return reader, nil
}

// revokeUserSessions runs after the account change has committed, so a
// failure is logged and the change stands.
func (a *App) revokeUserSessions(ctx context.Context, userID uint, since time.Time) {
	revoker, ok := a.sessions.(store.UserSessionRevoker)
	if !ok {
		logger(ctx).Error("session store cannot revoke user sessions", "user_id", userID)
		return
	}
	if err := revoker.RevokeUserSessions(userID, since); err != nil {
		logger(ctx).Error("revoke user sessions failed", "user_id", userID, "err", err)
	}
}

func requireAdmin(actor domain.User) error {
	if !actor.IsAdmin() || !actor.IsActive() {
		return ErrPermissionDenied
	}
	return nil
}

func applyProfile(u *domain.User, upd ProfileUpdate) {
	if upd.FirstName != nil {
		u.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		u.LastName = *upd.LastName
	}
	if upd.Email != nil {
		u.Email = strings.TrimSpace(*upd.Email)
	}
}

func checkProfile(firstName, lastName, email string) error {
	if err := checkLength("First name", firstName, maxNameLen); err != nil {
		return err
	}
	if err := checkLength("Last name", lastName, maxNameLen); err != nil {
		return err
	}
	return checkLength("Email", email, maxEmailLen)
}

func checkLength(label, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return domain.NewError(domain.KindValidation, label+" too long")
	}
	return nil
}

func checkPasswordPolicy(password string) error {
	if err := auth.ValidatePassword(password); err != nil {
		return domain.NewError(domain.KindValidation, err.Error())
	}
	return nil
}
