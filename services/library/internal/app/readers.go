package app

import (
	"context"
	"fmt"
	"strings"

	"libmgmt/pkg/auth"
	"libmgmt/pkg/domain"
	"libmgmt/pkg/store"
)

// ReaderInput is an account created by staff. A nil MaxBorrowLimit means the
// default quota.
type ReaderInput struct {
	AccountInput
	IsStaff        bool
	MaxBorrowLimit *int
}

// ReaderUpdate changes the non-nil fields of a reader and its account.
// A non-empty Password resets the password and revokes the reader's sessions.
type ReaderUpdate struct {
	ProfileUpdate
	IsStaff        *bool
	MaxBorrowLimit *int
	Password       *string
}

// AddReader creates an account and its reader profile.
func (a *App) AddReader(ctx context.Context, actor domain.User, in ReaderInput) (domain.Reader, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.Reader{}, err
	}
	limit := domain.DefaultMaxBorrowLimit
	if in.MaxBorrowLimit != nil {
		limit = *in.MaxBorrowLimit
	}
	role := domain.RoleReader
	if in.IsStaff {
		role = domain.RoleAdmin
	}
	var (
		reader  domain.Reader
		changes []change
	)
	err := a.store.WithTx(ctx, func(tx store.Store) error {
		var err error
		reader, changes, err = a.createAccount(ctx, tx, in.AccountInput, role, limit)
		return err
	})
	if err != nil {
		return domain.Reader{}, err
	}
	a.record(ctx, actor, changes...)
	return reader, nil
}

// GetReader returns a reader with its account.
func (a *App) GetReader(ctx context.Context, id uint) (domain.Reader, error) {
	reader, ok, err := a.store.GetReader(ctx, id)
	if err != nil {
		return domain.Reader{}, fmt.Errorf("fetch reader: %w", err)
	}
	if !ok {
		return domain.Reader{}, ErrReaderNotFound
	}
	return reader, nil
}

// EditReader applies upd to reader id.
func (a *App) EditReader(ctx context.Context, actor domain.User, id uint, upd ReaderUpdate) (domain.Reader, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.Reader{}, err
	}
	if upd.MaxBorrowLimit != nil && *upd.MaxBorrowLimit < 0 {
		return domain.Reader{}, ErrInvalidLimit
	}
	var (
		reader  domain.Reader
		reset   bool
		changes []change
	)
	now := a.now()
	err := a.store.WithTx(ctx, func(tx store.Store) error {
		current, ok, err := tx.GetReader(ctx, id)
		if err != nil {
			return fmt.Errorf("fetch reader: %w", err)
		}
		if !ok {
			return ErrReaderNotFound
		}
		user := current.User
		applyProfile(&user, upd.ProfileUpdate)
		if err := checkProfile(user.FirstName, user.LastName, user.Email); err != nil {
			return err
		}
		if upd.IsStaff != nil {
			if user.ID == actor.ID && !*upd.IsStaff {
				return ErrCannotDemoteSelf
			}
			user.Role = domain.RoleReader
			if *upd.IsStaff {
				user.Role = domain.RoleAdmin
			}
		}
		if upd.Password != nil && strings.TrimSpace(*upd.Password) != "" {
			hash, err := auth.HashPassword(*upd.Password)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			user.PasswordHash = hash
			reset = true
		}
		user.UpdatedAt = now
		if err := tx.UpdateUser(ctx, user); err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		changes = append(changes, userChange(domain.OpUpdate, user))
		if upd.MaxBorrowLimit != nil && *upd.MaxBorrowLimit != current.MaxBorrowLimit {
			if err := tx.UpdateReaderLimit(ctx, current.ID, *upd.MaxBorrowLimit); err != nil {
				return fmt.Errorf("update reader: %w", err)
			}
			current.MaxBorrowLimit = *upd.MaxBorrowLimit
			changes = append(changes, readerChange(domain.OpUpdate, current))
		}
		current.User = user
		reader = current
		return nil
	})
	if err != nil {
		return domain.Reader{}, err
	}
	a.record(ctx, actor, changes...)
	if reset {
		a.revokeUserSessions(ctx, reader.UserID, now)
	}
	return reader, nil
}

// DisableReader blocks the reader's account and revokes its sessions.
func (a *App) DisableReader(ctx context.Context, actor domain.User, id uint) (domain.Reader, error) {
	return a.setReaderStatus(ctx, actor, id, domain.StatusDisabled)
}

// EnableReader reactivates a disabled account.
func (a *App) EnableReader(ctx context.Context, actor domain.User, id uint) (domain.Reader, error) {
	return a.setReaderStatus(ctx, actor, id, domain.StatusActive)
}

func (a *App) setReaderStatus(ctx context.Context, actor domain.User, id uint, status domain.UserStatus) (domain.Reader, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.Reader{}, err
	}
	reader, err := a.GetReader(ctx, id)
	if err != nil {
		return domain.Reader{}, err
	}
	user := reader.User
	switch {
	case status == domain.StatusDisabled && !user.IsActive():
		return domain.Reader{}, ErrAlreadyDisabled
	case status == domain.StatusActive && user.IsActive():
		return domain.Reader{}, ErrAlreadyEnabled
	case status == domain.StatusDisabled && user.ID == actor.ID:
		return domain.Reader{}, ErrCannotDisableSelf
	}
	user.Status = status
	user.UpdatedAt = a.now()
	if err := a.store.UpdateUser(ctx, user); err != nil {
		return domain.Reader{}, fmt.Errorf("update user: %w", err)
	}
	a.record(ctx, actor, userChange(domain.OpUpdate, user))
	if status == domain.StatusDisabled {
		a.revokeUserSessions(ctx, user.ID, user.UpdatedAt)
	}
	reader.User = user
	return reader, nil
}
