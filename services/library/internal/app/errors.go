package app

import "libmgmt/pkg/domain"

var (
	// ErrInvalidCredentials is shown for unknown usernames, wrong passwords and
	// disabled accounts alike.
	ErrInvalidCredentials = domain.NewError(domain.KindUnauthenticated, "Invalid username or password")
	ErrPermissionDenied   = domain.NewError(domain.KindPermission, "Permission denied")

	ErrUsernameExists   = domain.NewError(domain.KindIntegrity, "Username already exists")
	ErrUsernameRequired = domain.NewError(domain.KindValidation, "Username required")
	ErrPasswordRequired = domain.NewError(domain.KindValidation, "Password required")
	ErrWrongPassword    = domain.NewError(domain.KindValidation, "Current password is incorrect")
	ErrSamePassword     = domain.NewError(domain.KindValidation, "New password must differ from current password")
	ErrInvalidLimit     = domain.NewError(domain.KindValidation, "Invalid max borrow limit")
	ErrFileType         = domain.NewError(domain.KindValidation, "File type error")

	ErrReaderNotFound    = domain.NewError(domain.KindNotFound, "Reader not found")
	ErrBookNotFound      = domain.NewError(domain.KindNotFound, "Book not found")
	ErrCategoryNotFound  = domain.NewError(domain.KindNotFound, "Category not found")
	ErrInventoryNotFound = domain.NewError(domain.KindNotFound, "Inventory not found")
	ErrRecordNotFound    = domain.NewError(domain.KindNotFound, "Borrow record not found")

	ErrCategoryInUse  = domain.NewError(domain.KindIntegrity, "There are books using this category")
	ErrBookInUse      = domain.NewError(domain.KindIntegrity, "There are inventories for this book")
	ErrInventoryInUse = domain.NewError(domain.KindIntegrity, "There are borrow records for this inventory")

	ErrInvalidStatus     = domain.NewError(domain.KindValidation, "Invalid status")
	ErrStatusTransition  = domain.NewError(domain.KindStateConflict, "Invalid status")
	ErrAlreadyDisabled   = domain.NewError(domain.KindStateConflict, "User already disabled")
	ErrAlreadyEnabled    = domain.NewError(domain.KindStateConflict, "User already enabled")
	ErrCannotDisableSelf = domain.NewError(domain.KindStateConflict, "Cannot disable yourself")
	ErrCannotDemoteSelf  = domain.NewError(domain.KindStateConflict, "Cannot change own role")

	ErrNotAvailable  = domain.NewError(domain.KindNotAvailable, "Inventory not available")
	ErrQuotaExceeded = domain.NewError(domain.KindQuotaExceeded, "Borrow quota exceeded")
)
