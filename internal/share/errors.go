package share

import "errors"

var (
	// ErrShareNotFound indicates no grant exists for the file and grantee.
	ErrShareNotFound = errors.New("share not found")
	// ErrSelfShare is returned when an owner tries to share with themselves.
	ErrSelfShare = errors.New("cannot share a file with yourself")
	// ErrInvalidPermission is returned for permissions outside the configured scheme.
	ErrInvalidPermission = errors.New("invalid permission")
	// ErrUnknownScheme is returned when no permission scheme has the requested name.
	ErrUnknownScheme = errors.New("unknown permission scheme")
	// ErrFileNotFound hides whether a file is missing or owned by someone else.
	ErrFileNotFound = errors.New("file not found or you are not the owner")
	// ErrEmptyBulk is returned when a bulk request names no files or no users.
	ErrEmptyBulk = errors.New("at least one file id and one username are required")
	// ErrGranteeNotFound indicates the target user does not exist or is inactive.
	ErrGranteeNotFound = errors.New("grantee not found")
)
