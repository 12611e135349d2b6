package vault

import (
	"errors"

	"github.com/abduss/cryptovault/internal/blob"
	"github.com/abduss/cryptovault/internal/quota"
)

var (
	// ErrNotFound indicates a file or grant vanished while the request was in flight.
	ErrNotFound = errors.New("file not found")
	// ErrAccessDenied covers both missing files and files the principal cannot see.
	ErrAccessDenied = errors.New("access denied")
	// ErrDownloadNotPermitted is returned to grantees whose permission only allows viewing.
	ErrDownloadNotPermitted = errors.New("download not permitted: view-only access")
	// ErrQuotaExceeded is returned when the upload does not fit in the tenant quota.
	ErrQuotaExceeded = quota.ErrQuotaExceeded
	// ErrValidation is returned for missing or malformed encryption metadata or sizes.
	ErrValidation = errors.New("validation failed")
	// ErrStorageIO is a retryable blob store failure.
	ErrStorageIO = blob.ErrStorageIO
	// ErrDataInconsistency means metadata and stored ciphertext disagree.
	ErrDataInconsistency = errors.New("data inconsistency")
	// ErrUnknownDeleteMode is returned by NewService for unsupported lifecycle models.
	ErrUnknownDeleteMode = errors.New("unknown delete mode")
)
