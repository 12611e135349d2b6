package blob

import "errors"

var (
	// ErrBlobNotFound means a path was expected to hold a blob but nothing is there.
	ErrBlobNotFound = errors.New("blob not found")
	// ErrStorageIO wraps any underlying filesystem or object store failure.
	ErrStorageIO = errors.New("storage i/o error")
	// ErrInvalidTenant rejects tenant names that cannot be used as a folder.
	ErrInvalidTenant = errors.New("invalid tenant name")
	// ErrInvalidPath rejects storage paths outside the tenant layout.
	ErrInvalidPath = errors.New("invalid storage path")
	// ErrBlobExists prevents a write from replacing an existing blob.
	ErrBlobExists = errors.New("blob already exists")
)
