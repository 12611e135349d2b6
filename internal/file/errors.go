package file

import "errors"

var (
	// ErrFileNotFound signals that no active file matches the lookup.
	ErrFileNotFound = errors.New("file not found")
	// ErrMissingEncryption is returned when the algorithm or IV is absent.
	ErrMissingEncryption = errors.New("encryption algorithm and iv are required")
	// ErrInvalidIV is returned when the IV is not valid base64.
	ErrInvalidIV = errors.New("iv must be valid base64")
	// ErrInvalidFilename is returned for empty or oversized display names.
	ErrInvalidFilename = errors.New("invalid filename")
	// ErrPathTaken is returned when a storage path is already recorded.
	ErrPathTaken = errors.New("storage path already recorded")
)
