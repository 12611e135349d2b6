package quota

import "errors"

var (
	// ErrQuotaExceeded is returned when admitting an upload would push the tenant over its limit.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	// ErrInvalidSize is returned for negative incoming sizes.
	ErrInvalidSize = errors.New("invalid upload size")
)
