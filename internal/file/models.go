package file

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxFilenameLength = 255

// Status is the lifecycle state of a file record.
type Status string

const (
	StatusActive  Status = "active"
	StatusDeleted Status = "deleted"
)

// File is the metadata record for one stored ciphertext blob.
type File struct {
	ID               uuid.UUID `json:"id"`
	OwnerID          uuid.UUID `json:"owner_id"`
	OriginalFilename string    `json:"original_filename"`
	SizeBytes        int64     `json:"size_bytes"`
	ContentType      string    `json:"content_type"`
	Algorithm        string    `json:"algo"`
	IV               string    `json:"iv"`
	StoragePath      string    `json:"-"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ValidateEnvelope checks the client-supplied display name and encryption parameters.
func ValidateEnvelope(filename, algorithm, iv string) error {
	if strings.TrimSpace(algorithm) == "" || strings.TrimSpace(iv) == "" {
		return ErrMissingEncryption
	}
	if _, err := base64.StdEncoding.DecodeString(iv); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidIV, err)
	}
	name := strings.TrimSpace(filename)
	if name == "" || len(name) > maxFilenameLength || strings.ContainsAny(name, "\x00\r\n") {
		return ErrInvalidFilename
	}
	return nil
}

// Validate checks the fields a record needs before it can be created.
func (f File) Validate() error {
	if err := ValidateEnvelope(f.OriginalFilename, f.Algorithm, f.IV); err != nil {
		return err
	}
	if f.SizeBytes < 0 {
		return fmt.Errorf("negative size %d", f.SizeBytes)
	}
	if f.StoragePath == "" {
		return fmt.Errorf("storage path is required")
	}
	return nil
}

// Usage is the metadata-side byte total for one owner.
type Usage struct {
	Bytes     int64
	FileCount int64
}

// Located pairs a storage path with the record that owns it.
type Located struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	StoragePath string
	SizeBytes   int64
	Status      Status
}
