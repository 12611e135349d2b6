package vault

import (
	"io"
	"time"

	"github.com/abduss/cryptovault/internal/access"
	"github.com/abduss/cryptovault/internal/file"
	"github.com/abduss/cryptovault/internal/share"
	"github.com/google/uuid"
)

// Principal is the authenticated caller and the tenant folder it owns.
type Principal struct {
	ID     uuid.UUID
	Tenant string
}

// UploadRequest carries ciphertext and its client-side encryption envelope.
type UploadRequest struct {
	OriginalFilename string
	IV               string
	Algorithm        string
	ContentType      string
	// DeclaredSize is the size the client announced, or -1 when unknown.
	DeclaredSize int64
	Body         io.Reader
}

// Uploaded is the result of a committed upload.
type Uploaded struct {
	ID        uuid.UUID `json:"id"`
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Download is an open ciphertext stream plus the metadata a client needs to decrypt it.
type Download struct {
	File file.File
	Size int64
	Body io.ReadCloser
}

// Info is file metadata as visible to the caller.
type Info struct {
	File       file.File        `json:"file"`
	AccessType string           `json:"access_type"`
	Permission share.Permission `json:"permission,omitempty"`
	Rights     share.Rights     `json:"rights"`
}

// Entry is one row of the unified listing: either OwnedEntry or SharedEntry.
type Entry interface {
	EntryID() uuid.UUID
	Access() access.Level
}

// OwnedEntry is a file the caller owns.
type OwnedEntry struct {
	ID          uuid.UUID `json:"id"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
	AccessType  string    `json:"access_type"`
}

func (e OwnedEntry) EntryID() uuid.UUID   { return e.ID }
func (e OwnedEntry) Access() access.Level { return access.Owner }

// SharedEntry is a file another user shared with the caller.
type SharedEntry struct {
	ID            uuid.UUID        `json:"id"`
	Filename      string           `json:"filename"`
	Size          int64            `json:"size"`
	ContentType   string           `json:"content_type"`
	CreatedAt     time.Time        `json:"created_at"`
	AccessType    string           `json:"access_type"`
	OwnerID       uuid.UUID        `json:"owner_id"`
	OwnerUsername string           `json:"owner_username"`
	Permission    share.Permission `json:"permission"`
	SharedAt      time.Time        `json:"shared_at"`
}

func (e SharedEntry) EntryID() uuid.UUID   { return e.ID }
func (e SharedEntry) Access() access.Level { return access.Shared }

func ownedEntry(f file.File) OwnedEntry {
	return OwnedEntry{
		ID:          f.ID,
		Filename:    f.OriginalFilename,
		Size:        f.SizeBytes,
		ContentType: f.ContentType,
		CreatedAt:   f.CreatedAt,
		AccessType:  access.Owner.String(),
	}
}

func sharedEntry(s share.Shared) SharedEntry {
	return SharedEntry{
		ID:            s.FileID,
		Filename:      s.OriginalFilename,
		Size:          s.SizeBytes,
		ContentType:   s.ContentType,
		CreatedAt:     s.FileCreatedAt,
		AccessType:    access.Shared.String(),
		OwnerID:       s.OwnerID,
		OwnerUsername: s.OwnerUsername,
		Permission:    s.Permission,
		SharedAt:      s.SharedAt,
	}
}
