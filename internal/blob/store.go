// Package blob places opaque ciphertext on a per-tenant storage tree.
//
// Every stored path is relative to the store root and has the form
// <tenant>/<area>/<name>, where area is one of uploads (active blobs,
// counted toward quota), deleted (quarantine) or .tmp (in-flight writes).
package blob

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	areaActive  = "uploads"
	areaDeleted = "deleted"
	areaTemp    = ".tmp"

	blobExtension = ".enc"
	deletedStamp  = "20060102_150405"
)

var tenantPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,50}$`)

// Object describes a stored blob.
type Object struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Store is implemented by every blob backend.
type Store interface {
	// GeneratePath returns a fresh, unused location in the tenant's active area.
	GeneratePath(tenant string) (string, error)
	// Write persists r at p. Either the whole payload lands at p or nothing does.
	Write(ctx context.Context, p string, r io.Reader) (int64, error)
	// Open streams the blob at p together with its persisted size.
	Open(ctx context.Context, p string) (io.ReadCloser, int64, error)
	Read(ctx context.Context, p string) ([]byte, error)
	// RelocateToDeleted moves p into the tenant's quarantine and returns the new path.
	RelocateToDeleted(ctx context.Context, p, tenant string) (string, error)
	Move(ctx context.Context, src, dst string) error
	Remove(ctx context.Context, p string) error
	// FolderSize sums every blob below prefix.
	FolderSize(ctx context.Context, prefix string) (int64, error)
	List(ctx context.Context, prefix string) ([]Object, error)
	Tenants(ctx context.Context) ([]string, error)
	EnsureTenant(ctx context.Context, tenant string) error
	Ping(ctx context.Context) error
}

// ValidateTenant reports whether name is usable as a tenant folder.
func ValidateTenant(name string) error {
	if !tenantPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidTenant, name)
	}
	return nil
}

// ActivePrefix is the subtree whose size counts toward the tenant quota.
func ActivePrefix(tenant string) string {
	return tenant + "/" + areaActive
}

// DeletedPrefix is the tenant quarantine subtree.
func DeletedPrefix(tenant string) string {
	return tenant + "/" + areaDeleted
}

// TempPrefix holds partially written blobs.
func TempPrefix(tenant string) string {
	return tenant + "/" + areaTemp
}

// Tenant extracts the owning tenant from a storage path.
func Tenant(p string) (string, error) {
	tenant, _, _, err := splitPath(p)
	return tenant, err
}

func generatePath(tenant string) (string, error) {
	if err := ValidateTenant(tenant); err != nil {
		return "", err
	}
	return ActivePrefix(tenant) + "/" + uuid.NewString() + blobExtension, nil
}

func deletedPath(tenant, src string, now time.Time) string {
	return DeletedPrefix(tenant) + "/" + now.UTC().Format(deletedStamp) + "_" + path.Base(src)
}

func splitPath(p string) (tenant, area, name string, err error) {
	if p == "" || strings.Contains(p, "\\") || path.Clean(p) != p || path.IsAbs(p) {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	parts := strings.Split(p, "/")
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	tenant, area, name = parts[0], parts[1], parts[2]
	if ValidateTenant(tenant) != nil || name == "" || name == "." || name == ".." {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	switch area {
	case areaActive, areaDeleted, areaTemp:
	default:
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return tenant, area, name, nil
}

func validatePrefix(prefix string) error {
	if prefix == "" || path.Clean(prefix) != prefix || path.IsAbs(prefix) || strings.Contains(prefix, "..") {
		return fmt.Errorf("%w: prefix %q", ErrInvalidPath, prefix)
	}
	return nil
}

// contextReader stops a copy as soon as its context is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func storageError(op, p string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", op, p, ErrStorageIO, err)
}
