// Package access decides what a principal may do with a file.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/abduss/cryptovault/internal/file"
	"github.com/abduss/cryptovault/internal/share"
	"github.com/google/uuid"
)

// Level is the terminal outcome of resolution.
type Level int

const (
	Denied Level = iota
	Owner
	Shared
)

func (l Level) String() string {
	switch l {
	case Owner:
		return "owner"
	case Shared:
		return "shared"
	default:
		return "denied"
	}
}

// Decision is the outcome of resolving one principal against one file.
type Decision struct {
	Level      Level
	Permission share.Permission
	Rights     share.Rights
	File       file.File
}

// IsOwner reports whether the principal owns the file.
func (d Decision) IsOwner() bool {
	return d.Level == Owner
}

// CanView reports whether metadata may be shown.
func (d Decision) CanView() bool {
	return d.Level == Owner || (d.Level == Shared && d.Rights.View)
}

// CanDownload reports whether ciphertext may be streamed.
func (d Decision) CanDownload() bool {
	return d.Level == Owner || (d.Level == Shared && d.Rights.Download)
}

type fileFinder interface {
	Find(ctx context.Context, id uuid.UUID) (file.File, error)
}

type grantFinder interface {
	Find(ctx context.Context, fileID, granteeID uuid.UUID) (share.Grant, error)
}

// Resolver maps (principal, file) to a Decision.
type Resolver struct {
	files  fileFinder
	grants grantFinder
	scheme share.Scheme
}

// NewResolver builds a resolver interpreting grants through scheme.
func NewResolver(files fileFinder, grants grantFinder, scheme share.Scheme) *Resolver {
	return &Resolver{files: files, grants: grants, scheme: scheme}
}

// Resolve looks up the file and classifies the principal's relationship to it.
// A missing file and a file the principal cannot see both resolve to Denied.
func (r *Resolver) Resolve(ctx context.Context, principal, fileID uuid.UUID) (Decision, error) {
	f, err := r.files.Find(ctx, fileID)
	if err != nil {
		if errors.Is(err, file.ErrFileNotFound) {
			return Decision{Level: Denied}, nil
		}
		return Decision{}, fmt.Errorf("resolve file: %w", err)
	}

	if f.OwnerID == principal {
		return Decision{Level: Owner, File: f}, nil
	}

	g, err := r.grants.Find(ctx, fileID, principal)
	if err != nil {
		if errors.Is(err, share.ErrShareNotFound) {
			return Decision{Level: Denied}, nil
		}
		return Decision{}, fmt.Errorf("resolve grant: %w", err)
	}

	rights := r.scheme.Rights(g.Permission)
	if !rights.View {
		return Decision{Level: Denied}, nil
	}
	return Decision{Level: Shared, Permission: g.Permission, Rights: rights, File: f}, nil
}
