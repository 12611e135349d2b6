package share

import (
	"fmt"
	"strings"
)

// Permission is a level granted to a share grantee.
type Permission string

// Rights are the capabilities a permission unlocks.
type Rights struct {
	View     bool `json:"view"`
	Download bool `json:"download"`
	Write    bool `json:"write"`
}

// Scheme names the closed set of permissions a deployment accepts.
type Scheme struct {
	name   string
	order  []Permission
	rights map[Permission]Rights
}

// Scheme names accepted by SchemeByName.
const (
	SchemeTiered    = "tiered"
	SchemeReadWrite = "readwrite"
)

// Tiered permissions.
const (
	PermissionView       Permission = "view"
	PermissionDownload   Permission = "download"
	PermissionFullAccess Permission = "full_access"
)

// Read/write permissions.
const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
)

// NewScheme builds a scheme from levels listed weakest first.
func NewScheme(name string, levels []Permission, rights map[Permission]Rights) Scheme {
	copied := make(map[Permission]Rights, len(levels))
	for _, p := range levels {
		copied[p] = rights[p]
	}
	return Scheme{name: name, order: append([]Permission(nil), levels...), rights: copied}
}

// TieredScheme separates viewing metadata from downloading ciphertext.
func TieredScheme() Scheme {
	return NewScheme(SchemeTiered,
		[]Permission{PermissionView, PermissionDownload, PermissionFullAccess},
		map[Permission]Rights{
			PermissionView:       {View: true},
			PermissionDownload:   {View: true, Download: true},
			PermissionFullAccess: {View: true, Download: true, Write: true},
		})
}

// ReadWriteScheme lets every grantee download.
func ReadWriteScheme() Scheme {
	return NewScheme(SchemeReadWrite,
		[]Permission{PermissionRead, PermissionWrite},
		map[Permission]Rights{
			PermissionRead:  {View: true, Download: true},
			PermissionWrite: {View: true, Download: true, Write: true},
		})
}

// SchemeByName resolves a configured scheme name.
func SchemeByName(name string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SchemeTiered:
		return TieredScheme(), nil
	case SchemeReadWrite:
		return ReadWriteScheme(), nil
	default:
		return Scheme{}, fmt.Errorf("%w: %q", ErrUnknownScheme, name)
	}
}

// Name returns the scheme name.
func (s Scheme) Name() string {
	return s.name
}

// Levels lists the accepted permissions, weakest first.
func (s Scheme) Levels() []Permission {
	return append([]Permission(nil), s.order...)
}

// Default is the weakest permission, used when a request names none.
func (s Scheme) Default() Permission {
	if len(s.order) == 0 {
		return ""
	}
	return s.order[0]
}

// Parse normalizes raw and checks it belongs to the scheme.
func (s Scheme) Parse(raw string) (Permission, error) {
	p := Permission(strings.ToLower(strings.TrimSpace(raw)))
	if p == "" {
		return s.Default(), nil
	}
	if _, ok := s.rights[p]; !ok {
		return "", fmt.Errorf("%w: %q, must be one of %v", ErrInvalidPermission, raw, s.order)
	}
	return p, nil
}

// Rights reports what p allows. Unknown permissions allow nothing.
func (s Scheme) Rights(p Permission) Rights {
	return s.rights[p]
}
