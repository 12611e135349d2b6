package share

import (
	"errors"
	"testing"
)

func TestTieredScheme(t *testing.T) {
	s := TieredScheme()

	if s.Rights(PermissionView).Download {
		t.Fatalf("view must not allow download")
	}
	if !s.Rights(PermissionView).View {
		t.Fatalf("view must allow viewing")
	}
	if !s.Rights(PermissionDownload).Download || s.Rights(PermissionDownload).Write {
		t.Fatalf("download must allow download only")
	}
	if !s.Rights(PermissionFullAccess).Write {
		t.Fatalf("full_access must allow write")
	}
	if s.Rights("read") != (Rights{}) {
		t.Fatalf("foreign permissions must allow nothing")
	}
}

func TestParse(t *testing.T) {
	s := TieredScheme()

	p, err := s.Parse("  Download ")
	if err != nil || p != PermissionDownload {
		t.Fatalf("expected download, got %q, %v", p, err)
	}
	if p, _ := s.Parse(""); p != PermissionView {
		t.Fatalf("expected default view, got %q", p)
	}
	if _, err := s.Parse("write"); !errors.Is(err, ErrInvalidPermission) {
		t.Fatalf("expected ErrInvalidPermission, got %v", err)
	}
}

func TestSchemeByName(t *testing.T) {
	cases := map[string]string{"": SchemeTiered, "tiered": SchemeTiered, "ReadWrite": SchemeReadWrite}
	for in, want := range cases {
		s, err := SchemeByName(in)
		if err != nil {
			t.Fatalf("SchemeByName(%q) returned error: %v", in, err)
		}
		if s.Name() != want {
			t.Fatalf("SchemeByName(%q) = %s, want %s", in, s.Name(), want)
		}
	}
	if _, err := SchemeByName("acl"); !errors.Is(err, ErrUnknownScheme) {
		t.Fatalf("expected ErrUnknownScheme, got %v", err)
	}

	rw := ReadWriteScheme()
	if !rw.Rights(PermissionRead).Download {
		t.Fatalf("read must allow download")
	}
	levels := rw.Levels()
	levels[0] = "mutated"
	if rw.Levels()[0] != PermissionRead {
		t.Fatalf("Levels must return a copy")
	}
}
