package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const copyBufferSize = 1 * 1024 * 1024

// LocalStore keeps blobs on the local filesystem under a single root.
type LocalStore struct {
	root string
	now  func() time.Time
}

// NewLocalStore prepares root and returns a store rooted there.
func NewLocalStore(root string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStore{root: abs, now: time.Now}, nil
}

// Root returns the absolute storage root.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) GeneratePath(tenant string) (string, error) {
	return generatePath(tenant)
}

func (s *LocalStore) Write(ctx context.Context, p string, r io.Reader) (int64, error) {
	tenant, area, _, err := splitPath(p)
	if err != nil {
		return 0, err
	}
	if area == areaTemp {
		return 0, fmt.Errorf("%w: cannot write into temp area", ErrInvalidPath)
	}

	final := s.abs(p)
	if _, err := os.Stat(final); err == nil {
		return 0, fmt.Errorf("%w: %s", ErrBlobExists, p)
	}

	tmpDir := s.abs(TempPrefix(tenant))
	if err := os.MkdirAll(tmpDir, 0o750); err != nil {
		return 0, storageError("prepare temp dir for", p, err)
	}
	if err := os.MkdirAll(filepath.Dir(final), 0o750); err != nil {
		return 0, storageError("prepare dir for", p, err)
	}

	tmp, err := os.CreateTemp(tmpDir, "*.part")
	if err != nil {
		return 0, storageError("create temp for", p, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	buf := make([]byte, copyBufferSize)
	n, err := io.CopyBuffer(tmp, &contextReader{ctx: ctx, r: r}, buf)
	if err != nil {
		return 0, storageError("write", p, err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, storageError("sync", p, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, storageError("close", p, err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		_ = os.Remove(tmp.Name())
		committed = true
		return 0, storageError("commit", p, err)
	}
	committed = true
	return n, nil
}

func (s *LocalStore) Open(ctx context.Context, p string) (io.ReadCloser, int64, error) {
	if _, _, _, err := splitPath(p); err != nil {
		return nil, 0, err
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	f, err := os.Open(s.abs(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, fmt.Errorf("%w: %s", ErrBlobNotFound, p)
		}
		return nil, 0, storageError("open", p, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, storageError("stat", p, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, 0, fmt.Errorf("%w: %s is a directory", ErrInvalidPath, p)
	}
	return f, info.Size(), nil
}

func (s *LocalStore) Read(ctx context.Context, p string) ([]byte, error) {
	rc, _, err := s.Open(ctx, p)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, storageError("read", p, err)
	}
	return data, nil
}

func (s *LocalStore) RelocateToDeleted(ctx context.Context, p, tenant string) (string, error) {
	owner, area, _, err := splitPath(p)
	if err != nil {
		return "", err
	}
	if owner != tenant || area != areaActive {
		return "", fmt.Errorf("%w: %s is not an active blob of %s", ErrInvalidPath, p, tenant)
	}
	dst := deletedPath(tenant, p, s.now())
	if err := s.Move(ctx, p, dst); err != nil {
		return "", err
	}
	return dst, nil
}

func (s *LocalStore) Move(ctx context.Context, src, dst string) error {
	if _, _, _, err := splitPath(src); err != nil {
		return err
	}
	if _, _, _, err := splitPath(dst); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(s.abs(dst)); err == nil {
		return fmt.Errorf("%w: %s", ErrBlobExists, dst)
	}
	if err := os.MkdirAll(filepath.Dir(s.abs(dst)), 0o750); err != nil {
		return storageError("prepare dir for", dst, err)
	}
	if err := os.Rename(s.abs(src), s.abs(dst)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrBlobNotFound, src)
		}
		return storageError("move", src, err)
	}
	return nil
}

func (s *LocalStore) Remove(ctx context.Context, p string) error {
	if _, _, _, err := splitPath(p); err != nil {
		return err
	}
	if err := os.Remove(s.abs(p)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrBlobNotFound, p)
		}
		return storageError("remove", p, err)
	}
	return nil
}

func (s *LocalStore) FolderSize(ctx context.Context, prefix string) (int64, error) {
	objects, err := s.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, obj := range objects {
		total += obj.Size
	}
	return total, nil
}

func (s *LocalStore) List(ctx context.Context, prefix string) ([]Object, error) {
	if err := validatePrefix(prefix); err != nil {
		return nil, err
	}
	base := s.abs(prefix)

	var objects []Object
	err := filepath.WalkDir(base, func(full string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && full == base {
				return fs.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		rel, err := filepath.Rel(s.root, full)
		if err != nil {
			return err
		}
		objects = append(objects, Object{
			Path:    filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, storageError("list", prefix, err)
	}
	return objects, nil
}

func (s *LocalStore) Tenants(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, storageError("list tenants in", s.root, err)
	}
	var tenants []string
	for _, entry := range entries {
		if entry.IsDir() && ValidateTenant(entry.Name()) == nil {
			tenants = append(tenants, entry.Name())
		}
	}
	sort.Strings(tenants)
	return tenants, nil
}

func (s *LocalStore) EnsureTenant(ctx context.Context, tenant string) error {
	if err := ValidateTenant(tenant); err != nil {
		return err
	}
	for _, prefix := range []string{ActivePrefix(tenant), DeletedPrefix(tenant)} {
		if err := os.MkdirAll(s.abs(prefix), 0o750); err != nil {
			return storageError("provision", prefix, err)
		}
	}
	return nil
}

func (s *LocalStore) Ping(ctx context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return storageError("stat", s.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: storage root %s is not a directory", ErrStorageIO, s.root)
	}
	return nil
}

func (s *LocalStore) abs(p string) string {
	return filepath.Join(s.root, filepath.FromSlash(p))
}
