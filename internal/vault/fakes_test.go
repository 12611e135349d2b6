package vault

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/abduss/cryptovault/internal/file"
	"github.com/abduss/cryptovault/internal/share"
	"github.com/google/uuid"
)

type memoryRegistry struct {
	mu        sync.Mutex
	files     map[uuid.UUID]file.File
	createErr error
	markErr   error
	clock     time.Time
}

func newMemoryRegistry() *memoryRegistry {
	return &memoryRegistry{files: make(map[uuid.UUID]file.File), clock: time.Unix(1_700_000_000, 0).UTC()}
}

func (m *memoryRegistry) Create(ctx context.Context, f file.File) (file.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return file.File{}, m.createErr
	}
	if err := f.Validate(); err != nil {
		return file.File{}, err
	}
	m.clock = m.clock.Add(time.Second)
	f.Status = file.StatusActive
	f.CreatedAt = m.clock
	f.UpdatedAt = m.clock
	m.files[f.ID] = f
	return f, nil
}

func (m *memoryRegistry) Find(ctx context.Context, id uuid.UUID) (file.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok || f.Status != file.StatusActive {
		return file.File{}, file.ErrFileNotFound
	}
	return f, nil
}

func (m *memoryRegistry) FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]file.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []file.File
	for _, f := range m.files {
		if f.OwnerID == ownerID && f.Status == file.StatusActive {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryRegistry) Delete(ctx context.Context, id, ownerID uuid.UUID) (file.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok || f.OwnerID != ownerID {
		return file.File{}, file.ErrFileNotFound
	}
	delete(m.files, id)
	return f, nil
}

func (m *memoryRegistry) MarkDeleted(ctx context.Context, id, ownerID uuid.UUID, newPath string) (file.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return file.File{}, m.markErr
	}
	f, ok := m.files[id]
	if !ok || f.OwnerID != ownerID || f.Status != file.StatusActive {
		return file.File{}, file.ErrFileNotFound
	}
	f.Status = file.StatusDeleted
	f.StoragePath = newPath
	m.files[id] = f
	return f, nil
}

func (m *memoryRegistry) UsageByOwner(ctx context.Context, ownerID uuid.UUID) (file.Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var u file.Usage
	for _, f := range m.files {
		if f.OwnerID == ownerID && f.Status == file.StatusActive {
			u.Bytes += f.SizeBytes
			u.FileCount++
		}
	}
	return u, nil
}

// put stores a record directly, bypassing upload.
func (m *memoryRegistry) put(f file.File) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[f.ID] = f
}

func (m *memoryRegistry) get(id uuid.UUID) (file.File, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	return f, ok
}

type memoryGrants struct {
	mu     sync.Mutex
	grants map[[2]uuid.UUID]share.Permission
	files  *memoryRegistry
}

func newMemoryGrants(files *memoryRegistry) *memoryGrants {
	return &memoryGrants{grants: make(map[[2]uuid.UUID]share.Permission), files: files}
}

func (g *memoryGrants) grant(fileID, granteeID uuid.UUID, p share.Permission) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.grants[[2]uuid.UUID{fileID, granteeID}] = p
}

func (g *memoryGrants) revoke(fileID, granteeID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.grants, [2]uuid.UUID{fileID, granteeID})
}

func (g *memoryGrants) Find(ctx context.Context, fileID, granteeID uuid.UUID) (share.Grant, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.grants[[2]uuid.UUID{fileID, granteeID}]
	if !ok {
		return share.Grant{}, share.ErrShareNotFound
	}
	return share.Grant{FileID: fileID, GranteeID: granteeID, Permission: p}, nil
}

func (g *memoryGrants) ListForGrantee(ctx context.Context, granteeID uuid.UUID) ([]share.Shared, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []share.Shared
	for key, p := range g.grants {
		if key[1] != granteeID {
			continue
		}
		f, err := g.files.Find(ctx, key[0])
		if errors.Is(err, file.ErrFileNotFound) {
			continue
		}
		out = append(out, share.Shared{
			FileID:           f.ID,
			OriginalFilename: f.OriginalFilename,
			SizeBytes:        f.SizeBytes,
			ContentType:      f.ContentType,
			FileCreatedAt:    f.CreatedAt,
			OwnerID:          f.OwnerID,
			Permission:       p,
		})
	}
	return out, nil
}
