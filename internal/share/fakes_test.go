package share

import (
	"context"
	"sort"
	"time"

	"github.com/abduss/cryptovault/internal/file"
	"github.com/google/uuid"
)

// --- fakes ---

type pair struct {
	file    uuid.UUID
	grantee uuid.UUID
}

type memoryGrants struct {
	grants map[pair]Grant
	users  map[string]uuid.UUID
	files  *memoryFiles
}

func newMemoryGrants(files *memoryFiles) *memoryGrants {
	return &memoryGrants{grants: make(map[pair]Grant), users: make(map[string]uuid.UUID), files: files}
}

func (m *memoryGrants) addUser(name string) uuid.UUID {
	id := uuid.New()
	m.users[name] = id
	return id
}

func (m *memoryGrants) Upsert(ctx context.Context, fileID, granteeID uuid.UUID, permission Permission) (Grant, bool, error) {
	key := pair{fileID, granteeID}
	g, exists := m.grants[key]
	if !exists {
		g = Grant{ID: uuid.New(), FileID: fileID, GranteeID: granteeID, CreatedAt: time.Now()}
	}
	g.Permission = permission
	g.UpdatedAt = time.Now()
	m.grants[key] = g
	return g, !exists, nil
}

func (m *memoryGrants) Delete(ctx context.Context, fileID, granteeID uuid.UUID) (Grant, error) {
	key := pair{fileID, granteeID}
	g, ok := m.grants[key]
	if !ok {
		return Grant{}, ErrShareNotFound
	}
	delete(m.grants, key)
	return g, nil
}

func (m *memoryGrants) Find(ctx context.Context, fileID, granteeID uuid.UUID) (Grant, error) {
	g, ok := m.grants[pair{fileID, granteeID}]
	if !ok {
		return Grant{}, ErrShareNotFound
	}
	return g, nil
}

func (m *memoryGrants) ListForFile(ctx context.Context, fileID uuid.UUID) ([]Recipient, error) {
	var out []Recipient
	for key, g := range m.grants {
		if key.file == fileID {
			out = append(out, Recipient{GranteeID: g.GranteeID, Permission: g.Permission, CreatedAt: g.CreatedAt})
		}
	}
	return out, nil
}

func (m *memoryGrants) ListForGrantee(ctx context.Context, granteeID uuid.UUID) ([]Shared, error) {
	var out []Shared
	for key, g := range m.grants {
		if key.grantee != granteeID {
			continue
		}
		f := m.files.files[key.file]
		out = append(out, Shared{FileID: f.ID, OriginalFilename: f.OriginalFilename, OwnerID: f.OwnerID, Permission: g.Permission})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OriginalFilename < out[j].OriginalFilename })
	return out, nil
}

func (m *memoryGrants) Stats(ctx context.Context, userID uuid.UUID) (Stats, error) {
	var st Stats
	sharedFiles := map[uuid.UUID]bool{}
	grantees := map[uuid.UUID]bool{}
	owners := map[uuid.UUID]bool{}
	for key := range m.grants {
		f := m.files.files[key.file]
		if f.OwnerID == userID {
			sharedFiles[key.file] = true
			grantees[key.grantee] = true
		}
		if key.grantee == userID {
			st.FilesSharedWithYou++
			owners[f.OwnerID] = true
		}
	}
	st.FilesYouShared = int64(len(sharedFiles))
	st.UsersYouSharedWith = int64(len(grantees))
	st.UsersWhoSharedWithYou = int64(len(owners))
	return st, nil
}

func (m *memoryGrants) LookupUsername(ctx context.Context, username string) (uuid.UUID, error) {
	id, ok := m.users[username]
	if !ok {
		return uuid.Nil, ErrGranteeNotFound
	}
	return id, nil
}

type memoryFiles struct {
	files map[uuid.UUID]file.File
}

func newMemoryFiles() *memoryFiles {
	return &memoryFiles{files: make(map[uuid.UUID]file.File)}
}

func (m *memoryFiles) add(owner uuid.UUID, name string) file.File {
	f := file.File{ID: uuid.New(), OwnerID: owner, OriginalFilename: name, Status: file.StatusActive}
	m.files[f.ID] = f
	return f
}

func (m *memoryFiles) Find(ctx context.Context, id uuid.UUID) (file.File, error) {
	f, ok := m.files[id]
	if !ok {
		return file.File{}, file.ErrFileNotFound
	}
	return f, nil
}
