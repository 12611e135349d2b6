package share

import (
	"context"
	"errors"
	"strings"

	"github.com/abduss/cryptovault/internal/file"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type grantStore interface {
	Upsert(ctx context.Context, fileID, granteeID uuid.UUID, permission Permission) (Grant, bool, error)
	Delete(ctx context.Context, fileID, granteeID uuid.UUID) (Grant, error)
	Find(ctx context.Context, fileID, granteeID uuid.UUID) (Grant, error)
	ListForFile(ctx context.Context, fileID uuid.UUID) ([]Recipient, error)
	ListForGrantee(ctx context.Context, granteeID uuid.UUID) ([]Shared, error)
	Stats(ctx context.Context, userID uuid.UUID) (Stats, error)
	LookupUsername(ctx context.Context, username string) (uuid.UUID, error)
}

type fileLookup interface {
	Find(ctx context.Context, id uuid.UUID) (file.File, error)
}

// Service manages share grants on behalf of file owners.
type Service struct {
	store  grantStore
	files  fileLookup
	scheme Scheme
	log    *zap.Logger
}

// NewService constructs a share service enforcing scheme.
func NewService(store grantStore, files fileLookup, scheme Scheme, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, files: files, scheme: scheme, log: log}
}

// Scheme returns the permission scheme in force.
func (s *Service) Scheme() Scheme {
	return s.scheme
}

// Grant shares the owner's file with grantee. Repeating it replaces the permission.
func (s *Service) Grant(ctx context.Context, ownerID, fileID, granteeID uuid.UUID, rawPermission string) (Grant, bool, error) {
	if granteeID == ownerID {
		return Grant{}, false, ErrSelfShare
	}
	permission, err := s.scheme.Parse(rawPermission)
	if err != nil {
		return Grant{}, false, err
	}
	if _, err := s.ownedFile(ctx, ownerID, fileID); err != nil {
		return Grant{}, false, err
	}

	g, created, err := s.store.Upsert(ctx, fileID, granteeID, permission)
	if err != nil {
		return Grant{}, false, err
	}
	s.log.Info("share granted",
		zap.String("file_id", fileID.String()),
		zap.String("grantee_id", granteeID.String()),
		zap.String("permission", string(permission)),
		zap.Bool("created", created),
	)
	return g, created, nil
}

// GrantByUsername resolves username and grants as Grant does.
func (s *Service) GrantByUsername(ctx context.Context, ownerID, fileID uuid.UUID, username, rawPermission string) (Grant, bool, error) {
	granteeID, err := s.store.LookupUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return Grant{}, false, err
	}
	return s.Grant(ctx, ownerID, fileID, granteeID, rawPermission)
}

// GrantMany shares every listed file with every listed username.
// Per-pair failures are collected in the result rather than aborting the batch.
func (s *Service) GrantMany(ctx context.Context, ownerID uuid.UUID, fileIDs []uuid.UUID, usernames []string, rawPermission string) (BulkResult, error) {
	result := BulkResult{Created: []BulkItem{}, Updated: []BulkItem{}, Failed: []BulkIssue{}, Skipped: []BulkIssue{}}
	if len(fileIDs) == 0 || len(usernames) == 0 {
		return result, ErrEmptyBulk
	}
	permission, err := s.scheme.Parse(rawPermission)
	if err != nil {
		return result, err
	}

	grantees := make(map[string]uuid.UUID, len(usernames))
	for _, fileID := range fileIDs {
		f, err := s.ownedFile(ctx, ownerID, fileID)
		if err != nil {
			if !errors.Is(err, ErrFileNotFound) {
				return result, err
			}
			result.Failed = append(result.Failed, BulkIssue{FileID: fileID, Reason: ErrFileNotFound.Error()})
			continue
		}

		for _, raw := range usernames {
			username := strings.TrimSpace(raw)
			granteeID, ok := grantees[username]
			if !ok {
				granteeID, err = s.store.LookupUsername(ctx, username)
				if err != nil {
					if !errors.Is(err, ErrGranteeNotFound) {
						return result, err
					}
					result.Failed = append(result.Failed, BulkIssue{FileID: fileID, Username: username, Reason: "user not found"})
					continue
				}
				grantees[username] = granteeID
			}

			if granteeID == ownerID {
				result.Skipped = append(result.Skipped, BulkIssue{FileID: fileID, Username: username, Reason: ErrSelfShare.Error()})
				continue
			}

			g, created, err := s.store.Upsert(ctx, fileID, granteeID, permission)
			if err != nil {
				s.log.Warn("bulk share", zap.String("file_id", fileID.String()), zap.String("username", username), zap.Error(err))
				result.Failed = append(result.Failed, BulkIssue{FileID: fileID, Username: username, Reason: "failed to save share"})
				continue
			}

			item := BulkItem{FileID: fileID, Filename: f.OriginalFilename, Username: username, GranteeID: g.GranteeID, Permission: g.Permission}
			if created {
				result.Created = append(result.Created, item)
			} else {
				result.Updated = append(result.Updated, item)
			}
		}
	}
	return result, nil
}

// Revoke removes the grant and returns it. The grantee loses access immediately.
func (s *Service) Revoke(ctx context.Context, ownerID, fileID, granteeID uuid.UUID) (Grant, error) {
	if _, err := s.ownedFile(ctx, ownerID, fileID); err != nil {
		return Grant{}, err
	}
	g, err := s.store.Delete(ctx, fileID, granteeID)
	if err != nil {
		return Grant{}, err
	}
	s.log.Info("share revoked", zap.String("file_id", fileID.String()), zap.String("grantee_id", granteeID.String()))
	return g, nil
}

// Find returns the grant for the pair, for access resolution.
func (s *Service) Find(ctx context.Context, fileID, granteeID uuid.UUID) (Grant, error) {
	return s.store.Find(ctx, fileID, granteeID)
}

// ListForFile lists grantees of the owner's file.
func (s *Service) ListForFile(ctx context.Context, ownerID, fileID uuid.UUID) ([]Recipient, error) {
	if _, err := s.ownedFile(ctx, ownerID, fileID); err != nil {
		return nil, err
	}
	return s.store.ListForFile(ctx, fileID)
}

// ListForGrantee lists files shared with the user.
func (s *Service) ListForGrantee(ctx context.Context, granteeID uuid.UUID) ([]Shared, error) {
	return s.store.ListForGrantee(ctx, granteeID)
}

// Stats summarizes sharing activity for the user.
func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (Stats, error) {
	return s.store.Stats(ctx, userID)
}

func (s *Service) ownedFile(ctx context.Context, ownerID, fileID uuid.UUID) (file.File, error) {
	f, err := s.files.Find(ctx, fileID)
	if err != nil {
		if errors.Is(err, file.ErrFileNotFound) {
			return file.File{}, ErrFileNotFound
		}
		return file.File{}, err
	}
	if f.OwnerID != ownerID {
		return file.File{}, ErrFileNotFound
	}
	return f, nil
}
