// Package vault orchestrates uploads, downloads and deletion of client-encrypted files.
package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/abduss/cryptovault/internal/access"
	"github.com/abduss/cryptovault/internal/blob"
	"github.com/abduss/cryptovault/internal/config"
	"github.com/abduss/cryptovault/internal/file"
	"github.com/abduss/cryptovault/internal/metrics"
	"github.com/abduss/cryptovault/internal/quota"
	"github.com/abduss/cryptovault/internal/share"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultMaxFileSize = 100 * 1024 * 1024 // 100MB

type registry interface {
	Create(ctx context.Context, f file.File) (file.File, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]file.File, error)
	Delete(ctx context.Context, id, ownerID uuid.UUID) (file.File, error)
	MarkDeleted(ctx context.Context, id, ownerID uuid.UUID, newPath string) (file.File, error)
	UsageByOwner(ctx context.Context, ownerID uuid.UUID) (file.Usage, error)
}

type sharedLister interface {
	ListForGrantee(ctx context.Context, granteeID uuid.UUID) ([]share.Shared, error)
}

type resolver interface {
	Resolve(ctx context.Context, principal, fileID uuid.UUID) (access.Decision, error)
}

type quotaGate interface {
	Admit(ctx context.Context, tenant string, incoming int64) error
	Recheck(ctx context.Context, tenant string) error
	Snapshot(ctx context.Context, tenant string) (quota.Snapshot, error)
}

type locker interface {
	Lock(ctx context.Context, tenant string) (func(), error)
}

// Deps are the collaborators of the orchestrator.
type Deps struct {
	Store  blob.Store
	Files  registry
	Shares sharedLister
	Access resolver
	Quota  quotaGate
	Locks  locker
	// Scheme decides which shared entries appear in listings. Defaults to tiered.
	Scheme share.Scheme
}

// Options tune the orchestrator.
type Options struct {
	MaxFileSize int64
	// DeleteMode is config.DeleteModeSoft (default) or config.DeleteModeHard.
	DeleteMode string
	Logger     *zap.Logger
}

// Service runs upload, download, listing and deletion flows.
type Service struct {
	store       blob.Store
	files       registry
	shares      sharedLister
	scheme      share.Scheme
	access      resolver
	quota       quotaGate
	locks       locker
	maxFileSize int64
	remove      func(ctx context.Context, f file.File) error
	log         *zap.Logger
}

// NewService wires the orchestrator. The lifecycle model is fixed here for the life of the service.
func NewService(deps Deps, opts Options) (*Service, error) {
	s := &Service{
		store:       deps.Store,
		files:       deps.Files,
		shares:      deps.Shares,
		scheme:      deps.Scheme,
		access:      deps.Access,
		quota:       deps.Quota,
		locks:       deps.Locks,
		maxFileSize: opts.MaxFileSize,
		log:         opts.Logger,
	}
	if s.maxFileSize <= 0 {
		s.maxFileSize = defaultMaxFileSize
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.locks == nil {
		s.locks = quota.NewLocks()
	}
	if s.scheme.Name() == "" {
		s.scheme = share.TieredScheme()
	}

	switch strings.ToLower(opts.DeleteMode) {
	case "", config.DeleteModeSoft:
		s.remove = s.softDelete
	case config.DeleteModeHard:
		s.remove = s.hardDelete
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDeleteMode, opts.DeleteMode)
	}
	return s, nil
}

// Upload admits, stores and records a ciphertext blob for the principal.
func (s *Service) Upload(ctx context.Context, p Principal, req UploadRequest) (Uploaded, error) {
	if err := file.ValidateEnvelope(req.OriginalFilename, req.Algorithm, req.IV); err != nil {
		metrics.UploadFailed("validation")
		return Uploaded{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if req.Body == nil {
		metrics.UploadFailed("validation")
		return Uploaded{}, fmt.Errorf("%w: missing file payload", ErrValidation)
	}
	if req.DeclaredSize > s.maxFileSize {
		metrics.UploadFailed("validation")
		return Uploaded{}, fmt.Errorf("%w: file too large, maximum size is %dMB", ErrValidation, s.maxFileSize/(1024*1024))
	}

	unlock, err := s.locks.Lock(ctx, p.Tenant)
	if err != nil {
		return Uploaded{}, err
	}
	defer unlock()

	incoming := max(req.DeclaredSize, 0)
	if err := s.quota.Admit(ctx, p.Tenant, incoming); err != nil {
		return Uploaded{}, s.uploadRejected(p, err)
	}

	storagePath, err := s.store.GeneratePath(p.Tenant)
	if err != nil {
		metrics.UploadFailed("validation")
		return Uploaded{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	written, err := s.store.Write(ctx, storagePath, io.LimitReader(req.Body, s.maxFileSize+1))
	if err != nil {
		metrics.UploadFailed("storage")
		s.log.Error("write blob", zap.String("tenant", p.Tenant), zap.Error(err))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Uploaded{}, ctxErr
		}
		return Uploaded{}, fmt.Errorf("store ciphertext: %w", err)
	}

	switch {
	case written > s.maxFileSize:
		s.discard(storagePath)
		metrics.UploadFailed("validation")
		return Uploaded{}, fmt.Errorf("%w: file too large, maximum size is %dMB", ErrValidation, s.maxFileSize/(1024*1024))
	case req.DeclaredSize >= 0 && written != req.DeclaredSize:
		s.discard(storagePath)
		metrics.UploadFailed("validation")
		return Uploaded{}, fmt.Errorf("%w: received %d bytes, declared %d", ErrValidation, written, req.DeclaredSize)
	}

	// Another process sharing the storage root may have written in the meantime.
	if err := s.quota.Recheck(ctx, p.Tenant); err != nil {
		s.discard(storagePath)
		return Uploaded{}, s.uploadRejected(p, err)
	}

	contentType := strings.TrimSpace(req.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	stored, err := s.files.Create(ctx, file.File{
		ID:               uuid.New(),
		OwnerID:          p.ID,
		OriginalFilename: strings.TrimSpace(req.OriginalFilename),
		SizeBytes:        written,
		ContentType:      contentType,
		Algorithm:        req.Algorithm,
		IV:               req.IV,
		StoragePath:      storagePath,
	})
	if err != nil {
		s.discard(storagePath)
		metrics.UploadFailed("metadata")
		return Uploaded{}, fmt.Errorf("record file metadata: %w", err)
	}

	metrics.UploadAccepted(written)
	s.log.Info("upload stored",
		zap.String("tenant", p.Tenant),
		zap.String("file_id", stored.ID.String()),
		zap.Int64("size", written),
	)
	return Uploaded{
		ID:        stored.ID,
		Filename:  stored.OriginalFilename,
		Size:      stored.SizeBytes,
		CreatedAt: stored.CreatedAt,
	}, nil
}

// Download opens the ciphertext for the principal if they own it or hold a download grant.
func (s *Service) Download(ctx context.Context, p Principal, fileID uuid.UUID) (Download, error) {
	decision, err := s.resolve(ctx, p, fileID)
	if err != nil {
		return Download{}, err
	}
	if !decision.CanDownload() {
		return Download{}, ErrDownloadNotPermitted
	}

	f := decision.File
	body, size, err := s.store.Open(ctx, f.StoragePath)
	if err != nil {
		if errors.Is(err, blob.ErrBlobNotFound) {
			return Download{}, s.inconsistent("missing_blob", f, err)
		}
		return Download{}, fmt.Errorf("open ciphertext: %w", err)
	}
	if size != f.SizeBytes {
		body.Close()
		return Download{}, s.inconsistent("size_mismatch", f, fmt.Errorf("stored %d bytes, recorded %d", size, f.SizeBytes))
	}

	return Download{File: f, Size: size, Body: body}, nil
}

// Info returns metadata for a file the principal can see.
func (s *Service) Info(ctx context.Context, p Principal, fileID uuid.UUID) (Info, error) {
	decision, err := s.resolve(ctx, p, fileID)
	if err != nil {
		return Info{}, err
	}
	info := Info{File: decision.File, AccessType: decision.Level.String(), Permission: decision.Permission, Rights: decision.Rights}
	if decision.IsOwner() {
		info.Rights = share.Rights{View: true, Download: true, Write: true}
	}
	return info, nil
}

// List merges owned files and files shared with the principal, owned first, each newest first.
func (s *Service) List(ctx context.Context, p Principal) ([]Entry, error) {
	owned, err := s.files.FindByOwner(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list owned files: %w", err)
	}
	shared, err := s.shares.ListForGrantee(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list shared files: %w", err)
	}

	entries := make([]Entry, 0, len(owned)+len(shared))
	for _, f := range owned {
		entries = append(entries, ownedEntry(f))
	}
	for _, sh := range shared {
		// Grants outside the active scheme confer nothing and stay hidden.
		if !s.scheme.Rights(sh.Permission).View {
			continue
		}
		entries = append(entries, sharedEntry(sh))
	}
	return entries, nil
}

// Delete removes the principal's file using the configured lifecycle model.
// Grantees, whatever their permission, cannot delete.
func (s *Service) Delete(ctx context.Context, p Principal, fileID uuid.UUID) error {
	decision, err := s.resolve(ctx, p, fileID)
	if err != nil {
		return err
	}
	if !decision.IsOwner() {
		return ErrAccessDenied
	}
	if err := s.remove(ctx, decision.File); err != nil {
		if errors.Is(err, file.ErrFileNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.log.Info("file deleted", zap.String("tenant", p.Tenant), zap.String("file_id", fileID.String()))
	return nil
}

// QuotaReport is the tenant's byte snapshot plus the registry's view of it.
type QuotaReport struct {
	quota.Snapshot
	FileCount     int64 `json:"file_count"`
	DeclaredBytes int64 `json:"declared_bytes"`
}

// Quota reports the principal's current usage. Bytes are measured from the
// blob store; the file count and declared sizes come from the registry.
func (s *Service) Quota(ctx context.Context, p Principal) (QuotaReport, error) {
	snap, err := s.quota.Snapshot(ctx, p.Tenant)
	if err != nil {
		return QuotaReport{}, err
	}
	usage, err := s.files.UsageByOwner(ctx, p.ID)
	if err != nil {
		return QuotaReport{}, fmt.Errorf("registry usage: %w", err)
	}
	return QuotaReport{Snapshot: snap, FileCount: usage.FileCount, DeclaredBytes: usage.Bytes}, nil
}

// softDelete quarantines the blob, then flips the record and drops its grants.
func (s *Service) softDelete(ctx context.Context, f file.File) error {
	tenant, err := blob.Tenant(f.StoragePath)
	if err != nil {
		return s.inconsistent("bad_path", f, err)
	}

	newPath, err := s.store.RelocateToDeleted(ctx, f.StoragePath, tenant)
	relocated := err == nil
	switch {
	case err == nil:
	case errors.Is(err, blob.ErrBlobNotFound):
		// Nothing to quarantine; still retire the record.
		_ = s.inconsistent("missing_blob", f, err)
		newPath = f.StoragePath
	default:
		return fmt.Errorf("quarantine ciphertext: %w", err)
	}

	if _, err := s.files.MarkDeleted(ctx, f.ID, f.OwnerID, newPath); err != nil {
		if relocated {
			if moveErr := s.store.Move(context.WithoutCancel(ctx), newPath, f.StoragePath); moveErr != nil {
				s.log.Error("restore quarantined blob",
					zap.String("file_id", f.ID.String()),
					zap.String("path", newPath),
					zap.Error(moveErr),
				)
			}
		}
		return fmt.Errorf("mark file deleted: %w", err)
	}
	return nil
}

// hardDelete drops the record first so the file disappears even if blob removal fails.
func (s *Service) hardDelete(ctx context.Context, f file.File) error {
	if _, err := s.files.Delete(ctx, f.ID, f.OwnerID); err != nil {
		return fmt.Errorf("delete file metadata: %w", err)
	}
	if err := s.store.Remove(context.WithoutCancel(ctx), f.StoragePath); err != nil {
		if errors.Is(err, blob.ErrBlobNotFound) {
			_ = s.inconsistent("missing_blob", f, err)
			return nil
		}
		// The reconciliation sweep collects the orphan.
		s.log.Warn("remove ciphertext after delete",
			zap.String("file_id", f.ID.String()),
			zap.String("path", f.StoragePath),
			zap.Error(err),
		)
	}
	return nil
}

func (s *Service) resolve(ctx context.Context, p Principal, fileID uuid.UUID) (access.Decision, error) {
	decision, err := s.access.Resolve(ctx, p.ID, fileID)
	if err != nil {
		return access.Decision{}, fmt.Errorf("resolve access: %w", err)
	}
	if !decision.CanView() {
		return access.Decision{}, ErrAccessDenied
	}
	return decision, nil
}

func (s *Service) uploadRejected(p Principal, err error) error {
	if errors.Is(err, quota.ErrQuotaExceeded) {
		metrics.QuotaRejected()
		metrics.UploadFailed("quota")
		s.log.Info("upload rejected by quota", zap.String("tenant", p.Tenant), zap.Error(err))
		return err
	}
	metrics.UploadFailed("storage")
	return fmt.Errorf("check quota: %w", err)
}

// discard removes a blob that will never be committed.
func (s *Service) discard(storagePath string) {
	if err := s.store.Remove(context.Background(), storagePath); err != nil && !errors.Is(err, blob.ErrBlobNotFound) {
		s.log.Error("discard uncommitted blob", zap.String("path", storagePath), zap.Error(err))
	}
}

func (s *Service) inconsistent(kind string, f file.File, cause error) error {
	metrics.DataInconsistency(kind)
	s.log.Error("data inconsistency",
		zap.String("kind", kind),
		zap.String("file_id", f.ID.String()),
		zap.String("owner_id", f.OwnerID.String()),
		zap.String("path", f.StoragePath),
		zap.Error(cause),
	)
	return fmt.Errorf("%w: %s: %w", ErrDataInconsistency, kind, cause)
}
