package file

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abduss/cryptovault/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const repoTimeout = 5 * time.Second

const fileColumns = `id, owner_id, original_filename, size_bytes, content_type, encryption_algo, iv, storage_path, status, created_at, updated_at`

// Repository provides access to file metadata storage.
type Repository struct {
	db storage.DB
}

// NewRepository builds a new file repository.
func NewRepository(db storage.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts metadata for a new file. Records without algorithm or IV are refused.
func (r *Repository) Create(ctx context.Context, f File) (File, error) {
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.ContentType == "" {
		f.ContentType = "application/octet-stream"
	}

	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
INSERT INTO files (id, owner_id, original_filename, size_bytes, content_type, encryption_algo, iv, storage_path, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'active')
RETURNING ` + fileColumns + `;`

	row := r.db.QueryRow(ctx, query,
		f.ID,
		f.OwnerID,
		strings.TrimSpace(f.OriginalFilename),
		f.SizeBytes,
		f.ContentType,
		f.Algorithm,
		f.IV,
		f.StoragePath,
	)

	stored, err := scanFile(row)
	if err != nil {
		if isUniqueViolation(err) {
			return File{}, ErrPathTaken
		}
		return File{}, fmt.Errorf("create file metadata: %w", err)
	}
	return stored, nil
}

// Find fetches an active file by id regardless of owner.
func (r *Repository) Find(ctx context.Context, id uuid.UUID) (File, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1 AND status = 'active';`

	f, err := scanFile(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return File{}, ErrFileNotFound
		}
		return File{}, fmt.Errorf("get file metadata: %w", err)
	}
	return f, nil
}

// FindByOwner lists the owner's active files, newest first.
func (r *Repository) FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]File, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT ` + fileColumns + `
FROM files
WHERE owner_id = $1 AND status = 'active'
ORDER BY created_at DESC;`

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file metadata: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return files, nil
}

// Delete removes the owner's file record and returns it. Grants go with it through the foreign key.
func (r *Repository) Delete(ctx context.Context, id, ownerID uuid.UUID) (File, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
DELETE FROM files
WHERE id = $1 AND owner_id = $2 AND status = 'active'
RETURNING ` + fileColumns + `;`

	f, err := scanFile(r.db.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return File{}, ErrFileNotFound
		}
		return File{}, fmt.Errorf("delete file metadata: %w", err)
	}
	return f, nil
}

// MarkDeleted flips the owner's file to deleted, records its quarantine path
// and drops every grant on it in one transaction.
func (r *Repository) MarkDeleted(ctx context.Context, id, ownerID uuid.UUID, newPath string) (File, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	var f File
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		query := `
UPDATE files
SET status = 'deleted', storage_path = $3, deleted_at = NOW(), updated_at = NOW()
WHERE id = $1 AND owner_id = $2 AND status = 'active'
RETURNING ` + fileColumns + `;`

		var err error
		f, err = scanFile(tx.QueryRow(ctx, query, id, ownerID, newPath))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrFileNotFound
			}
			return fmt.Errorf("mark file deleted: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM shares WHERE file_id = $1;`, id); err != nil {
			return fmt.Errorf("drop shares of deleted file: %w", err)
		}
		return nil
	})
	if err != nil {
		return File{}, err
	}
	return f, nil
}

// ListStoragePaths returns every recorded path, active and deleted.
func (r *Repository) ListStoragePaths(ctx context.Context) ([]Located, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `SELECT id, owner_id, storage_path, size_bytes, status FROM files;`)
	if err != nil {
		return nil, fmt.Errorf("list storage paths: %w", err)
	}
	defer rows.Close()

	var located []Located
	for rows.Next() {
		var l Located
		if err := rows.Scan(&l.ID, &l.OwnerID, &l.StoragePath, &l.SizeBytes, &l.Status); err != nil {
			return nil, fmt.Errorf("scan storage path: %w", err)
		}
		located = append(located, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate storage paths: %w", err)
	}
	return located, nil
}

// UsageByOwner sums declared sizes of the owner's active files.
func (r *Repository) UsageByOwner(ctx context.Context, ownerID uuid.UUID) (Usage, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT COALESCE(SUM(size_bytes), 0), COUNT(*)
FROM files
WHERE owner_id = $1 AND status = 'active';`

	var u Usage
	if err := r.db.QueryRow(ctx, query, ownerID).Scan(&u.Bytes, &u.FileCount); err != nil {
		return Usage{}, fmt.Errorf("sum file usage: %w", err)
	}
	return u, nil
}

func scanFile(row pgx.Row) (File, error) {
	var f File
	err := row.Scan(
		&f.ID,
		&f.OwnerID,
		&f.OriginalFilename,
		&f.SizeBytes,
		&f.ContentType,
		&f.Algorithm,
		&f.IV,
		&f.StoragePath,
		&f.Status,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	return f, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
