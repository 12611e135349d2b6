package share

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abduss/cryptovault/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const repoTimeout = 5 * time.Second

// Repository persists share grants.
type Repository struct {
	db storage.DB
}

// NewRepository builds a share repository.
func NewRepository(db storage.DB) *Repository {
	return &Repository{db: db}
}

// Upsert creates the grant or replaces its permission. created reports which happened.
func (r *Repository) Upsert(ctx context.Context, fileID, granteeID uuid.UUID, permission Permission) (Grant, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
INSERT INTO shares (file_id, grantee_id, permission)
VALUES ($1, $2, $3)
ON CONFLICT (file_id, grantee_id)
DO UPDATE SET permission = EXCLUDED.permission, updated_at = NOW()
RETURNING id, file_id, grantee_id, permission, created_at, updated_at, (xmax = 0) AS inserted;`

	var g Grant
	var created bool
	err := r.db.QueryRow(ctx, query, fileID, granteeID, permission).Scan(
		&g.ID, &g.FileID, &g.GranteeID, &g.Permission, &g.CreatedAt, &g.UpdatedAt, &created,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Grant{}, false, ErrGranteeNotFound
		}
		return Grant{}, false, fmt.Errorf("upsert share: %w", err)
	}
	return g, created, nil
}

// Delete removes the grant and returns it as it was.
func (r *Repository) Delete(ctx context.Context, fileID, granteeID uuid.UUID) (Grant, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
DELETE FROM shares
WHERE file_id = $1 AND grantee_id = $2
RETURNING id, file_id, grantee_id, permission, created_at, updated_at;`

	var g Grant
	err := r.db.QueryRow(ctx, query, fileID, granteeID).Scan(
		&g.ID, &g.FileID, &g.GranteeID, &g.Permission, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Grant{}, ErrShareNotFound
		}
		return Grant{}, fmt.Errorf("delete share: %w", err)
	}
	return g, nil
}

// Find returns the grant for the pair.
func (r *Repository) Find(ctx context.Context, fileID, granteeID uuid.UUID) (Grant, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT id, file_id, grantee_id, permission, created_at, updated_at
FROM shares
WHERE file_id = $1 AND grantee_id = $2;`

	var g Grant
	err := r.db.QueryRow(ctx, query, fileID, granteeID).Scan(
		&g.ID, &g.FileID, &g.GranteeID, &g.Permission, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Grant{}, ErrShareNotFound
		}
		return Grant{}, fmt.Errorf("find share: %w", err)
	}
	return g, nil
}

// ListForFile returns every grantee of the file.
func (r *Repository) ListForFile(ctx context.Context, fileID uuid.UUID) ([]Recipient, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT s.grantee_id, u.username, s.permission, s.created_at
FROM shares s
JOIN users u ON u.id = s.grantee_id
WHERE s.file_id = $1
ORDER BY s.created_at DESC;`

	rows, err := r.db.Query(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("list file shares: %w", err)
	}
	defer rows.Close()

	recipients := []Recipient{}
	for rows.Next() {
		var rc Recipient
		if err := rows.Scan(&rc.GranteeID, &rc.GranteeUsername, &rc.Permission, &rc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan file share: %w", err)
		}
		recipients = append(recipients, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file shares: %w", err)
	}
	return recipients, nil
}

// ListForGrantee returns active files shared with the grantee, newest grant first.
func (r *Repository) ListForGrantee(ctx context.Context, granteeID uuid.UUID) ([]Shared, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT f.id, f.original_filename, f.size_bytes, f.content_type, f.created_at,
       o.id, o.username, s.permission, s.created_at
FROM shares s
JOIN files f ON f.id = s.file_id AND f.status = 'active'
JOIN users o ON o.id = f.owner_id
WHERE s.grantee_id = $1
ORDER BY s.created_at DESC;`

	rows, err := r.db.Query(ctx, query, granteeID)
	if err != nil {
		return nil, fmt.Errorf("list shared files: %w", err)
	}
	defer rows.Close()

	shared := []Shared{}
	for rows.Next() {
		var s Shared
		if err := rows.Scan(
			&s.FileID, &s.OriginalFilename, &s.SizeBytes, &s.ContentType, &s.FileCreatedAt,
			&s.OwnerID, &s.OwnerUsername, &s.Permission, &s.SharedAt,
		); err != nil {
			return nil, fmt.Errorf("scan shared file: %w", err)
		}
		shared = append(shared, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shared files: %w", err)
	}
	return shared, nil
}

// Stats counts grants on both sides for the user.
func (r *Repository) Stats(ctx context.Context, userID uuid.UUID) (Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT
    (SELECT COUNT(DISTINCT s.file_id) FROM shares s JOIN files f ON f.id = s.file_id AND f.status = 'active' WHERE f.owner_id = $1),
    (SELECT COUNT(*) FROM shares s JOIN files f ON f.id = s.file_id AND f.status = 'active' WHERE s.grantee_id = $1),
    (SELECT COUNT(DISTINCT f.owner_id) FROM shares s JOIN files f ON f.id = s.file_id AND f.status = 'active' WHERE s.grantee_id = $1),
    (SELECT COUNT(DISTINCT s.grantee_id) FROM shares s JOIN files f ON f.id = s.file_id AND f.status = 'active' WHERE f.owner_id = $1);`

	var st Stats
	if err := r.db.QueryRow(ctx, query, userID).Scan(
		&st.FilesYouShared, &st.FilesSharedWithYou, &st.UsersWhoSharedWithYou, &st.UsersYouSharedWith,
	); err != nil {
		return Stats{}, fmt.Errorf("share stats: %w", err)
	}
	return st, nil
}

// LookupUsername resolves an active user's id.
func (r *Repository) LookupUsername(ctx context.Context, username string) (uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	var id uuid.UUID
	err := r.db.QueryRow(ctx, `SELECT id FROM users WHERE username = $1 AND is_active;`, username).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrGranteeNotFound
		}
		return uuid.Nil, fmt.Errorf("lookup username: %w", err)
	}
	return id, nil
}
