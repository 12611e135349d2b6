package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/abduss/cryptovault/internal/storage"
	"github.com/google/uuid"
)

const repositoryTimeout = 5 * time.Second

// Usage is the metadata-side view of a tenant's stored bytes.
type Usage struct {
	UserID    uuid.UUID
	Username  string
	Bytes     int64
	FileCount int64
}

// Repository persists usage history and exposes metadata-side totals.
type Repository struct {
	db storage.DB
}

// NewRepository constructs a quota repository.
func NewRepository(db storage.DB) *Repository {
	return &Repository{db: db}
}

// ActiveUsage sums declared sizes of active files per user, including users without files.
func (r *Repository) ActiveUsage(ctx context.Context) ([]Usage, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
SELECT u.id,
       u.username,
       COALESCE(SUM(f.size_bytes), 0) AS total_bytes,
       COUNT(f.id) AS file_count
FROM users u
LEFT JOIN files f ON f.owner_id = u.id AND f.status = 'active'
GROUP BY u.id, u.username
ORDER BY u.username;`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query active usage: %w", err)
	}
	defer rows.Close()

	var usage []Usage
	for rows.Next() {
		var u Usage
		if err := rows.Scan(&u.UserID, &u.Username, &u.Bytes, &u.FileCount); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		usage = append(usage, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage: %w", err)
	}
	return usage, nil
}

// RecordSnapshot stores the measured usage for the user.
func (r *Repository) RecordSnapshot(ctx context.Context, userID uuid.UUID, snap Snapshot, fileCount int64) error {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
INSERT INTO usage_snapshots (user_id, used_bytes, deleted_bytes, file_count)
VALUES ($1, $2, $3, $4);`

	if _, err := r.db.Exec(ctx, query, userID, snap.UsedBytes, snap.DeletedBytes, fileCount); err != nil {
		return fmt.Errorf("record usage snapshot: %w", err)
	}
	return nil
}
