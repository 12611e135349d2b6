package file

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{"id", "owner_id", "original_filename", "size_bytes", "content_type", "encryption_algo", "iv", "storage_path", "status", "created_at", "updated_at"}

func sampleFile() File {
	return File{
		ID:               uuid.New(),
		OwnerID:          uuid.New(),
		OriginalFilename: "report.pdf",
		SizeBytes:        42,
		ContentType:      "application/octet-stream",
		Algorithm:        "AES-256-GCM",
		IV:               "AAECAwQFBgcICQoL",
		StoragePath:      "alice/uploads/7b0c.enc",
		Status:           StatusActive,
	}
}

func fileRow(f File) *pgxmock.Rows {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return pgxmock.NewRows(columns).AddRow(
		f.ID, f.OwnerID, f.OriginalFilename, f.SizeBytes, f.ContentType,
		f.Algorithm, f.IV, f.StoragePath, f.Status, now, now,
	)
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestCreateStoresRecord(t *testing.T) {
	mock := newMock(t)
	f := sampleFile()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO files")).
		WithArgs(f.ID, f.OwnerID, f.OriginalFilename, f.SizeBytes, f.ContentType, f.Algorithm, f.IV, f.StoragePath).
		WillReturnRows(fileRow(f))

	stored, err := NewRepository(mock).Create(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, f.ID, stored.ID)
	assert.Equal(t, StatusActive, stored.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRejectsMissingEncryptionFields(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)

	noAlgo := sampleFile()
	noAlgo.Algorithm = ""
	_, err := repo.Create(context.Background(), noAlgo)
	assert.ErrorIs(t, err, ErrMissingEncryption)

	noIV := sampleFile()
	noIV.IV = " "
	_, err = repo.Create(context.Background(), noIV)
	assert.ErrorIs(t, err, ErrMissingEncryption)

	badIV := sampleFile()
	badIV.IV = "not*base64"
	_, err = repo.Create(context.Background(), badIV)
	assert.ErrorIs(t, err, ErrInvalidIV)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMapsDuplicatePath(t *testing.T) {
	mock := newMock(t)
	f := sampleFile()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO files")).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := NewRepository(mock).Create(context.Background(), f)
	assert.ErrorIs(t, err, ErrPathTaken)
}

func TestFindMissingFile(t *testing.T) {
	mock := newMock(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM files WHERE id = $1 AND status = 'active'")).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := NewRepository(mock).Find(context.Background(), id)
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestFindByOwnerKeepsOrder(t *testing.T) {
	mock := newMock(t)
	newer, older := sampleFile(), sampleFile()
	older.OwnerID = newer.OwnerID

	now := time.Now()
	rows := pgxmock.NewRows(columns).
		AddRow(newer.ID, newer.OwnerID, newer.OriginalFilename, newer.SizeBytes, newer.ContentType, newer.Algorithm, newer.IV, newer.StoragePath, newer.Status, now, now).
		AddRow(older.ID, older.OwnerID, older.OriginalFilename, older.SizeBytes, older.ContentType, older.Algorithm, older.IV, older.StoragePath, older.Status, now.Add(-time.Hour), now.Add(-time.Hour))

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
		WithArgs(newer.OwnerID).
		WillReturnRows(rows)

	files, err := NewRepository(mock).FindByOwner(context.Background(), newer.OwnerID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, newer.ID, files[0].ID)
	assert.Equal(t, older.ID, files[1].ID)
}

func TestDeleteIsScopedByOwner(t *testing.T) {
	mock := newMock(t)
	f := sampleFile()
	stranger := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM files")).
		WithArgs(f.ID, stranger).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM files")).
		WithArgs(f.ID, f.OwnerID).
		WillReturnRows(fileRow(f))

	repo := NewRepository(mock)
	_, err := repo.Delete(context.Background(), f.ID, stranger)
	assert.ErrorIs(t, err, ErrFileNotFound)

	deleted, err := repo.Delete(context.Background(), f.ID, f.OwnerID)
	require.NoError(t, err)
	assert.Equal(t, f.StoragePath, deleted.StoragePath)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkDeletedDropsSharesInTransaction(t *testing.T) {
	mock := newMock(t)
	f := sampleFile()
	quarantined := f
	quarantined.StoragePath = "alice/deleted/20240301_100000_7b0c.enc"
	quarantined.Status = StatusDeleted

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE files")).
		WithArgs(f.ID, f.OwnerID, quarantined.StoragePath).
		WillReturnRows(fileRow(quarantined))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM shares WHERE file_id = $1")).
		WithArgs(f.ID).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCommit()
	// BeginFunc always rolls back in a deferred call; after commit it is a no-op.
	mock.ExpectRollback()

	got, err := NewRepository(mock).MarkDeleted(context.Background(), f.ID, f.OwnerID, quarantined.StoragePath)
	require.NoError(t, err)
	assert.Equal(t, StatusDeleted, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkDeletedRollsBackOnFailure(t *testing.T) {
	mock := newMock(t)
	f := sampleFile()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE files")).
		WithArgs(f.ID, f.OwnerID, "alice/deleted/x.enc").
		WillReturnRows(fileRow(f))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM shares")).
		WithArgs(f.ID).
		WillReturnError(errors.New("connection lost"))
	mock.ExpectRollback()

	_, err := NewRepository(mock).MarkDeleted(context.Background(), f.ID, f.OwnerID, "alice/deleted/x.enc")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageByOwner(t *testing.T) {
	mock := newMock(t)
	owner := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(SUM(size_bytes), 0)")).
		WithArgs(owner).
		WillReturnRows(pgxmock.NewRows([]string{"sum", "count"}).AddRow(int64(300), int64(4)))

	usage, err := NewRepository(mock).UsageByOwner(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, Usage{Bytes: 300, FileCount: 4}, usage)
}
