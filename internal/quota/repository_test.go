package quota

import (
	"context"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActiveUsage(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	alice, bob := uuid.New(), uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users u")).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "total_bytes", "file_count"}).
			AddRow(alice, "alice", int64(120), int64(3)).
			AddRow(bob, "bob", int64(0), int64(0)))

	usage, err := NewRepository(mock).ActiveUsage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Usage{
		{UserID: alice, Username: "alice", Bytes: 120, FileCount: 3},
		{UserID: bob, Username: "bob", Bytes: 0, FileCount: 0},
	}, usage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSnapshot(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	user := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO usage_snapshots")).
		WithArgs(user, int64(40), int64(10), int64(2)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewRepository(mock).RecordSnapshot(context.Background(), user, Snapshot{UsedBytes: 40, DeletedBytes: 10}, 2)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
