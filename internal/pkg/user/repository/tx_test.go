package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countRecords(t *testing.T, s *SQLStorage) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&n))
	return n
}

func insertRecord(ctx context.Context, tx querier) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO records (record_key, attrs) VALUES ('user:1', '{}')`)
	return err
}

func TestInTx_Commit(t *testing.T) {
	s := newSQLiteStorage(t)
	ctx := context.Background()

	require.NoError(t, s.inTx(ctx, func(tx querier) error { return insertRecord(ctx, tx) }))
	assert.Equal(t, 1, countRecords(t, s))
}

func TestInTx_RollbackOnError(t *testing.T) {
	s := newSQLiteStorage(t)
	ctx := context.Background()

	err := s.inTx(ctx, func(tx querier) error {
		require.NoError(t, insertRecord(ctx, tx))
		return errors.New("boom")
	})
	require.EqualError(t, err, "boom")
	assert.Equal(t, 0, countRecords(t, s))
}

func TestInTx_RollbackOnPanic(t *testing.T) {
	s := newSQLiteStorage(t)
	ctx := context.Background()

	assert.PanicsWithValue(t, "kaput", func() {
		_ = s.inTx(ctx, func(tx querier) error {
			require.NoError(t, insertRecord(ctx, tx))
			panic("kaput")
		})
	})
	assert.Equal(t, 0, countRecords(t, s))
}

func TestInTx_BeginError(t *testing.T) {
	s := newSQLiteStorage(t)
	require.NoError(t, s.db.Close())

	err := s.inTx(context.Background(), func(querier) error { return nil })
	require.Error(t, err)
}
