package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/stmtimport/internal/model"
)

// These tests need a disposable database. Each test works in its own account
// so runs do not interfere.
func openTest(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("STMTIMPORT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("STMTIMPORT_TEST_POSTGRES_DSN not set")
	}
	s, err := Open(context.Background(), dsn, 4)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func account() string {
	return "acct-" + uuid.NewString()
}

func TestCommitAndReadBack(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	acct := account()
	batchID := uuid.NewString()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreateBatch(ctx, model.ImportBatch{
		ID: batchID, Filename: "jan.ofx", AccountID: acct, CreatedAt: time.Now(), RecordCount: 1, Source: "<OFX>",
	}))
	_, err = tx.InsertEntry(ctx, model.LedgerEntry{
		AccountID:  acct,
		Date:       model.Date(2024, time.January, 5),
		Amount:     decimal.RequireFromString("120.50"),
		Direction:  model.Outflow,
		Category:   model.Uncategorized,
		Provenance: batchID,
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, tx.Rollback(ctx))

	entries, err := s.EntriesByAccount(ctx, acct)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.Date(2024, time.January, 5), entries[0].Date)
	assert.True(t, decimal.RequireFromString("120.5").Equal(entries[0].Amount))
	assert.Equal(t, batchID, entries[0].Provenance)

	b, ok, err := s.Batch(ctx, batchID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, acct, b.AccountID)

	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	n, err := tx.DeleteEntriesByBatch(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	found, err := tx.DeleteBatch(ctx, batchID)
	require.NoError(t, err)
	assert.True(t, found)
	require.NoError(t, tx.Commit(ctx))

	entries, err = s.EntriesByAccount(ctx, acct)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRollbackDiscards(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	acct := account()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.InsertEntry(ctx, model.LedgerEntry{
		AccountID: acct,
		Date:      model.Date(2024, time.January, 1),
		Amount:    decimal.RequireFromString("1"),
		Direction: model.Inflow,
		Category:  "misc",
	})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))

	entries, err := s.EntriesByAccount(ctx, acct)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, ok, err := s.Batch(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.False(t, ok)
}
