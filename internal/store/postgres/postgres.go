// Package postgres stores the ledger and import batches in PostgreSQL.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/stmtimport/internal/engine"
	"github.com/cleared-dev/stmtimport/internal/model"
)

//go:embed schema.sql
var schema string

// Store implements engine.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn, verifies the connection and applies the schema.
// maxConns <= 0 keeps the pool default.
func Open(ctx context.Context, dsn string, maxConns int) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const entryColumns = `id, account_id, date, description, amount::text, direction, category, reference, auto_reconciled, import_batch_id`

// EntriesByAccount returns every ledger entry of an account ordered by date, then id.
func (s *Store) EntriesByAccount(ctx context.Context, accountID string) ([]model.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE account_id = $1 ORDER BY date, id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	return collectEntries(rows)
}

// EntriesByBatch returns the entries an import batch created.
func (s *Store) EntriesByBatch(ctx context.Context, batchID string) ([]model.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE import_batch_id = $1 ORDER BY id`, batchID)
	if err != nil {
		return nil, fmt.Errorf("querying batch entries: %w", err)
	}
	return collectEntries(rows)
}

// AddEntry appends a manual (or pre-stamped) entry outside any import.
func (s *Store) AddEntry(ctx context.Context, e model.LedgerEntry) (int64, error) {
	return insertEntry(ctx, s.pool, e)
}

// Batch returns one import batch.
func (s *Store) Batch(ctx context.Context, id string) (model.ImportBatch, bool, error) {
	var b model.ImportBatch
	err := s.pool.QueryRow(ctx,
		`SELECT id, filename, account_id, created_at, record_count, source FROM import_batches WHERE id = $1`, id).
		Scan(&b.ID, &b.Filename, &b.AccountID, &b.CreatedAt, &b.RecordCount, &b.Source)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ImportBatch{}, false, nil
	}
	if err != nil {
		return model.ImportBatch{}, false, fmt.Errorf("querying batch: %w", err)
	}
	b.CreatedAt = b.CreatedAt.UTC()
	return b, true, nil
}

// Batches lists an account's import batches, newest first.
func (s *Store) Batches(ctx context.Context, accountID string) ([]model.ImportBatch, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, filename, account_id, created_at, record_count, source FROM import_batches
		 WHERE account_id = $1 ORDER BY created_at DESC, id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("querying batches: %w", err)
	}
	defer rows.Close()

	var batches []model.ImportBatch
	for rows.Next() {
		var b model.ImportBatch
		if err := rows.Scan(&b.ID, &b.Filename, &b.AccountID, &b.CreatedAt, &b.RecordCount, &b.Source); err != nil {
			return nil, fmt.Errorf("scanning batch: %w", err)
		}
		b.CreatedAt = b.CreatedAt.UTC()
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// Begin starts a write transaction.
func (s *Store) Begin(ctx context.Context) (engine.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Tx implements engine.Tx over a pgx transaction.
type Tx struct {
	tx pgx.Tx
}

// CreateBatch inserts the batch row.
func (t *Tx) CreateBatch(ctx context.Context, b model.ImportBatch) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO import_batches (id, filename, account_id, created_at, record_count, source)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		b.ID, b.Filename, b.AccountID, b.CreatedAt.UTC(), b.RecordCount, b.Source)
	if err != nil {
		return fmt.Errorf("inserting batch: %w", err)
	}
	return nil
}

// DeleteEntry removes one entry of the account and reports whether it existed.
func (t *Tx) DeleteEntry(ctx context.Context, accountID string, id int64) (bool, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM ledger_entries WHERE id = $1 AND account_id = $2`, id, accountID)
	if err != nil {
		return false, fmt.Errorf("deleting entry %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// InsertEntry appends one entry and returns its id.
func (t *Tx) InsertEntry(ctx context.Context, e model.LedgerEntry) (int64, error) {
	return insertEntry(ctx, t.tx, e)
}

// DeleteEntriesByBatch removes every entry stamped with batchID.
func (t *Tx) DeleteEntriesByBatch(ctx context.Context, batchID string) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM ledger_entries WHERE import_batch_id = $1`, batchID)
	if err != nil {
		return 0, fmt.Errorf("deleting batch entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteBatch removes the batch row and reports whether it existed.
func (t *Tx) DeleteBatch(ctx context.Context, batchID string) (bool, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM import_batches WHERE id = $1`, batchID)
	if err != nil {
		return false, fmt.Errorf("deleting batch: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Commit commits the transaction.
func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback aborts the transaction. No-op if already committed.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertEntry(ctx context.Context, q querier, e model.LedgerEntry) (int64, error) {
	var batch *string
	if e.Provenance != "" {
		batch = &e.Provenance
	}
	var id int64
	err := q.QueryRow(ctx,
		`INSERT INTO ledger_entries (account_id, date, description, amount, direction, category, reference, auto_reconciled, import_batch_id)
		 VALUES ($1, $2, $3, $4::text::numeric, $5, $6, $7, $8, $9)
		 RETURNING id`,
		e.AccountID, e.Date, e.Description, e.Amount.Abs().String(),
		string(e.Direction), e.Category, e.Reference, e.AutoReconciled, batch).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting entry: %w", err)
	}
	return id, nil
}

func collectEntries(rows pgx.Rows) ([]model.LedgerEntry, error) {
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		var (
			e           model.LedgerEntry
			date        time.Time
			amount, dir string
			batch       *string
		)
		if err := rows.Scan(&e.ID, &e.AccountID, &date, &e.Description, &amount, &dir,
			&e.Category, &e.Reference, &e.AutoReconciled, &batch); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}

		var err error
		e.Date = model.Date(date.Year(), date.Month(), date.Day())
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("entry %d: parsing amount %q: %w", e.ID, amount, err)
		}
		if e.Direction, err = model.ParseDirection(dir); err != nil {
			return nil, fmt.Errorf("entry %d: %w", e.ID, err)
		}
		if batch != nil {
			e.Provenance = *batch
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
