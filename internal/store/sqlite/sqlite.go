// Package sqlite stores the ledger and import batches in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/stmtimport/internal/engine"
	"github.com/cleared-dev/stmtimport/internal/model"
)

//go:embed schema.sql
var schema string

// timeFormat is fixed width so created_at sorts as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements engine.Store on SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_txlock", "immediate")
	q.Set("_busy_timeout", "5000")
	dsn := "file:" + path + "?" + q.Encode()

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection: SQLite allows a single writer, and imports assume it.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	s := &Store{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the handle for maintenance tasks.
func (s *Store) DB() *sql.DB {
	return s.db
}

const entryColumns = `id, account_id, date, description, amount, direction, category, reference, auto_reconciled, import_batch_id`

// EntriesByAccount returns every ledger entry of an account ordered by date, then id.
func (s *Store) EntriesByAccount(ctx context.Context, accountID string) ([]model.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE account_id = ? ORDER BY date, id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// EntriesByBatch returns the entries an import batch created.
func (s *Store) EntriesByBatch(ctx context.Context, batchID string) ([]model.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE import_batch_id = ? ORDER BY id`, batchID)
	if err != nil {
		return nil, fmt.Errorf("querying batch entries: %w", err)
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AddEntry appends a manual (or pre-stamped) entry outside any import.
func (s *Store) AddEntry(ctx context.Context, e model.LedgerEntry) (int64, error) {
	return insertEntry(ctx, s.db, e)
}

// Batch returns one import batch.
func (s *Store) Batch(ctx context.Context, id string) (model.ImportBatch, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, account_id, created_at, record_count, source FROM import_batches WHERE id = ?`, id)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ImportBatch{}, false, nil
	}
	if err != nil {
		return model.ImportBatch{}, false, err
	}
	return b, true, nil
}

// Batches lists an account's import batches, newest first.
func (s *Store) Batches(ctx context.Context, accountID string) ([]model.ImportBatch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, account_id, created_at, record_count, source FROM import_batches
		 WHERE account_id = ? ORDER BY created_at DESC, id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("querying batches: %w", err)
	}
	defer rows.Close()

	var batches []model.ImportBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// Begin starts a write transaction.
func (s *Store) Begin(ctx context.Context) (engine.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Tx implements engine.Tx.
type Tx struct {
	tx *sql.Tx
}

// CreateBatch inserts the batch row.
func (t *Tx) CreateBatch(ctx context.Context, b model.ImportBatch) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO import_batches (id, filename, account_id, created_at, record_count, source)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.Filename, b.AccountID, b.CreatedAt.UTC().Format(timeFormat), b.RecordCount, b.Source)
	if err != nil {
		return fmt.Errorf("inserting batch: %w", err)
	}
	return nil
}

// DeleteEntry removes one entry of the account.
func (t *Tx) DeleteEntry(ctx context.Context, accountID string, id int64) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM ledger_entries WHERE id = ? AND account_id = ?`, id, accountID)
	if err != nil {
		return false, fmt.Errorf("deleting entry %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting entry %d: %w", id, err)
	}
	return n == 1, nil
}

// InsertEntry appends one entry and returns its id.
func (t *Tx) InsertEntry(ctx context.Context, e model.LedgerEntry) (int64, error) {
	return insertEntry(ctx, t.tx, e)
}

// DeleteEntriesByBatch removes every entry stamped with batchID.
func (t *Tx) DeleteEntriesByBatch(ctx context.Context, batchID string) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM ledger_entries WHERE import_batch_id = ?`, batchID)
	if err != nil {
		return 0, fmt.Errorf("deleting batch entries: %w", err)
	}
	return res.RowsAffected()
}

// DeleteBatch removes the batch row.
func (t *Tx) DeleteBatch(ctx context.Context, batchID string) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM import_batches WHERE id = ?`, batchID)
	if err != nil {
		return false, fmt.Errorf("deleting batch: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting batch: %w", err)
	}
	return n == 1, nil
}

// Commit commits the transaction.
func (t *Tx) Commit(_ context.Context) error {
	return t.tx.Commit()
}

// Rollback aborts the transaction. Calling it after Commit is a no-op.
func (t *Tx) Rollback(_ context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEntry(ctx context.Context, db execer, e model.LedgerEntry) (int64, error) {
	var batch sql.NullString
	if e.Provenance != "" {
		batch = sql.NullString{String: e.Provenance, Valid: true}
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO ledger_entries (account_id, date, description, amount, direction, category, reference, auto_reconciled, import_batch_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.AccountID, e.Date.Format(model.DateFormat), e.Description, e.Amount.Abs().String(),
		string(e.Direction), e.Category, e.Reference, e.AutoReconciled, batch)
	if err != nil {
		return 0, fmt.Errorf("inserting entry: %w", err)
	}
	return res.LastInsertId()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (model.LedgerEntry, error) {
	var (
		e                 model.LedgerEntry
		date, amount, dir string
		batch             sql.NullString
	)
	if err := row.Scan(&e.ID, &e.AccountID, &date, &e.Description, &amount, &dir,
		&e.Category, &e.Reference, &e.AutoReconciled, &batch); err != nil {
		return model.LedgerEntry{}, fmt.Errorf("scanning entry: %w", err)
	}

	var err error
	if e.Date, err = model.ParseDate(date); err != nil {
		return model.LedgerEntry{}, fmt.Errorf("entry %d: %w", e.ID, err)
	}
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return model.LedgerEntry{}, fmt.Errorf("entry %d: parsing amount %q: %w", e.ID, amount, err)
	}
	if e.Direction, err = model.ParseDirection(dir); err != nil {
		return model.LedgerEntry{}, fmt.Errorf("entry %d: %w", e.ID, err)
	}
	e.Provenance = batch.String
	return e, nil
}

func scanBatch(row scanner) (model.ImportBatch, error) {
	var (
		b       model.ImportBatch
		created string
	)
	if err := row.Scan(&b.ID, &b.Filename, &b.AccountID, &created, &b.RecordCount, &b.Source); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ImportBatch{}, err
		}
		return model.ImportBatch{}, fmt.Errorf("scanning batch: %w", err)
	}
	t, err := time.Parse(timeFormat, created)
	if err != nil {
		return model.ImportBatch{}, fmt.Errorf("batch %s: parsing created_at %q: %w", b.ID, created, err)
	}
	b.CreatedAt = t
	return b, nil
}
