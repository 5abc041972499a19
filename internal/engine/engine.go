// Package engine runs statement imports end to end: parse, categorize and
// match in ParseAndMatch, then apply the reviewed result atomically in Commit.
// Every import that changes the ledger is recorded as one ImportBatch, which
// DeleteBatch reverses.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cleared-dev/stmtimport/internal/importer"
	"github.com/cleared-dev/stmtimport/internal/model"
	"github.com/cleared-dev/stmtimport/internal/rules"
)

// Store is the ledger and import batch persistence the engine works against.
type Store interface {
	EntriesByAccount(ctx context.Context, accountID string) ([]model.LedgerEntry, error)
	EntriesByBatch(ctx context.Context, batchID string) ([]model.LedgerEntry, error)
	Batch(ctx context.Context, id string) (model.ImportBatch, bool, error)
	Batches(ctx context.Context, accountID string) ([]model.ImportBatch, error)
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one store transaction. Nothing done through a Tx is visible until
// Commit; Rollback after Commit is a no-op.
type Tx interface {
	CreateBatch(ctx context.Context, b model.ImportBatch) error
	// DeleteEntry removes one entry of the account and reports whether it existed.
	DeleteEntry(ctx context.Context, accountID string, id int64) (bool, error)
	InsertEntry(ctx context.Context, e model.LedgerEntry) (int64, error)
	DeleteEntriesByBatch(ctx context.Context, batchID string) (int64, error)
	// DeleteBatch removes the batch row and reports whether it existed.
	DeleteBatch(ctx context.Context, batchID string) (bool, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DefaultProgressEvery is how many inserts pass between progress reports.
const DefaultProgressEvery = 100

// Options tunes an Engine. Zero values fall back to defaults.
type Options struct {
	MaxSourceBytes int64           // 0 disables the ceiling
	ProgressEvery  int             // inserts between progress reports
	Parser         importer.Parser // default OFX
	Now            func() time.Time
	NewID          func() string
}

// Engine coordinates parsing, matching and committing imports.
type Engine struct {
	store Store
	rules rules.Source
	opts  Options
}

// New creates an Engine over store with rules read from src.
func New(store Store, src rules.Source, opts Options) *Engine {
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultProgressEvery
	}
	if opts.Parser == nil {
		opts.Parser = &importer.OFXParser{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}
	return &Engine{store: store, rules: src, opts: opts}
}

// Batch returns one import batch.
func (e *Engine) Batch(ctx context.Context, id string) (model.ImportBatch, error) {
	b, ok, err := e.store.Batch(ctx, id)
	if err != nil {
		return model.ImportBatch{}, persistErr("get batch", err)
	}
	if !ok {
		return model.ImportBatch{}, ErrBatchNotFound
	}
	return b, nil
}

// Batches lists the import batches of an account, newest first.
func (e *Engine) Batches(ctx context.Context, accountID string) ([]model.ImportBatch, error) {
	bs, err := e.store.Batches(ctx, accountID)
	if err != nil {
		return nil, persistErr("list batches", err)
	}
	return bs, nil
}

// BatchEntries returns the ledger entries a batch created.
func (e *Engine) BatchEntries(ctx context.Context, id string) ([]model.LedgerEntry, error) {
	entries, err := e.store.EntriesByBatch(ctx, id)
	if err != nil {
		return nil, persistErr("list batch entries", err)
	}
	return entries, nil
}

// Ledger returns every entry of an account ordered by date.
func (e *Engine) Ledger(ctx context.Context, accountID string) ([]model.LedgerEntry, error) {
	if accountID == "" {
		return nil, ErrNoAccount
	}
	entries, err := e.store.EntriesByAccount(ctx, accountID)
	if err != nil {
		return nil, persistErr("list entries", err)
	}
	return entries, nil
}
