package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is one persisted ledger row.
type LedgerEntry struct {
	ID             int64
	AccountID      string
	Date           time.Time
	Description    string
	Amount         decimal.Decimal // magnitude, never negative
	Direction      Direction
	Category       string
	Reference      string
	AutoReconciled bool
	Provenance     string // import batch id, empty for manual entries
}

// Imported reports whether the entry was created by an import batch.
func (e LedgerEntry) Imported() bool {
	return e.Provenance != ""
}

// EntryFromCandidate builds the ledger row a candidate becomes when it is
// committed under batchID.
func EntryFromCandidate(c Candidate, accountID, batchID string) LedgerEntry {
	return LedgerEntry{
		AccountID:      accountID,
		Date:           c.Date,
		Description:    c.Description,
		Amount:         c.Amount,
		Direction:      c.Direction,
		Category:       c.Category,
		Reference:      c.Reference,
		AutoReconciled: c.AutoReconciled,
		Provenance:     batchID,
	}
}

// ImportBatch records one completed import. Immutable once created.
type ImportBatch struct {
	ID          string
	Filename    string
	AccountID   string
	CreatedAt   time.Time
	RecordCount int
	Source      string // archived raw statement text
}
