package server

import (
	"time"

	"github.com/cleared-dev/stmtimport/internal/engine"
	"github.com/cleared-dev/stmtimport/internal/importer"
	"github.com/cleared-dev/stmtimport/internal/model"
)

type previewRequest struct {
	Account string `json:"account"`
	Source  string `json:"source"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
}

// commitRequest re-submits the reviewed statement. The server matches it
// again and applies Decisions by pair id; Default fills pairs left out.
type commitRequest struct {
	previewRequest
	Filename  string                 `json:"filename"`
	Decisions map[int]model.Decision `json:"decisions,omitempty"`
	Default   *model.Decision        `json:"default,omitempty"`
}

func (r previewRequest) window() (importer.DateRange, error) {
	var w importer.DateRange
	var err error
	if r.From != "" {
		if w.From, err = model.ParseDate(r.From); err != nil {
			return w, badRequest("from: " + err.Error())
		}
	}
	if r.To != "" {
		if w.To, err = model.ParseDate(r.To); err != nil {
			return w, badRequest("to: " + err.Error())
		}
	}
	if !w.From.IsZero() && !w.To.IsZero() && w.To.Before(w.From) {
		return w, badRequest("to is before from")
	}
	return w, nil
}

type recordJSON struct {
	Block          int    `json:"block,omitempty"`
	Date           string `json:"date"`
	Description    string `json:"description"`
	Amount         string `json:"amount"`
	Direction      string `json:"direction"`
	Reference      string `json:"reference,omitempty"`
	Category       string `json:"category"`
	AutoReconciled bool   `json:"auto_reconciled"`
}

type entryJSON struct {
	ID             int64  `json:"id"`
	AccountID      string `json:"account_id"`
	Date           string `json:"date"`
	Description    string `json:"description"`
	Amount         string `json:"amount"`
	Direction      string `json:"direction"`
	Category       string `json:"category"`
	Reference      string `json:"reference,omitempty"`
	AutoReconciled bool   `json:"auto_reconciled"`
	BatchID        string `json:"batch_id,omitempty"`
}

type pairJSON struct {
	ID        int            `json:"id"`
	Existing  entryJSON      `json:"existing"`
	Candidate recordJSON     `json:"candidate"`
	Decision  model.Decision `json:"decision"`
}

type parseErrorJSON struct {
	Block  int    `json:"block"`
	Reason string `json:"reason"`
}

type matchResponse struct {
	Clean       []recordJSON     `json:"clean"`
	Conflicts   []pairJSON       `json:"conflicts"`
	Ignored     int              `json:"ignored"`
	ParseErrors []parseErrorJSON `json:"parse_errors"`
}

type commitResponse struct {
	BatchID     string `json:"batch_id,omitempty"`
	Inserted    int    `json:"inserted"`
	Removed     int    `json:"removed"`
	Kept        int    `json:"kept"`
	Ignored     int    `json:"ignored"`
	ParseErrors int    `json:"parse_errors"`
	NoOp        bool   `json:"no_op"`
}

type batchJSON struct {
	ID          string      `json:"id"`
	Filename    string      `json:"filename"`
	AccountID   string      `json:"account_id"`
	CreatedAt   time.Time   `json:"created_at"`
	RecordCount int         `json:"record_count"`
	Source      string      `json:"source,omitempty"`
	Entries     []entryJSON `json:"entries,omitempty"`
}

type deleteResponse struct {
	BatchID string `json:"batch_id"`
	Found   bool   `json:"found"`
	Removed int    `json:"removed"`
}

func toRecord(c model.Candidate) recordJSON {
	return recordJSON{
		Block:          c.Block,
		Date:           c.Date.Format(model.DateFormat),
		Description:    c.Description,
		Amount:         c.Amount.StringFixed(2),
		Direction:      string(c.Direction),
		Reference:      c.Reference,
		Category:       c.Category,
		AutoReconciled: c.AutoReconciled,
	}
}

func toEntry(e model.LedgerEntry) entryJSON {
	return entryJSON{
		ID:             e.ID,
		AccountID:      e.AccountID,
		Date:           e.Date.Format(model.DateFormat),
		Description:    e.Description,
		Amount:         e.Amount.StringFixed(2),
		Direction:      string(e.Direction),
		Category:       e.Category,
		Reference:      e.Reference,
		AutoReconciled: e.AutoReconciled,
		BatchID:        e.Provenance,
	}
}

func toEntries(es []model.LedgerEntry) []entryJSON {
	out := make([]entryJSON, len(es))
	for i, e := range es {
		out[i] = toEntry(e)
	}
	return out
}

func toMatch(m engine.MatchResult) matchResponse {
	resp := matchResponse{
		Clean:       make([]recordJSON, len(m.Clean)),
		Conflicts:   make([]pairJSON, len(m.Conflicts)),
		Ignored:     m.Ignored,
		ParseErrors: make([]parseErrorJSON, len(m.ParseErrors)),
	}
	for i, c := range m.Clean {
		resp.Clean[i] = toRecord(c)
	}
	for i, p := range m.Conflicts {
		resp.Conflicts[i] = pairJSON{
			ID:        p.ID,
			Existing:  toEntry(p.Existing),
			Candidate: toRecord(p.Candidate),
			Decision:  p.Decision,
		}
	}
	for i, pe := range m.ParseErrors {
		resp.ParseErrors[i] = parseErrorJSON{Block: pe.Block, Reason: pe.Reason}
	}
	return resp
}

func toBatch(b model.ImportBatch) batchJSON {
	return batchJSON{
		ID:          b.ID,
		Filename:    b.Filename,
		AccountID:   b.AccountID,
		CreatedAt:   b.CreatedAt,
		RecordCount: b.RecordCount,
	}
}
