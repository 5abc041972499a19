// Package matcher pairs import candidates with existing ledger entries that
// look like the same transaction.
//
// Two records are considered equal when their date, amount magnitude (to the
// cent) and direction agree; descriptions are not compared. Each existing
// entry can be matched at most once per pass, so N identical candidates
// against N identical entries produce N distinct pairs.
package matcher

import (
	"github.com/cleared-dev/stmtimport/internal/model"
)

// Result is the outcome of one matching pass.
type Result struct {
	Clean     []model.Candidate
	Conflicts []model.ConflictPair
}

// Equal reports whether a candidate and an existing entry are duplicates.
func Equal(c model.Candidate, e model.LedgerEntry) bool {
	return c.Date.Equal(e.Date) &&
		c.Direction == e.Direction &&
		c.Amount.Abs().Round(2).Equal(e.Amount.Abs().Round(2))
}

// Match walks candidates in order and pairs each with the first unconsumed
// existing entry it equals. Neither input slice is modified.
func Match(candidates []model.Candidate, existing []model.LedgerEntry) Result {
	consumed := make([]bool, len(existing))
	var res Result

	for _, c := range candidates {
		idx := -1
		for i := range existing {
			if consumed[i] {
				continue
			}
			if Equal(c, existing[i]) {
				idx = i
				break
			}
		}

		if idx < 0 {
			res.Clean = append(res.Clean, c)
			continue
		}

		consumed[idx] = true
		res.Conflicts = append(res.Conflicts, model.ConflictPair{
			ID:        len(res.Conflicts),
			Existing:  existing[idx],
			Candidate: c,
			Decision:  model.KeepExisting,
		})
	}
	return res
}
