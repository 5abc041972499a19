// Package rules assigns categories to parsed statement records using an
// ordered list of keyword rules. The first matching rule wins.
package rules

import (
	"context"
	"strings"

	"github.com/cleared-dev/stmtimport/internal/model"
)

// Source supplies the ordered rule list for an account.
type Source interface {
	Rules(ctx context.Context, accountID string) ([]model.Rule, error)
}

// Static is a fixed, in-memory rule list.
type Static []model.Rule

// Rules returns the list unchanged; the account filter is applied at match time.
func (s Static) Rules(_ context.Context, _ string) ([]model.Rule, error) {
	return s, nil
}

// Match returns the first rule that applies to rec for accountID. A rule with
// an empty keyword never matches.
func Match(rules []model.Rule, rec model.RawRecord, accountID string) (model.Rule, bool) {
	desc := strings.ToLower(rec.Description)
	for _, r := range rules {
		if r.Direction != rec.Direction {
			continue
		}
		if !r.AppliesTo(accountID) {
			continue
		}
		if r.Keyword == "" || !strings.Contains(desc, strings.ToLower(r.Keyword)) {
			continue
		}
		return r, true
	}
	return model.Rule{}, false
}

// Categorize turns rec into a Candidate. Records without a matching rule are
// Uncategorized and not auto-reconciled.
func Categorize(rules []model.Rule, rec model.RawRecord, accountID string) model.Candidate {
	c := model.Candidate{RawRecord: rec, Category: model.Uncategorized}
	if r, ok := Match(rules, rec, accountID); ok {
		c.Category = r.Category
		c.AutoReconciled = true
	}
	return c
}

// Apply categorizes every record, preserving order.
func Apply(rules []model.Rule, recs []model.RawRecord, accountID string) []model.Candidate {
	out := make([]model.Candidate, len(recs))
	for i, rec := range recs {
		out[i] = Categorize(rules, rec, accountID)
	}
	return out
}
