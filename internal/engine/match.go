package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cleared-dev/stmtimport/internal/importer"
	"github.com/cleared-dev/stmtimport/internal/logging"
	"github.com/cleared-dev/stmtimport/internal/matcher"
	"github.com/cleared-dev/stmtimport/internal/model"
	"github.com/cleared-dev/stmtimport/internal/resolver"
	"github.com/cleared-dev/stmtimport/internal/rules"
)

// MatchResult is what a caller reviews before committing.
type MatchResult struct {
	Clean       []model.Candidate
	Conflicts   []model.ConflictPair
	Ignored     int // records outside the date window
	ParseErrors []importer.ParseError
}

// ParseErrorCount returns the number of skipped record blocks.
func (r MatchResult) ParseErrorCount() int {
	return len(r.ParseErrors)
}

// Resolver starts a review session over the result's conflicts.
func (r MatchResult) Resolver() *resolver.Resolver {
	return resolver.New(r.Conflicts)
}

// ParseAndMatch parses a statement for accountID, categorizes its records and
// pairs them against the account's ledger. On ErrEmptyResult the returned
// result still carries the ignored and parse error counts.
func (e *Engine) ParseAndMatch(ctx context.Context, source, accountID string, window importer.DateRange) (MatchResult, error) {
	if accountID == "" {
		return MatchResult{}, ErrNoAccount
	}
	if limit := e.opts.MaxSourceBytes; limit > 0 && int64(len(source)) > limit {
		return MatchResult{}, fmt.Errorf("%w: %d bytes, limit %d", ErrOversize, len(source), limit)
	}

	log := logging.WithFields(ctx, "account", accountID)

	parsed, err := e.opts.Parser.Parse(strings.NewReader(source), importer.Options{Window: window})
	res := MatchResult{Ignored: parsed.Ignored, ParseErrors: parsed.Errors}
	if errors.Is(err, importer.ErrEmptyResult) {
		log.Info("statement produced no records", "ignored", parsed.Ignored, "parse_errors", len(parsed.Errors))
		return res, ErrEmptyResult
	}
	if err != nil {
		return MatchResult{}, fmt.Errorf("parsing statement: %w", err)
	}

	ruleList, err := e.rules.Rules(ctx, accountID)
	if err != nil {
		return MatchResult{}, fmt.Errorf("loading rules: %w", err)
	}
	candidates := rules.Apply(ruleList, parsed.Records, accountID)

	existing, err := e.store.EntriesByAccount(ctx, accountID)
	if err != nil {
		return MatchResult{}, persistErr("load ledger", err)
	}

	m := matcher.Match(candidates, existing)
	res.Clean = m.Clean
	res.Conflicts = m.Conflicts

	log.Info("statement matched",
		"records", len(parsed.Records),
		"clean", len(res.Clean),
		"conflicts", len(res.Conflicts),
		"ignored", res.Ignored,
		"parse_errors", len(res.ParseErrors),
	)
	return res, nil
}
