package engine

import (
	"context"
	"fmt"

	"github.com/cleared-dev/stmtimport/internal/logging"
	"github.com/cleared-dev/stmtimport/internal/model"
)

// Phase indicates the current stage of a commit.
type Phase string

const (
	PhaseDeleting  Phase = "deleting"
	PhaseInserting Phase = "inserting"
	PhaseComplete  Phase = "complete"
)

// Progress reports how far the insert phase of a commit has got.
type Progress struct {
	BatchID string
	Phase   Phase
	Done    int
	Total   int
}

// Percent returns the progress as a percentage (0-100).
func (p Progress) Percent() int {
	if p.Total == 0 {
		return 100
	}
	return (p.Done * 100) / p.Total
}

// ProgressFunc receives progress reports. It runs on the committing goroutine.
type ProgressFunc func(Progress)

// BatchMeta describes the statement an import came from.
type BatchMeta struct {
	Filename  string
	AccountID string
	Source    string
}

// CommitRequest carries a reviewed match result into Commit.
type CommitRequest struct {
	Clean     []model.Candidate
	Conflicts []model.ConflictPair
	Decisions map[int]model.Decision // keyed by ConflictPair.ID
	Meta      BatchMeta
	Ignored   int // passed through from MatchResult.Ignored
	Progress  ProgressFunc
}

// CommitResult reports what a commit changed.
type CommitResult struct {
	BatchID  string // empty when no batch was created
	Inserted int
	Removed  int
	Ignored  int
	Kept     int
	NoOp     bool
}

// Plan is the insert/delete set a commit will apply.
type Plan struct {
	Insert []model.Candidate
	Delete []int64
	Kept   int
}

// Empty reports whether the plan changes nothing.
func (p Plan) Empty() bool {
	return len(p.Insert) == 0 && len(p.Delete) == 0
}

// BuildPlan resolves decisions into the final insert and delete sets. Clean
// candidates come first, followed by replacing candidates in pair order.
func BuildPlan(clean []model.Candidate, conflicts []model.ConflictPair, decisions map[int]model.Decision) (Plan, error) {
	p := Plan{Insert: make([]model.Candidate, 0, len(clean)+len(conflicts))}
	p.Insert = append(p.Insert, clean...)
	for _, pair := range conflicts {
		d, ok := decisions[pair.ID]
		if !ok {
			return Plan{}, fmt.Errorf("%w: pair %d", ErrUndecidedConflict, pair.ID)
		}
		if !d.Replaces() {
			p.Kept++
			continue
		}
		p.Insert = append(p.Insert, pair.Candidate)
		p.Delete = append(p.Delete, pair.Existing.ID)
	}
	return p, nil
}

// Commit applies a reviewed import in one transaction: it creates the import
// batch, removes replaced entries and inserts the new ones stamped with the
// batch id. Any failure rolls everything back, batch row included.
//
// Cancellation is honored up to the delete phase and reported as
// ErrCancelled. Once deletes have started, an ended context fails the commit
// like any other store error.
func (e *Engine) Commit(ctx context.Context, req CommitRequest) (CommitResult, error) {
	if req.Meta.AccountID == "" {
		return CommitResult{}, ErrNoAccount
	}
	plan, err := BuildPlan(req.Clean, req.Conflicts, req.Decisions)
	if err != nil {
		return CommitResult{}, err
	}

	res := CommitResult{Ignored: req.Ignored, Kept: plan.Kept}
	if plan.Empty() {
		res.NoOp = true
		return res, nil
	}

	if err := ctx.Err(); err != nil {
		return CommitResult{}, fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	log := logging.WithFields(ctx, "account", req.Meta.AccountID, "file", req.Meta.Filename)

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return CommitResult{}, persistErr("begin", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			log.Error("rollback failed", "error", rbErr)
			return
		}
		log.Warn("import rolled back")
	}()

	batchID := ""
	if len(plan.Insert) > 0 {
		batchID = e.opts.NewID()
		batch := model.ImportBatch{
			ID:          batchID,
			Filename:    req.Meta.Filename,
			AccountID:   req.Meta.AccountID,
			CreatedAt:   e.opts.Now().UTC(),
			RecordCount: len(plan.Insert),
			Source:      req.Meta.Source,
		}
		if err := tx.CreateBatch(ctx, batch); err != nil {
			return CommitResult{}, persistErr("create batch", err)
		}
		log = log.With("batch_id", batchID)
	}

	// Last point at which cancellation leaves a clean no-op.
	if err := ctx.Err(); err != nil {
		return CommitResult{}, fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	report := func(phase Phase, done int) {
		if req.Progress != nil {
			req.Progress(Progress{BatchID: batchID, Phase: phase, Done: done, Total: len(plan.Insert)})
		}
	}

	report(PhaseDeleting, 0)
	for _, id := range plan.Delete {
		ok, err := tx.DeleteEntry(ctx, req.Meta.AccountID, id)
		if err != nil {
			return CommitResult{}, persistErr("delete entry", err)
		}
		if !ok {
			return CommitResult{}, persistErr("delete entry", fmt.Errorf("%w: id %d", ErrStaleConflict, id))
		}
	}

	report(PhaseInserting, 0)
	for i, c := range plan.Insert {
		if err := ctx.Err(); err != nil {
			return CommitResult{}, persistErr("insert entries", err)
		}
		if _, err := tx.InsertEntry(ctx, model.EntryFromCandidate(c, req.Meta.AccountID, batchID)); err != nil {
			return CommitResult{}, persistErr("insert entry", err)
		}
		if done := i + 1; done%e.opts.ProgressEvery == 0 && done < len(plan.Insert) {
			report(PhaseInserting, done)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return CommitResult{}, persistErr("commit", err)
	}
	committed = true

	res.BatchID = batchID
	res.Inserted = len(plan.Insert)
	res.Removed = len(plan.Delete)
	report(PhaseComplete, res.Inserted)

	log.Info("import committed",
		"inserted", res.Inserted,
		"removed", res.Removed,
		"kept", res.Kept,
		"ignored", res.Ignored,
	)
	return res, nil
}

// DeleteResult reports a batch reversal.
type DeleteResult struct {
	BatchID string
	Removed int
	Found   bool
}

// DeleteBatch removes every ledger entry the batch created and then the batch
// itself, in one transaction. An unknown id is a no-op.
func (e *Engine) DeleteBatch(ctx context.Context, batchID string) (DeleteResult, error) {
	res := DeleteResult{BatchID: batchID}
	log := logging.WithFields(ctx, "batch_id", batchID)

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return res, persistErr("begin", err)
	}
	defer func() {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			log.Error("rollback failed", "error", rbErr)
		}
	}()

	removed, err := tx.DeleteEntriesByBatch(ctx, batchID)
	if err != nil {
		return res, persistErr("delete batch entries", err)
	}
	found, err := tx.DeleteBatch(ctx, batchID)
	if err != nil {
		return res, persistErr("delete batch", err)
	}
	if !found {
		log.Info("batch not found, nothing deleted")
		return res, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return res, persistErr("commit", err)
	}

	res.Found = true
	res.Removed = int(removed)
	log.Info("import batch deleted", "removed", res.Removed)
	return res, nil
}
