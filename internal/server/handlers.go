package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cleared-dev/stmtimport/internal/engine"
	"github.com/cleared-dev/stmtimport/internal/importlog"
)

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.bodyLimit())
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w: request body over %d bytes", engine.ErrOversize, maxErr.Limit)
		}
		return badRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

func (s *Server) checkAccount(account string) error {
	if account == "" {
		return engine.ErrNoAccount
	}
	if !s.opts.KnowsAccount(account) {
		return &requestError{
			status: http.StatusBadRequest,
			code:   CodeUnknownAccount,
			msg:    fmt.Sprintf("unknown account %q", account),
		}
	}
	return nil
}

// match validates a preview-shaped request and runs ParseAndMatch. On an
// empty result it writes the error reply itself and returns ok=false.
func (s *Server) match(w http.ResponseWriter, r *http.Request, req previewRequest) (engine.MatchResult, bool) {
	if err := s.checkAccount(req.Account); err != nil {
		respondError(w, r, err)
		return engine.MatchResult{}, false
	}
	window, err := req.window()
	if err != nil {
		respondError(w, r, err)
		return engine.MatchResult{}, false
	}

	m, err := s.engine.ParseAndMatch(r.Context(), req.Source, req.Account, window)
	if errors.Is(err, engine.ErrEmptyResult) {
		ignored, perrs := m.Ignored, m.ParseErrorCount()
		respondErrorBody(w, r, err, ErrorResponse{Ignored: &ignored, ParseErrors: &perrs})
		return engine.MatchResult{}, false
	}
	if err != nil {
		respondError(w, r, err)
		return engine.MatchResult{}, false
	}
	return m, true
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := s.decode(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	m, ok := s.match(w, r, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toMatch(m))
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := s.decode(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	m, ok := s.match(w, r, req.previewRequest)
	if !ok {
		return
	}

	rs := m.Resolver()
	if req.Default != nil {
		rs.SetAll(*req.Default)
	}
	for id, d := range req.Decisions {
		if err := rs.Set(id, d); err != nil {
			respondError(w, r, err)
			return
		}
	}
	decisions := rs.Decisions()
	if req.Default == nil {
		// Without a default every pair needs an explicit decision.
		decisions = req.Decisions
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.CommitTimeout)
	defer cancel()

	res, err := s.engine.Commit(ctx, engine.CommitRequest{
		Clean:     m.Clean,
		Conflicts: m.Conflicts,
		Decisions: decisions,
		Meta:      engine.BatchMeta{Filename: req.Filename, AccountID: req.Account, Source: req.Source},
		Ignored:   m.Ignored,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	if !res.NoOp {
		s.record(r.Context(), importlog.Entry{
			Action:    importlog.ActionCommit,
			BatchID:   res.BatchID,
			AccountID: req.Account,
			Filename:  req.Filename,
			Inserted:  res.Inserted,
			Removed:   res.Removed,
			Kept:      res.Kept,
		})
	}

	writeJSON(w, http.StatusOK, commitResponse{
		BatchID:     res.BatchID,
		Inserted:    res.Inserted,
		Removed:     res.Removed,
		Kept:        res.Kept,
		Ignored:     res.Ignored,
		ParseErrors: m.ParseErrorCount(),
		NoOp:        res.NoOp,
	})
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.Ledger(r.Context(), r.URL.Query().Get("account"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntries(entries))
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")
	if account == "" {
		respondError(w, r, engine.ErrNoAccount)
		return
	}
	batches, err := s.engine.Batches(r.Context(), account)
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]batchJSON, len(batches))
	for i, b := range batches {
		out[i] = toBatch(b)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, err := s.engine.Batch(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	entries, err := s.engine.BatchEntries(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := toBatch(b)
	out.Entries = toEntries(entries)
	if r.URL.Query().Get("source") == "true" {
		out.Source = b.Source
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Look the batch up first so the import log can name its account.
	b, lookupErr := s.engine.Batch(r.Context(), id)
	if lookupErr != nil && !errors.Is(lookupErr, engine.ErrBatchNotFound) {
		respondError(w, r, lookupErr)
		return
	}

	res, err := s.engine.DeleteBatch(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if res.Found {
		s.record(r.Context(), importlog.Entry{
			Action:    importlog.ActionDelete,
			BatchID:   id,
			AccountID: b.AccountID,
			Filename:  b.Filename,
			Removed:   res.Removed,
		})
	}
	writeJSON(w, http.StatusOK, deleteResponse{BatchID: id, Found: res.Found, Removed: res.Removed})
}
