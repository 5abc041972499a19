package server

import (
	"errors"
	"net/http"

	"github.com/cleared-dev/stmtimport/internal/engine"
	"github.com/cleared-dev/stmtimport/internal/logging"
	"github.com/cleared-dev/stmtimport/internal/resolver"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeOversize       = "IMP001"
	CodeEmptyResult    = "IMP002"
	CodeUndecided      = "IMP003"
	CodeNoAccount      = "IMP004"
	CodeUnknownAccount = "IMP005"
	CodeCancelled      = "IMP006"
	CodeStaleConflict  = "IMP007"
	CodeBatchNotFound  = "IMP008"
	CodeUnknownPair    = "IMP009"
	CodePersistence    = "DB001"
	CodeBadRequest     = "REQ001"
	CodeInternal       = "INT001"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	// Set for empty results so callers can tell filtering from a bad file.
	Ignored     *int `json:"ignored,omitempty"`
	ParseErrors *int `json:"parse_errors,omitempty"`
}

// requestError is a client mistake detected by the transport itself.
type requestError struct {
	status int
	code   string
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &requestError{status: http.StatusBadRequest, code: CodeBadRequest, msg: msg}
}

// classify maps an error to a status code and stable error code.
func classify(err error) (int, string) {
	var reqErr *requestError
	var maxErr *http.MaxBytesError
	var perr *engine.PersistenceError

	switch {
	case errors.As(err, &reqErr):
		return reqErr.status, reqErr.code
	case errors.As(err, &maxErr), errors.Is(err, engine.ErrOversize):
		return http.StatusRequestEntityTooLarge, CodeOversize
	case errors.Is(err, engine.ErrEmptyResult):
		return http.StatusUnprocessableEntity, CodeEmptyResult
	case errors.Is(err, engine.ErrUndecidedConflict):
		return http.StatusUnprocessableEntity, CodeUndecided
	case errors.Is(err, resolver.ErrUnknownPair):
		return http.StatusUnprocessableEntity, CodeUnknownPair
	case errors.Is(err, engine.ErrNoAccount):
		return http.StatusBadRequest, CodeNoAccount
	case errors.Is(err, engine.ErrCancelled):
		return http.StatusServiceUnavailable, CodeCancelled
	case errors.Is(err, engine.ErrStaleConflict):
		return http.StatusConflict, CodeStaleConflict
	case errors.Is(err, engine.ErrBatchNotFound):
		return http.StatusNotFound, CodeBatchNotFound
	case errors.As(err, &perr):
		return http.StatusInternalServerError, CodePersistence
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// respondError logs err with the request id and writes the JSON error body.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	respondErrorBody(w, r, err, ErrorResponse{})
}

func respondErrorBody(w http.ResponseWriter, r *http.Request, err error, body ErrorResponse) {
	status, code := classify(err)
	log := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request error", "path", r.URL.Path, "status", status, "code", code, "error", err)
	} else {
		log.Warn("request rejected", "path", r.URL.Path, "status", status, "code", code, "error", err)
	}

	body.Code = code
	body.Error = err.Error()
	if status == http.StatusInternalServerError {
		body.Error = http.StatusText(status)
	}
	writeJSON(w, status, body)
}
