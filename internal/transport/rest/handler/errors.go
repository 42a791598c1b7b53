package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"assessd/internal/assessment"
	"assessd/internal/service"
)

// ErrorResponse is the body of every failed request that reaches a handler
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{assessment.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
	{assessment.ErrSessionClosed, http.StatusConflict, "session_closed"},
	{assessment.ErrAlreadyCompleted, http.StatusConflict, "already_completed"},
	{assessment.ErrIncompleteAssessment, http.StatusConflict, "incomplete_assessment"},
	{assessment.ErrInvalidResponse, http.StatusBadRequest, "invalid_response"},
	{service.ErrUnknownInstrument, http.StatusBadRequest, "unknown_instrument"},
	{assessment.ErrInvalidCatalog, http.StatusUnprocessableEntity, "invalid_catalog"},
	{assessment.ErrPersistenceFailed, http.StatusServiceUnavailable, "persistence_failed"},
}

// writeServiceError maps engine and service errors to a status and a
// stable code. Unknown errors are logged and reported as 500.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	status, code, msg := http.StatusInternalServerError, "internal", "internal error"
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			status, code, msg = e.status, e.code, err.Error()
			break
		}
	}
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	if status == http.StatusServiceUnavailable {
		// storage details stay in the log
		msg = assessment.ErrPersistenceFailed.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg, Code: code})
}
