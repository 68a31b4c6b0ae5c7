package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"wastewise/core"
	"wastewise/engine"
)

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	writeJSONStatus(w, status, apiError{Code: code, Message: msg, Details: details})
}

var errorMap = []struct {
	err    error
	status int
	code   string
}{
	{core.ErrAlreadyUnlocked, http.StatusConflict, "already_unlocked"},
	{core.ErrInsufficientFunds, http.StatusConflict, "insufficient_funds"},
	{core.ErrUnknownReward, http.StatusNotFound, "unknown_reward"},
	{core.ErrInvalidRewardKind, http.StatusBadRequest, "invalid_reward_kind"},
	{core.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{core.ErrIntegerOverflow, http.StatusBadRequest, "overflow"},
	{core.ErrEmptyIdentifier, http.StatusBadRequest, "invalid_input"},
	{core.ErrInvalidIdentifier, http.StatusBadRequest, "invalid_input"},
	{engine.ErrScanInProgress, http.StatusConflict, "scan_in_progress"},
	{engine.ErrNoResult, http.StatusUnprocessableEntity, "no_result"},
}

// writeDomainError maps engine and core errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	for _, m := range errorMap {
		if errors.Is(err, m.err) {
			writeError(w, m.status, m.code, err.Error(), nil)
			return
		}
	}
	writeError(w, http.StatusInternalServerError, "internal", "internal error", nil)
}
