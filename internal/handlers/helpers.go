package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/workbridge/backend/internal/faults"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeFault maps a fault kind to its HTTP status. Untyped errors and the
// fatal ledger-divergence class become 500s; divergence additionally logs
// at Error so operators are alerted.
func writeFault(w http.ResponseWriter, log *slog.Logger, err error) {
	if errors.Is(err, faults.ErrLedgerDivergence) {
		log.Error("LEDGER DIVERGENCE detected, operator attention required", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	var status int
	switch faults.KindOf(err) {
	case faults.KindUnauthorized:
		status = http.StatusUnauthorized
	case faults.KindForbidden:
		status = http.StatusForbidden
	case faults.KindNotFound:
		status = http.StatusNotFound
	case faults.KindPreconditionFailed:
		status = http.StatusPreconditionFailed
	case faults.KindConflict:
		status = http.StatusConflict
	case faults.KindValidation:
		status = http.StatusUnprocessableEntity
	default:
		log.Error("internal error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// pathUUID parses the named path value as a UUID.
func pathUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
