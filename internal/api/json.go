package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/fitrunner/internal/apperr"
	"github.com/starford/fitrunner/internal/suiteservice"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps service errors to status codes. Run-level failures are
// 503 so they cannot be confused with a failing suite.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error, attrs ...slog.Attr) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, suiteservice.ErrHistoryDisabled):
		writeJSON(w, http.StatusNotFound, errorBody("history disabled"))
	case errors.Is(err, apperr.ErrInfrastructure), errors.Is(err, apperr.ErrFixtureDisconnected):
		slog.LogAttrs(r.Context(), slog.LevelError, op+" failed", append(attrs, slog.String("error", err.Error()))...)
		writeJSON(w, http.StatusServiceUnavailable, errorBody(err.Error()))
	default:
		slog.LogAttrs(r.Context(), slog.LevelError, op+" failed", append(attrs, slog.String("error", err.Error()))...)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
