package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/cogninote/internal/apperr"
	"github.com/starford/cogninote/internal/noteservice"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
	// Key and Input are set when a capture fails, so the client can retry
	// with the preserved draft.
	Key   string `json:"key,omitempty"`
	Input string `json:"input,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// decodeJSON reads a bounded JSON body into v and validates it when v
// implements validation.Validatable.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	if vv, ok := v.(validation.Validatable); ok {
		if err := vv.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return false
		}
	}
	return true
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, op string, err error) {
	var body errResponse
	var ce *noteservice.CaptureError
	if errors.As(err, &ce) {
		body.Key = ce.Key
		body.Input = ce.Input
	}

	switch {
	case errors.Is(err, apperr.ErrNotFound):
		body.Error = "not found"
		writeJSON(w, http.StatusNotFound, body)
	case errors.Is(err, apperr.ErrConflict):
		body.Error = "capture already in progress"
		writeJSON(w, http.StatusConflict, body)
	case errors.Is(err, apperr.ErrInvalid):
		body.Error = err.Error()
		writeJSON(w, http.StatusBadRequest, body)
	case errors.Is(err, apperr.ErrService), errors.Is(err, apperr.ErrMalformed):
		slog.Warn(op+" failed", slog.String("error", err.Error()))
		body.Error = "knowledge service unavailable"
		writeJSON(w, http.StatusBadGateway, body)
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		body.Error = "internal error"
		writeJSON(w, http.StatusInternalServerError, body)
	}
}
