package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"summeriq/internal/archive"
	"summeriq/internal/bytestore"
	"summeriq/internal/llm"
	"summeriq/internal/project"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps a service error to an HTTP status and a short code.
func statusFor(err error) (int, string) {
	var (
		xerr     *archive.ExtractionError
		tooLarge *http.MaxBytesError
		perr     *llm.ProviderError
	)
	switch {
	case errors.Is(err, project.ErrProjectNotFound), errors.Is(err, bytestore.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.As(err, &xerr):
		if errors.Is(err, archive.ErrLimitExceeded) {
			return http.StatusUnprocessableEntity, "limit_exceeded"
		}
		return http.StatusBadRequest, "invalid_archive"
	case errors.Is(err, project.ErrInvalidPath):
		return http.StatusBadRequest, "invalid_path"
	case errors.Is(err, project.ErrNotText):
		return http.StatusUnsupportedMediaType, "not_text"
	case errors.As(err, &perr):
		switch perr.Kind {
		case llm.KindRateLimited:
			return http.StatusTooManyRequests, perr.Kind.String()
		case llm.KindAuthFailure, llm.KindUnavailable:
			return http.StatusBadGateway, perr.Kind.String()
		}
		return http.StatusInternalServerError, perr.Kind.String()
	}
	return http.StatusInternalServerError, "internal"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}
