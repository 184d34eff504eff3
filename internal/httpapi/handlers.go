package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"regelrecht.org/internal/auth"
	"regelrecht.org/internal/portal"
)

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "regelrecht-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "regelrecht-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

// respondDomainError maps domain errors to status codes. Messages stay
// generic: credential and session failures never disclose which part of the
// check failed.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrRateLimited):
		respondError(w, http.StatusTooManyRequests, "too many attempts, try again later")
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrSessionInvalid), errors.Is(err, auth.ErrSessionExpired),
		errors.Is(err, auth.ErrSessionWrongKind):
		respondError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, portal.ErrRestrictedClassification):
		respondError(w, http.StatusBadRequest, "restricted documents are not accepted")
	case errors.Is(err, portal.ErrSubmissionNotMutable):
		respondError(w, http.StatusForbidden, "submission can no longer be modified")
	case errors.Is(err, portal.ErrInvalidTransition):
		respondError(w, http.StatusConflict, "status transition not allowed")
	case errors.Is(err, portal.ErrFileTooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, "file exceeds the upload limit")
	case errors.Is(err, portal.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, portal.ErrNotFound), errors.Is(err, auth.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
