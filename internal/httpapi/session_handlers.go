package httpapi

import (
	"net/http"

	"regelrecht.org/internal/auth"
)

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *API) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token, sess, user, err := a.auth.AdminLogin(r.Context(), req.Username, req.Password, a.clientMeta(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	a.setSessionCookie(w, adminCookie, token, a.cfg.AdminSessionTTL)
	writeJSON(w, http.StatusOK, map[string]any{
		"username":     user.Username,
		"display_name": user.DisplayName,
		"expires_at":   sess.ExpiresAt,
	})
}

func (a *API) AdminLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(adminCookie); err == nil && c.Value != "" {
		if err := a.auth.LogoutAdmin(r.Context(), c.Value, a.clientMeta(r)); err != nil {
			respondDomainError(w, err)
			return
		}
	}
	a.clearSessionCookie(w, adminCookie)
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

func (a *API) AdminMe(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.requireAdmin(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"username":     sess.Admin.Username,
		"email":        sess.Admin.Email,
		"display_name": sess.Admin.DisplayName,
		"expires_at":   sess.ExpiresAt,
	})
}

type uploaderLoginRequest struct {
	Slug  string `json:"slug"`
	Email string `json:"email"`
}

func (a *API) UploaderLogin(w http.ResponseWriter, r *http.Request) {
	var req uploaderLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token, sess, ref, err := a.auth.UploaderLogin(r.Context(), req.Slug, req.Email, a.clientMeta(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	a.setSessionCookie(w, uploaderCookie, token, a.cfg.UploaderSessionTTL)
	writeJSON(w, http.StatusOK, map[string]any{
		"slug":       ref.Slug,
		"expires_at": sess.ExpiresAt,
	})
}

func (a *API) UploaderLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(uploaderCookie); err == nil && c.Value != "" {
		if err := a.auth.LogoutUploader(r.Context(), c.Value, a.clientMeta(r)); err != nil {
			respondDomainError(w, err)
			return
		}
	}
	a.clearSessionCookie(w, uploaderCookie)
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

func (a *API) UploaderMe(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok || sess.Kind != auth.KindUploader {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"submission_id": sess.SubmissionID,
		"email":         sess.Email,
		"expires_at":    sess.ExpiresAt,
	})
}
