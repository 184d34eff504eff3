package httpapi

import (
	"net/http"
	"time"

	"regelrecht.org/internal/auth"
	"regelrecht.org/internal/portal"
)

const (
	adminCookie    = "rr_admin_session"
	uploaderCookie = "rr_uploader_session"
)

// withSessions resolves the session cookies before any handler runs. A
// stale or invalid cookie is treated the same as no cookie; handlers that
// require a session reject the request themselves.
func (a *API) withSessions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if c, err := r.Cookie(adminCookie); err == nil && c.Value != "" {
			if sess, err := a.auth.ValidateAdmin(ctx, c.Value); err == nil {
				ctx = auth.ContextWithSession(ctx, sess)
			}
		}
		// An uploader cookie is only consulted when no admin session resolved;
		// the kinds never mix on one request.
		if _, ok := auth.SessionFromContext(ctx); !ok {
			if c, err := r.Cookie(uploaderCookie); err == nil && c.Value != "" {
				if sess, err := a.auth.ValidateUploader(ctx, c.Value); err == nil {
					ctx = auth.ContextWithSession(ctx, sess)
				}
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin returns the admin session or writes a 401.
func (a *API) requireAdmin(w http.ResponseWriter, r *http.Request) (auth.Session, bool) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok || sess.Kind != auth.KindAdmin {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return auth.Session{}, false
	}
	return sess, true
}

// gateActor translates the request's session into the mutability gate's
// actor model.
func gateActor(r *http.Request) portal.Actor {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		return portal.AnonymousActor()
	}
	switch sess.Kind {
	case auth.KindAdmin:
		return portal.AdminActor()
	case auth.KindUploader:
		return portal.UploaderActor(sess.SubmissionID)
	}
	return portal.AnonymousActor()
}

// clientMeta extracts the audited client address and user agent.
func (a *API) clientMeta(r *http.Request) auth.ClientMeta {
	return auth.ClientMeta{
		Address:   clientIP(r, a.cfg.TrustedProxies),
		UserAgent: r.UserAgent(),
	}
}

// setSessionCookie issues the bearer cookie. HttpOnly and SameSite=Strict
// always; Secure outside development.
func (a *API) setSessionCookie(w http.ResponseWriter, name, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   a.cfg.IsProduction(),
	})
}

// clearSessionCookie expires the cookie immediately.
func (a *API) clearSessionCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   a.cfg.IsProduction(),
	})
}
