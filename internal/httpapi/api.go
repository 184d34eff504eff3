// Package httpapi is the HTTP boundary of the submission portal: routing,
// session cookies, and the mapping from domain errors to status codes.
package httpapi

import (
	"context"
	"database/sql"
	"io"
	"net/http"

	"regelrecht.org/internal/auth"
	"regelrecht.org/internal/config"
	"regelrecht.org/internal/obs"
	"regelrecht.org/internal/portal"
)

// BlobOpener serves stored document bodies for download.
type BlobOpener interface {
	Open(path string) (io.ReadCloser, error)
}

// ReadyProbe is a readiness check, typically a database ping.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	auth       *auth.Service
	portal     *portal.Service
	blobs      BlobOpener
	cfg        *config.Config
	readyProbe ReadyProbe
	version    string
}

// New wires the route table.
func New(cfg *config.Config, authSvc *auth.Service, portalSvc *portal.Service, blobs BlobOpener, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		auth:       authSvc,
		portal:     portalSvc,
		blobs:      blobs,
		cfg:        cfg,
		readyProbe: rp,
		version:    version,
	}

	// health/ready/info
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.HandleFunc("GET /info", a.Info)

	// Prometheus metrics
	a.mux.Handle("GET /metrics", obs.Handler())

	// sessions
	a.mux.HandleFunc("POST /api/sessions/admin", a.AdminLogin)
	a.mux.HandleFunc("POST /api/sessions/admin/logout", a.AdminLogout)
	a.mux.HandleFunc("GET /api/sessions/admin/me", a.AdminMe)
	a.mux.HandleFunc("POST /api/sessions/uploader", a.UploaderLogin)
	a.mux.HandleFunc("POST /api/sessions/uploader/logout", a.UploaderLogout)
	a.mux.HandleFunc("GET /api/sessions/uploader/me", a.UploaderMe)

	// applicant-facing submissions
	a.mux.HandleFunc("POST /api/submissions", a.CreateSubmission)
	a.mux.HandleFunc("GET /api/submissions/{slug}", a.GetSubmission)
	a.mux.HandleFunc("PUT /api/submissions/{slug}", a.UpdateSubmission)
	a.mux.HandleFunc("POST /api/submissions/{slug}/submit", a.SubmitSubmission)
	a.mux.HandleFunc("POST /api/submissions/{slug}/documents", a.UploadDocument)
	a.mux.HandleFunc("POST /api/submissions/{slug}/law-references", a.AddLawReference)
	a.mux.HandleFunc("DELETE /api/submissions/{slug}/documents/{id}", a.DeleteDocument)
	a.mux.HandleFunc("GET /api/submissions/{slug}/documents/{id}", a.DownloadDocument)

	// admin review surface
	a.mux.HandleFunc("GET /api/admin/dashboard", a.AdminDashboard)
	a.mux.HandleFunc("GET /api/admin/submissions", a.AdminListSubmissions)
	a.mux.HandleFunc("GET /api/admin/submissions/{id}", a.AdminGetSubmission)
	a.mux.HandleFunc("PUT /api/admin/submissions/{id}/status", a.AdminSetStatus)
	a.mux.HandleFunc("POST /api/admin/submissions/{id}/forward", a.AdminForward)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the route table.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withSessions(h)
	h = MaxBodyBytes(h, a.cfg.MaxUploadBytes+1<<20)
	h = RateLimit(h, 30, 10, a.cfg.TrustedProxies)
	h = SecurityHeaders(h, a.cfg.IsProduction())
	h = CORS(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}
