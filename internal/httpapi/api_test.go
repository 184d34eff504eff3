package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"regelrecht.org/internal/audit"
	"regelrecht.org/internal/auth"
	"regelrecht.org/internal/config"
	"regelrecht.org/internal/portal"
)

type testEnv struct {
	api      *API
	handler  http.Handler
	authMem  *auth.MemoryStore
	blobMem  *portal.MemoryBlobStore
	auditLog *audit.Memory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		Environment:        config.Development,
		AdminSessionTTL:    8 * time.Hour,
		UploaderSessionTTL: 4 * time.Hour,
		MaxUploadBytes:     1 << 20,
	}
	authStore := auth.NewMemoryStore()
	portalStore := portal.NewMemoryStore()
	blobs := portal.NewMemoryBlobStore()
	log := audit.NewMemory()

	portalSvc := portal.NewService(portalStore, blobs, log, portal.WithMaxUpload(cfg.MaxUploadBytes))
	authSvc := auth.NewService(authStore, &portal.SubmissionRefAdapter{Store: portalStore}, log)

	api := New(cfg, authSvc, portalSvc, nil, ReadyProbe{}, "test")
	env := &testEnv{
		api:      api,
		handler:  api.withSessions(api.mux),
		authMem:  authStore,
		blobMem:  blobs,
		auditLog: log,
	}
	env.seedAdmin(t, authSvc)
	return env
}

func (e *testEnv) seedAdmin(t *testing.T, svc *auth.Service) {
	t.Helper()
	if _, err := svc.CreateAdminUser(t.Context(), "reviewer", "reviewer@example.org", "s3cret-admin-pw", "Reviewer"); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = "203.0.113.7:52114"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) upload(t *testing.T, slug, filename, classification string, content []byte, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	_ = mw.WriteField("category", "circular")
	_ = mw.WriteField("classification", classification)
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/submissions/"+slug+"/documents", &buf)
	req.RemoteAddr = "203.0.113.7:52114"
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", name)
	return nil
}

func (e *testEnv) createDraft(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/submissions", map[string]any{
		"submitter_name":  "A. Jansen",
		"submitter_email": "jansen@example.org",
		"organization":    "Gemeente Utrecht",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create submission: %d %s", rec.Code, rec.Body.String())
	}
	return decodeBody(t, rec)["slug"].(string)
}

func TestAnonymousWizardFlow(t *testing.T) {
	env := newTestEnv(t)
	slug := env.createDraft(t)

	// Anonymous upload on the draft succeeds.
	rec := env.upload(t, slug, "nota.pdf", "public", []byte("%PDF-1.4"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("draft upload: %d %s", rec.Code, rec.Body.String())
	}

	// Submit the dossier.
	rec = env.do(t, http.MethodPost, "/api/submissions/"+slug+"/submit", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", rec.Code, rec.Body.String())
	}

	// Anonymous upload is now refused as not mutable.
	rec = env.upload(t, slug, "late.pdf", "public", []byte("%PDF-1.4"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("anonymous upload after submit: %d, want 403", rec.Code)
	}

	// An uploader session for this submission unlocks the same upload.
	rec = env.do(t, http.MethodPost, "/api/sessions/uploader", map[string]any{
		"slug":  slug,
		"email": "jansen@example.org",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("uploader login: %d %s", rec.Code, rec.Body.String())
	}
	cookie := sessionCookie(t, rec, uploaderCookie)

	rec = env.upload(t, slug, "late.pdf", "public", []byte("%PDF-1.4"), cookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("uploader retry: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRestrictedUploadRejected(t *testing.T) {
	env := newTestEnv(t)
	slug := env.createDraft(t)

	rec := env.upload(t, slug, "secret.pdf", "restricted", []byte("%PDF-1.4"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("restricted upload: %d, want 400", rec.Code)
	}

	// Not even an admin can store restricted material.
	admin := env.adminLogin(t)
	rec = env.upload(t, slug, "secret.pdf", "restricted", []byte("%PDF-1.4"), admin)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("restricted upload as admin: %d, want 400", rec.Code)
	}
}

func TestUploadTooLargeIs413(t *testing.T) {
	env := newTestEnv(t)
	slug := env.createDraft(t)

	rec := env.upload(t, slug, "big.pdf", "public", bytes.Repeat([]byte("x"), 2<<20))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversize upload: %d, want 413", rec.Code)
	}
}

func (e *testEnv) adminLogin(t *testing.T) *http.Cookie {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/sessions/admin", map[string]any{
		"username": "reviewer",
		"password": "s3cret-admin-pw",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("admin login: %d %s", rec.Code, rec.Body.String())
	}
	return sessionCookie(t, rec, adminCookie)
}

func TestAdminDashboard(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminLogin(t)

	slug := env.createDraft(t)
	env.createDraft(t)
	if rec := env.upload(t, slug, "nota.pdf", "public", []byte("%PDF-1.4")); rec.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodPost, "/api/submissions/"+slug+"/submit", nil); rec.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", rec.Code, rec.Body.String())
	}

	if rec := env.do(t, http.MethodGet, "/api/admin/dashboard", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("dashboard without session: %d", rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/admin/dashboard", nil, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard: %d %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["total_submissions"].(float64) != 2 {
		t.Fatalf("total_submissions = %v, want 2", body["total_submissions"])
	}
	if body["total_documents"].(float64) != 1 {
		t.Fatalf("total_documents = %v, want 1", body["total_documents"])
	}
	byStatus := body["submissions_by_status"].(map[string]any)
	if byStatus["draft"].(float64) != 1 || byStatus["submitted"].(float64) != 1 {
		t.Fatalf("submissions_by_status = %v", byStatus)
	}
}

func TestAdminLoginCookieFlags(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/sessions/admin", map[string]any{
		"username": "reviewer",
		"password": "s3cret-admin-pw",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}
	c := sessionCookie(t, rec, adminCookie)
	if !c.HttpOnly {
		t.Fatal("cookie is not HttpOnly")
	}
	if c.SameSite != http.SameSiteStrictMode {
		t.Fatalf("SameSite = %v, want Strict", c.SameSite)
	}
	if c.Secure {
		t.Fatal("Secure set in development environment")
	}
	if len(c.Value) != 64 {
		t.Fatalf("token length = %d, want 64", len(c.Value))
	}
}

func TestAdminLoginFailures(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/sessions/admin", map[string]any{
		"username": "reviewer",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: %d, want 401", rec.Code)
	}

	// Unknown user reads identically.
	rec = env.do(t, http.MethodPost, "/api/sessions/admin", map[string]any{
		"username": "ghost",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user: %d, want 401", rec.Code)
	}
}

func TestAdminLoginRateLimited(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 10; i++ {
		env.do(t, http.MethodPost, "/api/sessions/admin", map[string]any{
			"username": "reviewer", "password": "wrong",
		})
	}
	rec := env.do(t, http.MethodPost, "/api/sessions/admin", map[string]any{
		"username": "reviewer", "password": "s3cret-admin-pw",
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("11th attempt: %d, want 429", rec.Code)
	}
}

func TestAdminMeAndLogout(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.adminLogin(t)

	rec := env.do(t, http.MethodGet, "/api/sessions/admin/me", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: %d %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["username"] != "reviewer" {
		t.Fatalf("me body: %v", body)
	}

	rec = env.do(t, http.MethodPost, "/api/sessions/admin/logout", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: %d", rec.Code)
	}

	// The token no longer resolves.
	rec = env.do(t, http.MethodGet, "/api/sessions/admin/me", nil, cookie)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("me after logout: %d, want 401", rec.Code)
	}

	// Logout is idempotent.
	rec = env.do(t, http.MethodPost, "/api/sessions/admin/logout", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("repeated logout: %d, want 200", rec.Code)
	}
}

func TestMeWithoutSession(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(t, http.MethodGet, "/api/sessions/admin/me", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("admin me: %d, want 401", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/sessions/uploader/me", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("uploader me: %d, want 401", rec.Code)
	}
}

func TestSessionKindsNotInterchangeable(t *testing.T) {
	env := newTestEnv(t)
	slug := env.createDraft(t)
	env.do(t, http.MethodPost, "/api/submissions/"+slug+"/submit", nil)

	rec := env.do(t, http.MethodPost, "/api/sessions/uploader", map[string]any{
		"slug": slug, "email": "jansen@example.org",
	})
	uploader := sessionCookie(t, rec, uploaderCookie)

	// An uploader token presented under the admin cookie name must not grant
	// admin access.
	forged := &http.Cookie{Name: adminCookie, Value: uploader.Value}
	if rec := env.do(t, http.MethodGet, "/api/sessions/admin/me", nil, forged); rec.Code != http.StatusUnauthorized {
		t.Fatalf("uploader token as admin: %d, want 401", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/admin/submissions", nil, forged); rec.Code != http.StatusUnauthorized {
		t.Fatalf("admin list with forged cookie: %d, want 401", rec.Code)
	}
}

func TestAdminStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminLogin(t)
	slug := env.createDraft(t)
	env.do(t, http.MethodPost, "/api/submissions/"+slug+"/submit", nil)

	rec := env.do(t, http.MethodGet, "/api/submissions/"+slug, nil)
	id := decodeBody(t, rec)["id"].(string)

	set := func(status string) *httptest.ResponseRecorder {
		return env.do(t, http.MethodPut, "/api/admin/submissions/"+id+"/status",
			map[string]any{"status": status}, admin)
	}

	if rec := set("under_review"); rec.Code != http.StatusOK {
		t.Fatalf("to under_review: %d %s", rec.Code, rec.Body.String())
	}
	if rec := set("approved"); rec.Code != http.StatusOK {
		t.Fatalf("to approved: %d %s", rec.Code, rec.Body.String())
	}
	// Reverse transition conflicts.
	if rec := set("submitted"); rec.Code != http.StatusConflict {
		t.Fatalf("reversal: %d, want 409", rec.Code)
	}
	// Unauthenticated status change is refused.
	rec = env.do(t, http.MethodPut, "/api/admin/submissions/"+id+"/status",
		map[string]any{"status": "completed"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status change: %d, want 401", rec.Code)
	}
}

func TestAdminListAndForward(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminLogin(t)
	slug := env.createDraft(t)
	env.do(t, http.MethodPost, "/api/submissions/"+slug+"/submit", nil)

	rec := env.do(t, http.MethodGet, "/api/admin/submissions?status=submitted", nil, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["total"].(float64) != 1 {
		t.Fatalf("total = %v, want 1", body["total"])
	}
	id := body["submissions"].([]any)[0].(map[string]any)["id"].(string)

	if rec := env.do(t, http.MethodPut, "/api/admin/submissions/"+id+"/status",
		map[string]any{"status": "under_review"}, admin); rec.Code != http.StatusOK {
		t.Fatalf("to under_review: %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/api/admin/submissions/"+id+"/forward",
		map[string]any{"destination": "Ministerie van BZK"}, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("forward: %d %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody(t, rec)["status"]; got != "forwarded" {
		t.Fatalf("status = %v, want forwarded", got)
	}
}

func TestDeleteDocumentEndpoint(t *testing.T) {
	env := newTestEnv(t)
	slug := env.createDraft(t)

	rec := env.upload(t, slug, "nota.pdf", "public", []byte("%PDF-1.4"))
	docID := decodeBody(t, rec)["id"].(string)

	rec = env.do(t, http.MethodDelete, "/api/submissions/"+slug+"/documents/"+docID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodDelete, "/api/submissions/"+slug+"/documents/"+docID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: %d, want 404", rec.Code)
	}
}

func TestUploaderLoginWrongEmail(t *testing.T) {
	env := newTestEnv(t)
	slug := env.createDraft(t)
	env.do(t, http.MethodPost, "/api/submissions/"+slug+"/submit", nil)

	rec := env.do(t, http.MethodPost, "/api/sessions/uploader", map[string]any{
		"slug": slug, "email": "other@example.org",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong email: %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid credentials") {
		t.Fatalf("body leaks detail: %s", rec.Body.String())
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	env := newTestEnv(t)
	h := SecurityHeaders(env.handler, false)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing X-Content-Type-Options")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatal("missing X-Frame-Options")
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Fatal("HSTS must be off outside production")
	}
}

func TestSecurityHeadersHSTSInProduction(t *testing.T) {
	env := newTestEnv(t)
	h := SecurityHeaders(env.handler, true)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Strict-Transport-Security") == "" {
		t.Fatal("missing Strict-Transport-Security")
	}
}
