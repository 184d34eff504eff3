package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                     "/",
		"/metrics":                             "/metrics",
		"/api/submissions":                     "/api/submissions",
		"/api/submissions/rr-20260101-abcde":   "/api/submissions/:slug",
		"/api/submissions/rr-1/documents":      "/api/submissions/:slug/documents",
		"/api/submissions/rr-1/documents/d-42": "/api/submissions/:slug/documents/:id",
		"/api/submissions/rr-1/formal-law":     "/api/submissions/:slug/formal-law",
		"/api/submissions/rr-1/submit":         "/api/submissions/:slug/submit",
		"/api/admin/submissions":               "/api/admin/submissions",
		"/api/admin/submissions/abc/status":    "/api/admin/submissions/:id/status",
		"/api/admin/submissions/abc?x=1":       "/api/admin/submissions/:id",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
