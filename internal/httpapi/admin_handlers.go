package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"regelrecht.org/internal/portal"
)

func (a *API) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}
	stats, err := a.portal.DashboardStats(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	byStatus := make(map[string]int, len(stats.SubmissionsByStatus))
	for status, n := range stats.SubmissionsByStatus {
		byStatus[string(status)] = n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_submissions":     stats.TotalSubmissions,
		"submissions_by_status": byStatus,
		"total_documents":       stats.TotalDocuments,
	})
}

func (a *API) AdminListSubmissions(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}

	f := portal.ListFilter{Limit: 50}
	q := r.URL.Query()
	if raw := q.Get("status"); raw != "" {
		status := portal.SubmissionStatus(raw)
		f.Status = &status
	}
	f.Search = strings.TrimSpace(q.Get("search"))
	if raw := q.Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			f.Limit = v
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			f.Offset = v
		}
	}

	subs, total, err := a.portal.ListSubmissions(r.Context(), f)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	list := make([]map[string]any, 0, len(subs))
	for i := range subs {
		list = append(list, submissionJSON(&subs[i], nil))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"submissions": list,
		"total":       total,
		"limit":       f.Limit,
		"offset":      f.Offset,
	})
}

func (a *API) AdminGetSubmission(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	sub, docs, err := a.portal.SubmissionByID(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, submissionJSON(sub, docs))
}

type setStatusRequest struct {
	Status string `json:"status"`
}

func (a *API) AdminSetStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.requireAdmin(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	var req setStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sub, err := a.portal.SetStatus(r.Context(), id, portal.SubmissionStatus(req.Status),
		sess.AdminUserID, a.clientMeta(r).Address, nil)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, submissionJSON(sub, nil))
}

type forwardRequest struct {
	Destination string `json:"destination"`
}

func (a *API) AdminForward(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.requireAdmin(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	var req forwardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sub, err := a.portal.Forward(r.Context(), id, req.Destination, sess.AdminUserID, a.clientMeta(r).Address)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, submissionJSON(sub, nil))
}
