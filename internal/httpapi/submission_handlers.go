package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"regelrecht.org/internal/portal"
)

type createSubmissionRequest struct {
	SubmitterName  string `json:"submitter_name"`
	SubmitterEmail string `json:"submitter_email"`
	Organization   string `json:"organization"`
	Department     string `json:"department"`
	Notes          string `json:"notes"`
}

func (a *API) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	var req createSubmissionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sub, err := a.portal.CreateSubmission(r.Context(), portal.CreateSubmissionInput{
		SubmitterName:  req.SubmitterName,
		SubmitterEmail: req.SubmitterEmail,
		Organization:   req.Organization,
		Department:     req.Department,
		Notes:          req.Notes,
	}, a.clientMeta(r).Address)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, submissionJSON(sub, nil))
}

func (a *API) GetSubmission(w http.ResponseWriter, r *http.Request) {
	sub, docs, err := a.portal.GetSubmission(r.Context(), r.PathValue("slug"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, submissionJSON(sub, docs))
}

func (a *API) UpdateSubmission(w http.ResponseWriter, r *http.Request) {
	var req createSubmissionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sub, err := a.portal.UpdateDraft(r.Context(), r.PathValue("slug"), portal.UpdateDraftInput{
		SubmitterName:  req.SubmitterName,
		SubmitterEmail: req.SubmitterEmail,
		Organization:   req.Organization,
		Department:     req.Department,
		Notes:          req.Notes,
	}, gateActor(r), a.clientMeta(r).Address)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, submissionJSON(sub, nil))
}

func (a *API) SubmitSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := a.portal.Submit(r.Context(), r.PathValue("slug"), a.clientMeta(r).Address)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, submissionJSON(sub, nil))
}

func (a *API) UploadDocument(w http.ResponseWriter, r *http.Request) {
	// The multipart form is parsed with a small memory ceiling; larger file
	// parts spill to disk and the size cap is enforced on the streamed copy.
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		if errors.As(err, new(*http.MaxBytesError)) {
			respondError(w, http.StatusRequestEntityTooLarge, "file exceeds the upload limit")
			return
		}
		respondError(w, http.StatusBadRequest, "malformed multipart body")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file part")
		return
	}
	defer file.Close()

	doc, err := a.portal.AddDocument(r.Context(), r.PathValue("slug"), portal.UploadInput{
		Category:       portal.DocumentCategory(r.FormValue("category")),
		Classification: portal.Classification(r.FormValue("classification")),
		Filename:       header.Filename,
		MimeType:       header.Header.Get("Content-Type"),
		Size:           header.Size,
		Description:    r.FormValue("description"),
		Body:           file,
	}, gateActor(r), a.clientMeta(r).Address)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, documentJSON(doc))
}

type lawReferenceRequest struct {
	ExternalURL   string `json:"external_url"`
	ExternalTitle string `json:"external_title"`
	Description   string `json:"description"`
}

func (a *API) AddLawReference(w http.ResponseWriter, r *http.Request) {
	var req lawReferenceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	doc, err := a.portal.AddLawReference(r.Context(), r.PathValue("slug"),
		req.ExternalURL, req.ExternalTitle, req.Description,
		gateActor(r), a.clientMeta(r).Address)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, documentJSON(doc))
}

func (a *API) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	if err := a.portal.DeleteDocument(r.Context(), r.PathValue("slug"), docID, gateActor(r), a.clientMeta(r).Address); err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (a *API) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	docID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	_, docs, err := a.portal.GetSubmission(r.Context(), r.PathValue("slug"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	for _, d := range docs {
		if d.ID != docID {
			continue
		}
		if !d.HasStoredFile() {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		f, err := a.blobs.Open(d.FilePath)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		defer f.Close()
		w.Header().Set("Content-Type", d.MimeType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+d.OriginalFilename+`"`)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		_, _ = io.Copy(w, f)
		return
	}
	respondError(w, http.StatusNotFound, "not found")
}

func submissionJSON(s *portal.Submission, docs []portal.Document) map[string]any {
	out := map[string]any{
		"id":              s.ID,
		"slug":            s.Slug,
		"submitter_name":  s.SubmitterName,
		"submitter_email": s.SubmitterEmail,
		"organization":    s.Organization,
		"department":      s.Department,
		"status":          s.Status,
		"notes":           s.Notes,
		"created_at":      s.CreatedAt,
		"updated_at":      s.UpdatedAt,
	}
	if s.SubmittedAt != nil {
		out["submitted_at"] = s.SubmittedAt
	}
	if docs != nil {
		list := make([]map[string]any, 0, len(docs))
		for i := range docs {
			list = append(list, documentJSON(&docs[i]))
		}
		out["documents"] = list
	}
	return out
}

func documentJSON(d *portal.Document) map[string]any {
	out := map[string]any{
		"id":             d.ID,
		"submission_id":  d.SubmissionID,
		"category":       d.Category,
		"classification": d.Classification,
		"description":    d.Description,
		"created_at":     d.CreatedAt,
	}
	if d.HasStoredFile() {
		out["filename"] = d.OriginalFilename
		out["file_size"] = d.FileSize
		out["mime_type"] = d.MimeType
	}
	if d.ExternalURL != "" {
		out["external_url"] = d.ExternalURL
		out["external_title"] = d.ExternalTitle
	}
	return out
}
