package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"regelrecht.org/internal/audit"
	"regelrecht.org/internal/auth"
)

// Service implements the submission lifecycle: dossier creation, the
// document set, status transitions, and admin review operations. All
// document mutations pass through CheckMutation; all privileged mutations
// fail closed when the audit trail cannot record them.
type Service struct {
	store Store
	blobs BlobStore
	audit audit.Logger

	maxUpload       int64
	retentionMonths int
	now             func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMaxUpload caps stored file size in bytes.
func WithMaxUpload(n int64) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithRetentionMonths sets how long a submission is kept after creation.
func WithRetentionMonths(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.retentionMonths = n
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the portal service.
func NewService(store Store, blobs BlobStore, auditLog audit.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		store:           store,
		blobs:           blobs,
		audit:           auditLog,
		maxUpload:       50 << 20,
		retentionMonths: 12,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSubmission opens a new dossier in draft with a freshly generated
// slug. The slug is returned to the applicant once and acts as their handle
// on the draft.
func (s *Service) CreateSubmission(ctx context.Context, in CreateSubmissionInput, addr string) (*Submission, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sub := &Submission{
		ID:                  uuid.New(),
		Slug:                NewSlug(now),
		SubmitterName:       strings.TrimSpace(in.SubmitterName),
		SubmitterEmail:      strings.TrimSpace(strings.ToLower(in.SubmitterEmail)),
		Organization:        strings.TrimSpace(in.Organization),
		Department:          strings.TrimSpace(in.Department),
		Status:              StatusDraft,
		Notes:               in.Notes,
		CreatedAt:           now,
		UpdatedAt:           now,
		RetentionExpiryDate: now.AddDate(0, s.retentionMonths, 0),
	}
	if err := s.store.Submissions(ctx).Create(ctx, sub); err != nil {
		return nil, err
	}
	if err := s.audit.Append(ctx, &audit.Entry{
		Action:     "submission_created",
		EntityType: "submission",
		EntityID:   sub.ID.String(),
		ActorType:  audit.ActorApplicant,
		ActorAddr:  addr,
	}); err != nil {
		return nil, err
	}
	return sub, nil
}

// GetSubmission loads a submission and its documents by slug.
func (s *Service) GetSubmission(ctx context.Context, slug string) (*Submission, []Document, error) {
	if !ValidSlug(slug) {
		return nil, nil, ErrNotFound
	}
	sub, err := s.store.Submissions(ctx).FindBySlug(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	docs, err := s.store.Documents(ctx).ListBySubmission(ctx, sub.ID)
	if err != nil {
		return nil, nil, err
	}
	return sub, docs, nil
}

// SubmissionByID loads a submission and its documents by id, for the admin
// surface where slugs are not the handle.
func (s *Service) SubmissionByID(ctx context.Context, id uuid.UUID) (*Submission, []Document, error) {
	sub, err := s.store.Submissions(ctx).Find(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	docs, err := s.store.Documents(ctx).ListBySubmission(ctx, sub.ID)
	if err != nil {
		return nil, nil, err
	}
	return sub, docs, nil
}

// UpdateDraftInput carries the applicant-editable fields.
type UpdateDraftInput struct {
	SubmitterName  string
	SubmitterEmail string
	Organization   string
	Department     string
	Notes          string
}

// UpdateDraft replaces the applicant-editable fields of a draft. Once the
// dossier leaves draft these fields are frozen.
func (s *Service) UpdateDraft(ctx context.Context, slug string, in UpdateDraftInput, actor Actor, addr string) (*Submission, error) {
	sub, err := s.store.Submissions(ctx).FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if sub.Status != StatusDraft && !actor.IsAdmin {
		return nil, ErrSubmissionNotMutable
	}
	ci := CreateSubmissionInput{
		SubmitterName:  in.SubmitterName,
		SubmitterEmail: in.SubmitterEmail,
		Organization:   in.Organization,
		Department:     in.Department,
		Notes:          in.Notes,
	}
	if err := ci.Validate(); err != nil {
		return nil, err
	}
	sub.SubmitterName = strings.TrimSpace(in.SubmitterName)
	sub.SubmitterEmail = strings.TrimSpace(strings.ToLower(in.SubmitterEmail))
	sub.Organization = strings.TrimSpace(in.Organization)
	sub.Department = strings.TrimSpace(in.Department)
	sub.Notes = in.Notes
	sub.UpdatedAt = s.now().UTC()
	if err := s.store.Submissions(ctx).Update(ctx, sub); err != nil {
		return nil, err
	}
	if err := s.audit.Append(ctx, &audit.Entry{
		Action:     "submission_updated",
		EntityType: "submission",
		EntityID:   sub.ID.String(),
		ActorType:  actorType(actor),
		ActorAddr:  addr,
	}); err != nil {
		return nil, err
	}
	return sub, nil
}

// Submit moves a draft to submitted. It requires a non-empty name and
// organization and a syntactically valid email already recorded; the email
// later doubles as the uploader credential.
func (s *Service) Submit(ctx context.Context, slug string, addr string) (*Submission, error) {
	sub, err := s.store.Submissions(ctx).FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := ValidateTransition(sub.Status, StatusSubmitted); err != nil {
		return nil, err
	}
	if strings.TrimSpace(sub.SubmitterName) == "" || strings.TrimSpace(sub.Organization) == "" {
		return nil, fmt.Errorf("%w: name and organization must be filled in before submitting", ErrInvalidInput)
	}
	if !ValidEmail(sub.SubmitterEmail) {
		return nil, fmt.Errorf("%w: a valid submitter_email is required before submitting", ErrInvalidInput)
	}
	now := s.now().UTC()
	ok, err := s.store.Submissions(ctx).UpdateStatus(ctx, sub.ID, sub.Status, StatusSubmitted, &now, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	sub.Status = StatusSubmitted
	sub.SubmittedAt = &now
	sub.UpdatedAt = now
	if err := s.audit.Append(ctx, &audit.Entry{
		Action:     "submission_submitted",
		EntityType: "submission",
		EntityID:   sub.ID.String(),
		ActorType:  audit.ActorApplicant,
		ActorAddr:  addr,
	}); err != nil {
		return nil, err
	}
	return sub, nil
}

// UploadInput describes one incoming file.
type UploadInput struct {
	Category       DocumentCategory
	Classification Classification
	Filename       string
	MimeType       string
	Size           int64
	Description    string
	Body           io.Reader
}

// AddDocument stores an uploaded file as a document of the submission,
// subject to the mutability gate and the upload policy.
func (s *Service) AddDocument(ctx context.Context, slug string, in UploadInput, actor Actor, addr string) (*Document, error) {
	sub, err := s.store.Submissions(ctx).FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !KnownCategory(in.Category) || in.Category == CategoryFormalLaw {
		return nil, fmt.Errorf("%w: unknown document category", ErrInvalidInput)
	}
	if !KnownClassification(in.Classification) {
		return nil, fmt.Errorf("%w: unknown classification", ErrInvalidInput)
	}

	d := CheckMutation(OpCreateDocument, actor, sub, in.Classification)
	if !d.Allowed {
		s.auditGateDeny(ctx, OpCreateDocument, d, sub, actor, addr)
		return nil, denyError(d.Reason)
	}

	if err := ValidateFileUpload(in.Filename, in.MimeType, in.Size, s.maxUpload); err != nil {
		return nil, err
	}
	safe := SanitizeFilename(in.Filename)
	stored := fmt.Sprintf("%s%s", uuid.New(), filepath.Ext(safe))
	path, size, err := s.blobs.Save(ctx, stored, in.Body, s.maxUpload)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		ID:               uuid.New(),
		SubmissionID:     sub.ID,
		Category:         in.Category,
		Classification:   in.Classification,
		Filename:         stored,
		OriginalFilename: safe,
		FilePath:         path,
		FileSize:         size,
		MimeType:         in.MimeType,
		Description:      in.Description,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.store.Documents(ctx).Create(ctx, doc); err != nil {
		_ = s.blobs.Remove(ctx, path)
		return nil, err
	}
	if err := s.auditGateAllow(ctx, OpCreateDocument, d, sub, doc.ID, actor, addr); err != nil {
		_, _ = s.store.Documents(ctx).Delete(ctx, doc.ID)
		_ = s.blobs.Remove(ctx, path)
		return nil, err
	}
	return doc, nil
}

// AddLawReference attaches a formal-law reference to the submission. Formal
// laws are public by definition and carry no stored file, only the external
// URL.
func (s *Service) AddLawReference(ctx context.Context, slug, url, title, description string, actor Actor, addr string) (*Document, error) {
	sub, err := s.store.Submissions(ctx).FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := ValidateExternalURL(url); err != nil {
		return nil, err
	}

	d := CheckMutation(OpCreateLawReference, actor, sub, ClassificationPublic)
	if !d.Allowed {
		s.auditGateDeny(ctx, OpCreateLawReference, d, sub, actor, addr)
		return nil, denyError(d.Reason)
	}

	doc := &Document{
		ID:             uuid.New(),
		SubmissionID:   sub.ID,
		Category:       CategoryFormalLaw,
		Classification: ClassificationPublic,
		ExternalURL:    strings.TrimSpace(url),
		ExternalTitle:  strings.TrimSpace(title),
		Description:    description,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.Documents(ctx).Create(ctx, doc); err != nil {
		return nil, err
	}
	if err := s.auditGateAllow(ctx, OpCreateLawReference, d, sub, doc.ID, actor, addr); err != nil {
		_, _ = s.store.Documents(ctx).Delete(ctx, doc.ID)
		return nil, err
	}
	return doc, nil
}

// DeleteDocument removes a document from the submission, subject to the
// mutability gate. The blob is removed best effort after the record.
func (s *Service) DeleteDocument(ctx context.Context, slug string, docID uuid.UUID, actor Actor, addr string) error {
	sub, err := s.store.Submissions(ctx).FindBySlug(ctx, slug)
	if err != nil {
		return err
	}
	doc, err := s.store.Documents(ctx).Find(ctx, docID)
	if err != nil {
		return err
	}
	if doc.SubmissionID != sub.ID {
		return ErrNotFound
	}

	d := CheckMutation(OpDeleteDocument, actor, sub, ClassificationPublic)
	if !d.Allowed {
		s.auditGateDeny(ctx, OpDeleteDocument, d, sub, actor, addr)
		return denyError(d.Reason)
	}

	deleted, err := s.store.Documents(ctx).Delete(ctx, docID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	if doc.HasStoredFile() {
		if rerr := s.blobs.Remove(ctx, doc.FilePath); rerr != nil {
			audit.Warn("document_blob_remove", rerr)
		}
	}
	return s.auditGateAllow(ctx, OpDeleteDocument, d, sub, docID, actor, addr)
}

// SetStatus performs an admin-triggered status transition with a
// compare-and-set write; a concurrent change surfaces as ErrInvalidTransition
// since the precondition no longer holds. The step into submitted is not
// available here: that one belongs to the applicant and goes through Submit,
// which validates the contact fields and stamps submitted_at.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, to SubmissionStatus, adminID uuid.UUID, addr string, detail map[string]any) (*Submission, error) {
	sub, err := s.store.Submissions(ctx).Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if to == StatusSubmitted {
		return nil, ErrInvalidTransition
	}
	if err := ValidateTransition(sub.Status, to); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	ok, err := s.store.Submissions(ctx).UpdateStatus(ctx, sub.ID, sub.Status, to, nil, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	from := sub.Status
	sub.Status = to
	sub.UpdatedAt = now

	entry := &audit.Entry{
		Action:     "submission_status_changed",
		EntityType: "submission",
		EntityID:   sub.ID.String(),
		ActorType:  audit.ActorAdmin,
		ActorID:    adminID.String(),
		ActorAddr:  addr,
		Detail:     map[string]any{"from": string(from), "to": string(to)},
	}
	for k, v := range detail {
		entry.Detail[k] = v
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		return nil, err
	}
	return sub, nil
}

// Forward marks a submission as handed over to the responsible ministry.
func (s *Service) Forward(ctx context.Context, id uuid.UUID, destination string, adminID uuid.UUID, addr string) (*Submission, error) {
	detail := map[string]any{}
	if strings.TrimSpace(destination) != "" {
		detail["destination"] = strings.TrimSpace(destination)
	}
	return s.SetStatus(ctx, id, StatusForwarded, adminID, addr, detail)
}

// ListSubmissions returns a page of submissions for the admin overview.
func (s *Service) ListSubmissions(ctx context.Context, f ListFilter) ([]Submission, int, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Status != nil && !KnownStatus(*f.Status) {
		return nil, 0, fmt.Errorf("%w: unknown status filter", ErrInvalidInput)
	}
	return s.store.Submissions(ctx).List(ctx, f)
}

// DashboardStats summarizes the workload for the admin dashboard.
type DashboardStats struct {
	TotalSubmissions    int
	SubmissionsByStatus map[SubmissionStatus]int
	TotalDocuments      int
}

// DashboardStats counts submissions per status and the stored documents.
func (s *Service) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	byStatus, err := s.store.Submissions(ctx).CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := s.store.Documents(ctx).Count(ctx)
	if err != nil {
		return nil, err
	}
	stats := &DashboardStats{
		SubmissionsByStatus: make(map[SubmissionStatus]int, len(byStatus)),
		TotalDocuments:      docs,
	}
	for status, n := range byStatus {
		stats.SubmissionsByStatus[status] = n
		stats.TotalSubmissions += n
	}
	return stats, nil
}

func denyError(reason DenyReason) error {
	if reason == DenyRestrictedClassification {
		return ErrRestrictedClassification
	}
	return ErrSubmissionNotMutable
}

func actorType(a Actor) audit.ActorType {
	switch {
	case a.IsAdmin:
		return audit.ActorAdmin
	case a.Anonymous:
		return audit.ActorApplicant
	default:
		return audit.ActorUploader
	}
}

// auditGateAllow records a permitted document mutation. Append failure fails
// the mutation itself; callers roll back what they created.
func (s *Service) auditGateAllow(ctx context.Context, op Operation, d Decision, sub *Submission, docID uuid.UUID, actor Actor, addr string) error {
	return s.audit.Append(ctx, &audit.Entry{
		Action:     "document_" + verb(op),
		EntityType: "document",
		EntityID:   docID.String(),
		ActorType:  actorType(actor),
		ActorAddr:  addr,
		Detail: map[string]any{
			"submission_id": sub.ID.String(),
			"operation":     string(op),
			"rule":          d.Rule,
		},
	})
}

// auditGateDeny records a denied document mutation. The denial is already
// the outcome, so append failure only warns.
func (s *Service) auditGateDeny(ctx context.Context, op Operation, d Decision, sub *Submission, actor Actor, addr string) {
	if err := s.audit.Append(ctx, &audit.Entry{
		Action:     "document_mutation_denied",
		EntityType: "submission",
		EntityID:   sub.ID.String(),
		ActorType:  actorType(actor),
		ActorAddr:  addr,
		Detail: map[string]any{
			"operation": string(op),
			"reason":    string(d.Reason),
		},
	}); err != nil {
		audit.Warn("document_mutation_denied", err)
	}
}

func verb(op Operation) string {
	switch op {
	case OpCreateDocument:
		return "uploaded"
	case OpCreateLawReference:
		return "law_reference_added"
	case OpDeleteDocument:
		return "deleted"
	}
	return string(op)
}

// SubmissionRefAdapter adapts the portal store for the uploader credential
// verifier without the auth package importing this one.
type SubmissionRefAdapter struct {
	Store Store
}

var _ auth.SubmissionLookup = (*SubmissionRefAdapter)(nil)

func (a *SubmissionRefAdapter) SubmissionRefBySlug(ctx context.Context, slug string) (auth.SubmissionRef, error) {
	sub, err := a.Store.Submissions(ctx).FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return auth.SubmissionRef{}, auth.ErrNotFound
		}
		return auth.SubmissionRef{}, err
	}
	return auth.SubmissionRef{ID: sub.ID, Slug: sub.Slug, Email: sub.SubmitterEmail}, nil
}
