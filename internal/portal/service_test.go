package portal

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"regelrecht.org/internal/audit"
)

func newTestPortal(t *testing.T) (*Service, *MemoryStore, *MemoryBlobStore, *audit.Memory) {
	t.Helper()
	store := NewMemoryStore()
	blobs := NewMemoryBlobStore()
	log := audit.NewMemory()
	clock := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	svc := NewService(store, blobs, log,
		WithMaxUpload(1<<20),
		WithClock(func() time.Time { return clock }),
	)
	return svc, store, blobs, log
}

func createDraft(t *testing.T, svc *Service) *Submission {
	t.Helper()
	sub, err := svc.CreateSubmission(context.Background(), CreateSubmissionInput{
		SubmitterName:  "A. Jansen",
		SubmitterEmail: "jansen@example.org",
		Organization:   "Gemeente Utrecht",
	}, "203.0.113.1")
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}
	return sub
}

func pdfUpload(name string) UploadInput {
	return UploadInput{
		Category:       CategoryCircular,
		Classification: ClassificationPublic,
		Filename:       name,
		MimeType:       "application/pdf",
		Size:           11,
		Body:           strings.NewReader("%PDF-1.4 xx"),
	}
}

func TestCreateSubmission(t *testing.T) {
	svc, _, _, log := newTestPortal(t)
	sub := createDraft(t, svc)

	if sub.Status != StatusDraft {
		t.Fatalf("status = %s, want draft", sub.Status)
	}
	if !ValidSlug(sub.Slug) || !strings.HasPrefix(sub.Slug, "rr-20260314-") {
		t.Fatalf("unexpected slug %q", sub.Slug)
	}
	if want := sub.CreatedAt.AddDate(0, 12, 0); !sub.RetentionExpiryDate.Equal(want) {
		t.Fatalf("retention date %v, want %v", sub.RetentionExpiryDate, want)
	}
	if _, ok := log.Last("submission_created"); !ok {
		t.Fatal("missing submission_created audit entry")
	}
}

func TestSubmitRequiresContactFields(t *testing.T) {
	svc, store, _, _ := newTestPortal(t)
	ctx := context.Background()

	sub, err := svc.CreateSubmission(ctx, CreateSubmissionInput{
		SubmitterName: "A. Jansen",
		Organization:  "Gemeente Utrecht",
	}, "203.0.113.1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// No email recorded yet: submitting must fail, the email is the future
	// uploader credential.
	if _, err := svc.Submit(ctx, sub.Slug, "203.0.113.1"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("submit without email: %v, want ErrInvalidInput", err)
	}

	sub.SubmitterEmail = "jansen@example.org"
	if err := store.Submissions(ctx).Update(ctx, sub); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := svc.Submit(ctx, sub.Slug, "203.0.113.1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got.Status != StatusSubmitted || got.SubmittedAt == nil {
		t.Fatalf("after submit: %+v", got)
	}

	// Submitting twice is an invalid transition.
	if _, err := svc.Submit(ctx, sub.Slug, "203.0.113.1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("double submit: %v, want ErrInvalidTransition", err)
	}
}

func TestAnonymousDraftUploadThenFrozen(t *testing.T) {
	svc, _, blobs, _ := newTestPortal(t)
	ctx := context.Background()
	sub := createDraft(t, svc)

	doc, err := svc.AddDocument(ctx, sub.Slug, pdfUpload("nota.pdf"), AnonymousActor(), "203.0.113.1")
	if err != nil {
		t.Fatalf("draft upload: %v", err)
	}
	if doc.OriginalFilename != "nota.pdf" || !doc.HasStoredFile() {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if blobs.Len() != 1 {
		t.Fatalf("blob count = %d, want 1", blobs.Len())
	}

	if _, err := svc.Submit(ctx, sub.Slug, "203.0.113.1"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Past draft an anonymous request may no longer mutate the document set.
	if _, err := svc.AddDocument(ctx, sub.Slug, pdfUpload("late.pdf"), AnonymousActor(), "203.0.113.1"); !errors.Is(err, ErrSubmissionNotMutable) {
		t.Fatalf("anonymous upload after submit: %v, want ErrSubmissionNotMutable", err)
	}

	// A bound uploader session may.
	if _, err := svc.AddDocument(ctx, sub.Slug, pdfUpload("late.pdf"), UploaderActor(sub.ID), "203.0.113.1"); err != nil {
		t.Fatalf("bound uploader upload: %v", err)
	}

	// An uploader bound to a different submission may not.
	if _, err := svc.AddDocument(ctx, sub.Slug, pdfUpload("x.pdf"), UploaderActor(uuid.New()), "203.0.113.1"); !errors.Is(err, ErrSubmissionNotMutable) {
		t.Fatalf("cross-bound uploader: %v, want ErrSubmissionNotMutable", err)
	}
}

func TestRestrictedUploadDeniedForAdmin(t *testing.T) {
	svc, _, blobs, log := newTestPortal(t)
	ctx := context.Background()
	sub := createDraft(t, svc)

	in := pdfUpload("secret.pdf")
	in.Classification = ClassificationRestricted
	if _, err := svc.AddDocument(ctx, sub.Slug, in, AdminActor(), "203.0.113.1"); !errors.Is(err, ErrRestrictedClassification) {
		t.Fatalf("restricted upload: %v, want ErrRestrictedClassification", err)
	}
	if blobs.Len() != 0 {
		t.Fatal("restricted upload left a blob behind")
	}
	if _, ok := log.Last("document_mutation_denied"); !ok {
		t.Fatal("missing deny audit entry")
	}
}

func TestUploadTooLarge(t *testing.T) {
	svc, _, _, _ := newTestPortal(t)
	ctx := context.Background()
	sub := createDraft(t, svc)

	in := pdfUpload("big.pdf")
	in.Size = 2 << 20
	if _, err := svc.AddDocument(ctx, sub.Slug, in, AnonymousActor(), "203.0.113.1"); !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("oversize upload: %v, want ErrFileTooLarge", err)
	}
}

func TestUploadAuditFailClosed(t *testing.T) {
	svc, store, blobs, log := newTestPortal(t)
	ctx := context.Background()
	sub := createDraft(t, svc)

	log.FailWith = errors.New("audit store down")
	if _, err := svc.AddDocument(ctx, sub.Slug, pdfUpload("nota.pdf"), AnonymousActor(), "203.0.113.1"); err == nil {
		t.Fatal("upload succeeded despite audit failure")
	}
	// The document and blob created before the failed append are rolled back.
	docs, err := store.Documents(ctx).ListBySubmission(ctx, sub.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("%d documents remain after failed audit", len(docs))
	}
	if blobs.Len() != 0 {
		t.Fatal("blob remains after failed audit")
	}
}

func TestAddLawReference(t *testing.T) {
	svc, _, _, log := newTestPortal(t)
	ctx := context.Background()
	sub := createDraft(t, svc)

	doc, err := svc.AddLawReference(ctx, sub.Slug, "https://wetten.overheid.nl/BWBR0005537", "Awb", "", AnonymousActor(), "203.0.113.1")
	if err != nil {
		t.Fatalf("AddLawReference: %v", err)
	}
	if doc.Category != CategoryFormalLaw || doc.Classification != ClassificationPublic {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if doc.HasStoredFile() {
		t.Fatal("law reference must not carry a stored file")
	}
	if _, ok := log.Last("document_law_reference_added"); !ok {
		t.Fatal("missing audit entry")
	}
}

func TestDeleteDocument(t *testing.T) {
	svc, _, blobs, _ := newTestPortal(t)
	ctx := context.Background()
	sub := createDraft(t, svc)

	doc, err := svc.AddDocument(ctx, sub.Slug, pdfUpload("nota.pdf"), AnonymousActor(), "203.0.113.1")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := svc.DeleteDocument(ctx, sub.Slug, doc.ID, AnonymousActor(), "203.0.113.1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if blobs.Len() != 0 {
		t.Fatal("blob not removed with document")
	}
	if err := svc.DeleteDocument(ctx, sub.Slug, doc.ID, AnonymousActor(), "203.0.113.1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: %v, want ErrNotFound", err)
	}
}

func TestDeleteDocumentWrongSubmission(t *testing.T) {
	svc, _, _, _ := newTestPortal(t)
	ctx := context.Background()
	a := createDraft(t, svc)
	b := createDraft(t, svc)

	doc, err := svc.AddDocument(ctx, a.Slug, pdfUpload("nota.pdf"), AnonymousActor(), "203.0.113.1")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	// Addressing a document through the wrong submission is a 404, not a
	// permission error; the route must not leak cross-submission structure.
	if err := svc.DeleteDocument(ctx, b.Slug, doc.ID, AdminActor(), "203.0.113.1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-submission delete: %v, want ErrNotFound", err)
	}
}

func TestSetStatusForwardOnlyWithCAS(t *testing.T) {
	svc, _, _, log := newTestPortal(t)
	ctx := context.Background()
	adminID := uuid.New()
	sub := createDraft(t, svc)

	if _, err := svc.Submit(ctx, sub.Slug, "203.0.113.1"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	got, err := svc.SetStatus(ctx, sub.ID, StatusUnderReview, adminID, "203.0.113.9", nil)
	if err != nil {
		t.Fatalf("to under_review: %v", err)
	}
	if got.Status != StatusUnderReview {
		t.Fatalf("status = %s", got.Status)
	}
	if _, err := svc.SetStatus(ctx, sub.ID, StatusApproved, adminID, "203.0.113.9", nil); err != nil {
		t.Fatalf("to approved: %v", err)
	}
	// Reversal is rejected.
	if _, err := svc.SetStatus(ctx, sub.ID, StatusSubmitted, adminID, "203.0.113.9", nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("reversal: %v, want ErrInvalidTransition", err)
	}
	entry, ok := log.Last("submission_status_changed")
	if !ok {
		t.Fatal("missing status change audit entry")
	}
	if entry.Detail["from"] != "under_review" || entry.Detail["to"] != "approved" {
		t.Fatalf("unexpected audit detail: %v", entry.Detail)
	}
}

func TestSetStatusCannotMintSubmitted(t *testing.T) {
	svc, store, _, _ := newTestPortal(t)
	ctx := context.Background()
	adminID := uuid.New()

	sub, err := svc.CreateSubmission(ctx, CreateSubmissionInput{
		SubmitterName: "A. Jansen",
		Organization:  "Gemeente Utrecht",
	}, "203.0.113.1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Moving a draft to submitted here would skip the contact-field checks
	// and the submitted_at stamp; only Submit may take that step.
	if _, err := svc.SetStatus(ctx, sub.ID, StatusSubmitted, adminID, "203.0.113.9", nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("admin draft -> submitted: %v, want ErrInvalidTransition", err)
	}
	got, err := store.Submissions(ctx).Find(ctx, sub.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Status != StatusDraft || got.SubmittedAt != nil {
		t.Fatalf("draft was modified: %+v", got)
	}
}

func TestForward(t *testing.T) {
	svc, _, _, log := newTestPortal(t)
	ctx := context.Background()
	adminID := uuid.New()
	sub := createDraft(t, svc)

	if _, err := svc.Submit(ctx, sub.Slug, "203.0.113.1"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.SetStatus(ctx, sub.ID, StatusUnderReview, adminID, "203.0.113.9", nil); err != nil {
		t.Fatalf("to under_review: %v", err)
	}
	got, err := svc.Forward(ctx, sub.ID, "Ministerie van BZK", adminID, "203.0.113.9")
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if got.Status != StatusForwarded {
		t.Fatalf("status = %s", got.Status)
	}
	entry, _ := log.Last("submission_status_changed")
	if entry.Detail["destination"] != "Ministerie van BZK" {
		t.Fatalf("destination missing from audit detail: %v", entry.Detail)
	}
}

func TestListSubmissions(t *testing.T) {
	svc, _, _, _ := newTestPortal(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		createDraft(t, svc)
	}
	sub := createDraft(t, svc)
	if _, err := svc.Submit(ctx, sub.Slug, "203.0.113.1"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	all, total, err := svc.ListSubmissions(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 4 || len(all) != 4 {
		t.Fatalf("total = %d len = %d, want 4/4", total, len(all))
	}

	status := StatusSubmitted
	got, total, err := svc.ListSubmissions(ctx, ListFilter{Status: &status})
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if total != 1 || len(got) != 1 || got[0].ID != sub.ID {
		t.Fatalf("filtered = %d/%d", len(got), total)
	}

	found, total, err := svc.ListSubmissions(ctx, ListFilter{Search: sub.Slug})
	if err != nil {
		t.Fatalf("search list: %v", err)
	}
	if total != 1 || len(found) != 1 || found[0].ID != sub.ID {
		t.Fatalf("search = %d/%d", len(found), total)
	}

	bad := SubmissionStatus("archived")
	if _, _, err := svc.ListSubmissions(ctx, ListFilter{Status: &bad}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown filter: %v, want ErrInvalidInput", err)
	}
}

func TestUpdateDraftFrozenAfterSubmit(t *testing.T) {
	svc, _, _, _ := newTestPortal(t)
	ctx := context.Background()
	sub := createDraft(t, svc)

	in := UpdateDraftInput{
		SubmitterName:  "B. de Vries",
		SubmitterEmail: "devries@example.org",
		Organization:   "Provincie Utrecht",
	}
	got, err := svc.UpdateDraft(ctx, sub.Slug, in, AnonymousActor(), "203.0.113.1")
	if err != nil {
		t.Fatalf("update draft: %v", err)
	}
	if got.SubmitterName != "B. de Vries" {
		t.Fatalf("name = %q", got.SubmitterName)
	}

	if _, err := svc.Submit(ctx, sub.Slug, "203.0.113.1"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.UpdateDraft(ctx, sub.Slug, in, AnonymousActor(), "203.0.113.1"); !errors.Is(err, ErrSubmissionNotMutable) {
		t.Fatalf("update after submit: %v, want ErrSubmissionNotMutable", err)
	}
	// Admins may still correct the fields.
	if _, err := svc.UpdateDraft(ctx, sub.Slug, in, AdminActor(), "203.0.113.9"); err != nil {
		t.Fatalf("admin correction: %v", err)
	}
}
