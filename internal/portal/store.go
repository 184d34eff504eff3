package portal

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// Store describes persistence for submissions and their documents. Every
// request re-reads from the durable store; there is no process-local cache
// of submission state.
type Store interface {
	Submissions(ctx context.Context) SubmissionStore
	Documents(ctx context.Context) DocumentStore
}

// ListFilter narrows and pages admin listings. Search matches slug,
// submitter name, and organization, case-insensitively.
type ListFilter struct {
	Status *SubmissionStatus
	Search string
	Limit  int
	Offset int
}

// SubmissionStore manages submission records.
type SubmissionStore interface {
	Create(ctx context.Context, s *Submission) error
	Find(ctx context.Context, id uuid.UUID) (*Submission, error)
	FindBySlug(ctx context.Context, slug string) (*Submission, error)
	// Update persists the applicant-editable fields and UpdatedAt.
	Update(ctx context.Context, s *Submission) error
	// UpdateStatus is a compare-and-set on status: the write applies only if
	// the stored status still equals from. Returns false when the
	// precondition no longer holds.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to SubmissionStatus, submittedAt *time.Time, at time.Time) (bool, error)
	// List returns a page of submissions plus the unpaged total.
	List(ctx context.Context, f ListFilter) ([]Submission, int, error)
	// CountByStatus tallies submissions per status for the dashboard.
	CountByStatus(ctx context.Context) (map[SubmissionStatus]int, error)
	// PurgeExpired removes submissions whose retention date has passed,
	// together with their documents and uploader sessions.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// DocumentStore manages document records.
type DocumentStore interface {
	Create(ctx context.Context, d *Document) error
	Find(ctx context.Context, id uuid.UUID) (*Document, error)
	ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]Document, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	// Count reports the total number of documents across all submissions.
	Count(ctx context.Context) (int, error)
}

// BlobStore persists uploaded file bodies. Save must refuse readers that
// exceed limit with ErrFileTooLarge and must never trust name for path
// construction.
type BlobStore interface {
	Save(ctx context.Context, name string, r io.Reader, limit int64) (path string, size int64, err error)
	Remove(ctx context.Context, path string) error
}
