package portal

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus is the lifecycle state of a dossier. Values match the
// database enum; transitions are enforced by ValidateTransition.
type SubmissionStatus string

const (
	StatusDraft       SubmissionStatus = "draft"
	StatusSubmitted   SubmissionStatus = "submitted"
	StatusUnderReview SubmissionStatus = "under_review"
	StatusApproved    SubmissionStatus = "approved"
	StatusRejected    SubmissionStatus = "rejected"
	StatusForwarded   SubmissionStatus = "forwarded"
	StatusCompleted   SubmissionStatus = "completed"
)

// DocumentCategory classifies what kind of source a document is.
type DocumentCategory string

const (
	CategoryFormalLaw            DocumentCategory = "formal_law"
	CategoryCircular             DocumentCategory = "circular"
	CategoryImplementationPolicy DocumentCategory = "implementation_policy"
	CategoryWorkInstruction      DocumentCategory = "work_instruction"
)

// Classification is a document's allowed-processing tier. Restricted
// documents are never accepted for storage.
type Classification string

const (
	ClassificationPublic     Classification = "public"
	ClassificationAIAllowed  Classification = "ai_allowed"
	ClassificationRestricted Classification = "restricted"
)

// Submission is the aggregate root for a dossier and its documents.
type Submission struct {
	ID                  uuid.UUID
	Slug                string
	SubmitterName       string
	SubmitterEmail      string
	Organization        string
	Department          string
	Status              SubmissionStatus
	Notes               string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	SubmittedAt         *time.Time
	RetentionExpiryDate time.Time
}

// Document belongs to exactly one submission. A document carries either an
// external reference (formal laws) or a stored file, never both.
type Document struct {
	ID             uuid.UUID
	SubmissionID   uuid.UUID
	Category       DocumentCategory
	Classification Classification

	// External reference, only for CategoryFormalLaw.
	ExternalURL   string
	ExternalTitle string

	// Stored file, for every other category.
	Filename         string
	OriginalFilename string
	FilePath         string
	FileSize         int64
	MimeType         string

	Description string
	CreatedAt   time.Time
}

// HasStoredFile reports whether the document points at a stored file.
func (d *Document) HasStoredFile() bool { return d.FilePath != "" }

// KnownCategory reports whether c is one of the closed category values.
func KnownCategory(c DocumentCategory) bool {
	switch c {
	case CategoryFormalLaw, CategoryCircular, CategoryImplementationPolicy, CategoryWorkInstruction:
		return true
	}
	return false
}

// KnownClassification reports whether c is one of the closed classification values.
func KnownClassification(c Classification) bool {
	switch c {
	case ClassificationPublic, ClassificationAIAllowed, ClassificationRestricted:
		return true
	}
	return false
}

// KnownStatus reports whether s is one of the closed status values.
func KnownStatus(s SubmissionStatus) bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusUnderReview, StatusApproved,
		StatusRejected, StatusForwarded, StatusCompleted:
		return true
	}
	return false
}
