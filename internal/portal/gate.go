package portal

import (
	"github.com/google/uuid"

	"regelrecht.org/internal/obs"
)

// Operation is a document mutation subject to the mutability gate.
type Operation string

const (
	OpCreateDocument     Operation = "create_document"
	OpCreateLawReference Operation = "create_law_reference"
	OpDeleteDocument     Operation = "delete_document"
)

// DenyReason explains a gate denial; the HTTP layer maps each reason to its
// status code.
type DenyReason string

const (
	DenyRestrictedClassification DenyReason = "restricted_classification_not_accepted"
	DenySubmissionNotMutable     DenyReason = "submission_not_mutable"
)

// Actor is the identity attempting a document mutation, as resolved from the
// request's session (or the lack of one).
type Actor struct {
	IsAdmin bool
	// SubmissionID is the single submission an uploader session is bound to.
	// Zero for admins and anonymous actors.
	SubmissionID uuid.UUID
	// Anonymous is true when the request carries no session at all.
	Anonymous bool
}

// AdminActor is the gate actor for an authenticated admin.
func AdminActor() Actor { return Actor{IsAdmin: true} }

// UploaderActor is the gate actor for an uploader session bound to one
// submission.
func UploaderActor(submissionID uuid.UUID) Actor { return Actor{SubmissionID: submissionID} }

// AnonymousActor is the gate actor for a request with no session.
func AnonymousActor() Actor { return Actor{Anonymous: true} }

// Decision is the gate's verdict for one attempted mutation.
type Decision struct {
	Allowed bool
	Reason  DenyReason
	// Rule names the permitting rule for allowed decisions, for the audit
	// trail: "admin", "draft" or "bound_uploader".
	Rule string
}

// CheckMutation decides whether actor may perform op on the submission. The
// classification argument is only meaningful for document-creating
// operations; pass the document's requested classification there and
// ClassificationPublic for deletes.
//
// Rules are evaluated in a fixed order. The restricted-classification check
// comes first and is unconditional, so not even an admin can store a
// restricted document: it is content policy, not access control. After
// that, the first permitting rule wins: admins may mutate regardless of
// status (used for corrections), anyone in possession of a draft's slug may
// build up that draft, and past draft only an uploader session bound to
// this exact submission may mutate. Everything else is denied as not
// mutable, deliberately vague about whether the obstacle is state or
// entitlement.
func CheckMutation(op Operation, actor Actor, sub *Submission, classification Classification) Decision {
	deny := func(reason DenyReason) Decision {
		obs.ObserveGateDecision(string(op), string(reason))
		return Decision{Allowed: false, Reason: reason}
	}
	allow := func(rule string) Decision {
		obs.ObserveGateDecision(string(op), "allowed")
		return Decision{Allowed: true, Rule: rule}
	}

	if creates(op) && classification == ClassificationRestricted {
		return deny(DenyRestrictedClassification)
	}
	if actor.IsAdmin {
		return allow("admin")
	}
	if sub.Status == StatusDraft {
		return allow("draft")
	}
	if !actor.Anonymous && actor.SubmissionID == sub.ID {
		return allow("bound_uploader")
	}
	return deny(DenySubmissionNotMutable)
}

func creates(op Operation) bool {
	return op == OpCreateDocument || op == OpCreateLawReference
}
