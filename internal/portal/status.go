package portal

// allowedTransitions lists every legal forward step of the submission
// lifecycle. Reversals are never legal; rejected and completed are terminal.
var allowedTransitions = map[SubmissionStatus][]SubmissionStatus{
	StatusDraft:       {StatusSubmitted, StatusCompleted},
	StatusSubmitted:   {StatusUnderReview, StatusCompleted},
	StatusUnderReview: {StatusApproved, StatusRejected, StatusForwarded, StatusCompleted},
	StatusApproved:    {StatusCompleted},
	StatusForwarded:   {StatusCompleted},
	StatusRejected:    {},
	StatusCompleted:   {},
}

// Terminal reports whether no further transition is possible from s.
func (s SubmissionStatus) Terminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

// CanTransition reports whether from may move to to in one step.
func CanTransition(from, to SubmissionStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition checks a requested status change. It returns
// ErrInvalidTransition for unknown statuses, self-transitions, reversals, and
// any step the lifecycle does not allow. Whether the caller is entitled to
// request the step (admin vs. applicant) is checked by the HTTP layer; the
// machine itself is pure.
func ValidateTransition(from, to SubmissionStatus) error {
	if !KnownStatus(from) || !KnownStatus(to) {
		return ErrInvalidTransition
	}
	if !CanTransition(from, to) {
		return ErrInvalidTransition
	}
	return nil
}
