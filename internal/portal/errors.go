package portal

import "errors"

var (
	ErrNotFound                 = errors.New("portal: not found")
	ErrInvalidInput             = errors.New("portal: invalid input")
	ErrInvalidTransition        = errors.New("portal: invalid status transition")
	ErrSubmissionNotMutable     = errors.New("portal: submission is not mutable")
	ErrRestrictedClassification = errors.New("portal: restricted documents are not accepted")
	ErrFileTooLarge             = errors.New("portal: file exceeds upload limit")
)
