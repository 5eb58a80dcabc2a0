package domain

import "errors"

var (
	ErrNotFound         = errors.New("application_not_found")
	ErrInvalidScope     = errors.New("invalid_scope")
	ErrInvalidApplicant = errors.New("invalid_applicant")
	ErrConflict         = errors.New("sequence_conflict")
)
