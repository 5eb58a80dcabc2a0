package domain

import "errors"

var (
	ErrExamNotFound         = errors.New("exam_not_found")
	ErrRegistrationNotFound = errors.New("registration_not_found")
	ErrStudentNotFound      = errors.New("student_not_found")
	ErrRegistrationNotOpen  = errors.New("registration_not_open")
	ErrRegistrationClosed   = errors.New("registration_closed")
	ErrNotEligible          = errors.New("not_eligible")
	ErrAlreadyRegistered    = errors.New("already_registered")
	ErrInvalidSubjects      = errors.New("invalid_subjects")
	ErrAlreadyCancelled     = errors.New("registration_already_cancelled")
	ErrInvalidExam          = errors.New("invalid_exam")
)
