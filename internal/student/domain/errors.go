package domain

import "errors"

var (
	ErrNotFound      = errors.New("student_not_found")
	ErrInvalidName   = errors.New("invalid_name")
	ErrInvalidEmail  = errors.New("invalid_email")
	ErrInvalidBranch = errors.New("invalid_branch")
	ErrEmailExists   = errors.New("email_exists")
)
