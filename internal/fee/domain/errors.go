package domain

import "errors"

var (
	ErrNotFound            = errors.New("fee_record_not_found")
	ErrStudentNotFound     = errors.New("student_not_found")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidTotal        = errors.New("invalid_total")
	ErrInsufficientBalance = errors.New("insufficient_remaining_balance")
	ErrStructureLocked     = errors.New("structure_locked")
	ErrDuplicateRecord     = errors.New("fee_record_exists")
	ErrConflict            = errors.New("fee_conflict")
)
