package domain

import "errors"

var (
	ErrRoomNotFound            = errors.New("room_not_found")
	ErrAllocationNotFound      = errors.New("allocation_not_found")
	ErrStudentNotFound         = errors.New("student_not_found")
	ErrRoomFull                = errors.New("room_full")
	ErrRoomInactive            = errors.New("room_inactive")
	ErrStudentAlreadyAllocated = errors.New("student_already_allocated")
	ErrAlreadyVacated          = errors.New("allocation_already_vacated")
	ErrInvalidRoom             = errors.New("invalid_room")
	ErrConflict                = errors.New("allocation_conflict")
)
