package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type CreateRoomRequest struct {
	Hostel   string
	Number   string
	Capacity int64
}

type AllocateRequest struct {
	RoomID    snowflake.ID
	StudentID snowflake.ID
	Terms     map[string]any
}

type Service interface {
	CreateRoom(ctx context.Context, req CreateRoomRequest) (Room, error)
	GetRoom(ctx context.Context, id snowflake.ID) (Room, error)
	SetRoomActive(ctx context.Context, id snowflake.ID, active bool) (Room, error)
	// AllocateRoom claims one unit of room capacity and creates the
	// student's active allocation atomically. Capacity can never be
	// oversubscribed, and a student holds at most one active allocation.
	AllocateRoom(ctx context.Context, req AllocateRequest) (Allocation, error)
	VacateRoom(ctx context.Context, allocationID snowflake.ID) (Allocation, error)
	ListAllocations(ctx context.Context, roomID snowflake.ID) ([]Allocation, error)
}
