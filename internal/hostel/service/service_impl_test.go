package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/campus/internal/clock"
	hosteldomain "github.com/smallbiznis/campus/internal/hostel/domain"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupHostelService(t *testing.T, node *snowflake.Node) (hosteldomain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error
	prepareHostelSchema(t, db)

	clk := clock.NewFakeClock(time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC))
	service := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
	})

	return service, db, clk
}

func prepareHostelSchema(t *testing.T, db *gorm.DB) {
	t.Helper()
	if err := db.Exec(`CREATE TABLE students (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		branch TEXT NOT NULL,
		program TEXT NOT NULL,
		year BIGINT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`).Error; err != nil {
		t.Fatalf("create students: %v", err)
	}
	if err := db.Exec(`CREATE TABLE rooms (
		id BIGINT PRIMARY KEY,
		hostel TEXT NOT NULL,
		number TEXT NOT NULL,
		capacity BIGINT NOT NULL,
		current_occupancy BIGINT NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`).Error; err != nil {
		t.Fatalf("create rooms: %v", err)
	}
	if err := db.Exec(`CREATE UNIQUE INDEX ux_rooms_hostel_number ON rooms (hostel, number)`).Error; err != nil {
		t.Fatalf("create room index: %v", err)
	}
	if err := db.Exec(`CREATE TABLE hostel_allocations (
		id BIGINT PRIMARY KEY,
		student_id BIGINT NOT NULL,
		room_id BIGINT NOT NULL,
		status TEXT NOT NULL,
		terms JSON,
		vacated_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`).Error; err != nil {
		t.Fatalf("create hostel_allocations: %v", err)
	}
	if err := db.Exec(`CREATE UNIQUE INDEX ux_hostel_allocations_active
		ON hostel_allocations (student_id) WHERE status = 'active'`).Error; err != nil {
		t.Fatalf("create allocation index: %v", err)
	}
}

func seedHostelStudent(t *testing.T, db *gorm.DB, id snowflake.ID) {
	t.Helper()
	if err := db.Exec(
		`INSERT INTO students (id, name, email, branch, program, year, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, "Asha Rao", fmt.Sprintf("s%d@campus.local", id), "CS", "BTech", 2,
		time.Now().UTC(), time.Now().UTC(),
	).Error; err != nil {
		t.Fatalf("seed student: %v", err)
	}
}

func createRoom(t *testing.T, service hosteldomain.Service, number string, capacity int64) hosteldomain.Room {
	t.Helper()
	room, err := service.CreateRoom(context.Background(), hosteldomain.CreateRoomRequest{
		Hostel:   "North",
		Number:   number,
		Capacity: capacity,
	})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return room
}

func TestAllocateRoom(t *testing.T) {
	node := mustHostelNode(t)
	service, db, _ := setupHostelService(t, node)
	room := createRoom(t, service, "101", 2)
	studentID := node.Generate()
	seedHostelStudent(t, db, studentID)

	allocation, err := service.AllocateRoom(context.Background(), hosteldomain.AllocateRequest{
		RoomID:    room.ID,
		StudentID: studentID,
		Terms:     map[string]any{"meal_plan": "full"},
	})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if allocation.Status != hosteldomain.AllocationStatusActive {
		t.Fatalf("expected active allocation, got %s", allocation.Status)
	}

	updated, err := service.GetRoom(context.Background(), room.ID)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if updated.CurrentOccupancy != 1 {
		t.Fatalf("expected occupancy 1, got %d", updated.CurrentOccupancy)
	}
}

func TestAllocateRoomCapacityRace(t *testing.T) {
	node := mustHostelNode(t)
	service, db, _ := setupHostelService(t, node)
	room := createRoom(t, service, "101", 1)

	studentA := node.Generate()
	studentB := node.Generate()
	seedHostelStudent(t, db, studentA)
	seedHostelStudent(t, db, studentB)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, studentID := range []snowflake.ID{studentA, studentB} {
		wg.Add(1)
		go func(idx int, id snowflake.ID) {
			defer wg.Done()
			_, errs[idx] = service.AllocateRoom(context.Background(), hosteldomain.AllocateRequest{
				RoomID:    room.ID,
				StudentID: id,
			})
		}(i, studentID)
	}
	wg.Wait()

	var succeeded, full int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, hosteldomain.ErrRoomFull):
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || full != 1 {
		t.Fatalf("expected one success and one room_full, got %d and %d", succeeded, full)
	}

	updated, err := service.GetRoom(context.Background(), room.ID)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if updated.CurrentOccupancy != updated.Capacity {
		t.Fatalf("expected occupancy %d, got %d", updated.Capacity, updated.CurrentOccupancy)
	}
}

func TestAllocateRoomOneActivePerStudent(t *testing.T) {
	node := mustHostelNode(t)
	service, db, _ := setupHostelService(t, node)
	first := createRoom(t, service, "101", 2)
	second := createRoom(t, service, "102", 2)
	studentID := node.Generate()
	seedHostelStudent(t, db, studentID)

	if _, err := service.AllocateRoom(context.Background(), hosteldomain.AllocateRequest{
		RoomID:    first.ID,
		StudentID: studentID,
	}); err != nil {
		t.Fatalf("allocate first: %v", err)
	}

	_, err := service.AllocateRoom(context.Background(), hosteldomain.AllocateRequest{
		RoomID:    second.ID,
		StudentID: studentID,
	})
	if !errors.Is(err, hosteldomain.ErrStudentAlreadyAllocated) {
		t.Fatalf("expected ErrStudentAlreadyAllocated, got %v", err)
	}

	// The rejected attempt must not leak occupancy on the second room.
	room, err := service.GetRoom(context.Background(), second.ID)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if room.CurrentOccupancy != 0 {
		t.Fatalf("expected occupancy 0, got %d", room.CurrentOccupancy)
	}
}

func TestVacateRoomRoundTrip(t *testing.T) {
	node := mustHostelNode(t)
	service, db, clk := setupHostelService(t, node)
	room := createRoom(t, service, "101", 1)
	studentID := node.Generate()
	seedHostelStudent(t, db, studentID)

	allocation, err := service.AllocateRoom(context.Background(), hosteldomain.AllocateRequest{
		RoomID:    room.ID,
		StudentID: studentID,
	})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	clk.Advance(30 * 24 * time.Hour)
	vacated, err := service.VacateRoom(context.Background(), allocation.ID)
	if err != nil {
		t.Fatalf("vacate: %v", err)
	}
	if vacated.Status != hosteldomain.AllocationStatusVacated {
		t.Fatalf("expected vacated status, got %s", vacated.Status)
	}
	if vacated.VacatedAt == nil || !vacated.VacatedAt.Equal(clk.Now()) {
		t.Fatalf("expected vacated_at %s, got %v", clk.Now(), vacated.VacatedAt)
	}

	if _, err := service.VacateRoom(context.Background(), allocation.ID); !errors.Is(err, hosteldomain.ErrAlreadyVacated) {
		t.Fatalf("expected ErrAlreadyVacated, got %v", err)
	}

	// Freed capacity is reusable, including by the same student.
	updated, err := service.GetRoom(context.Background(), room.ID)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if updated.CurrentOccupancy != 0 {
		t.Fatalf("expected occupancy 0, got %d", updated.CurrentOccupancy)
	}
	if _, err := service.AllocateRoom(context.Background(), hosteldomain.AllocateRequest{
		RoomID:    room.ID,
		StudentID: studentID,
	}); err != nil {
		t.Fatalf("re-allocate: %v", err)
	}
}

func TestAllocateRoomInactive(t *testing.T) {
	node := mustHostelNode(t)
	service, db, _ := setupHostelService(t, node)
	room := createRoom(t, service, "101", 2)
	studentID := node.Generate()
	seedHostelStudent(t, db, studentID)

	if _, err := service.SetRoomActive(context.Background(), room.ID, false); err != nil {
		t.Fatalf("deactivate room: %v", err)
	}

	_, err := service.AllocateRoom(context.Background(), hosteldomain.AllocateRequest{
		RoomID:    room.ID,
		StudentID: studentID,
	})
	if !errors.Is(err, hosteldomain.ErrRoomInactive) {
		t.Fatalf("expected ErrRoomInactive, got %v", err)
	}
}

func TestAllocateRoomUnknownStudent(t *testing.T) {
	node := mustHostelNode(t)
	service, _, _ := setupHostelService(t, node)
	room := createRoom(t, service, "101", 2)

	_, err := service.AllocateRoom(context.Background(), hosteldomain.AllocateRequest{
		RoomID:    room.ID,
		StudentID: node.Generate(),
	})
	if !errors.Is(err, hosteldomain.ErrStudentNotFound) {
		t.Fatalf("expected ErrStudentNotFound, got %v", err)
	}
}

func TestAllocateRoomNotFound(t *testing.T) {
	node := mustHostelNode(t)
	service, db, _ := setupHostelService(t, node)
	studentID := node.Generate()
	seedHostelStudent(t, db, studentID)

	_, err := service.AllocateRoom(context.Background(), hosteldomain.AllocateRequest{
		RoomID:    node.Generate(),
		StudentID: studentID,
	})
	if !errors.Is(err, hosteldomain.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func mustHostelNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}
