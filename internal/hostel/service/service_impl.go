package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/campus/internal/clock"
	hosteldomain "github.com/smallbiznis/campus/internal/hostel/domain"
	obsmetrics "github.com/smallbiznis/campus/internal/observability/metrics"
	studentdomain "github.com/smallbiznis/campus/internal/student/domain"
	"github.com/smallbiznis/campus/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// maxAttempts bounds the retry cycle around the capacity guard. Exhaustion
// surfaces as ErrConflict.
const maxAttempts = 3

var (
	errGuardFailed      = errors.New("occupancy guard failed")
	errAlreadyAllocated = errors.New("active allocation exists")
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) hosteldomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("hostel.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) CreateRoom(ctx context.Context, req hosteldomain.CreateRoomRequest) (hosteldomain.Room, error) {
	hostel := strings.TrimSpace(req.Hostel)
	number := strings.TrimSpace(req.Number)
	if hostel == "" || number == "" || req.Capacity <= 0 {
		return hosteldomain.Room{}, hosteldomain.ErrInvalidRoom
	}

	room := hosteldomain.Room{
		ID:       s.genID.Generate(),
		Hostel:   hostel,
		Number:   number,
		Capacity: req.Capacity,
		IsActive: true,
	}

	if err := s.db.WithContext(ctx).Create(&room).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return hosteldomain.Room{}, hosteldomain.ErrInvalidRoom
		}
		return hosteldomain.Room{}, err
	}

	return room, nil
}

func (s *Service) GetRoom(ctx context.Context, id snowflake.ID) (hosteldomain.Room, error) {
	var room hosteldomain.Room
	if err := s.db.WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return hosteldomain.Room{}, hosteldomain.ErrRoomNotFound
		}
		return hosteldomain.Room{}, err
	}
	return room, nil
}

func (s *Service) SetRoomActive(ctx context.Context, id snowflake.ID, active bool) (hosteldomain.Room, error) {
	res := s.db.WithContext(ctx).Exec(
		`UPDATE rooms SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, s.clock.Now(), id,
	)
	if res.Error != nil {
		return hosteldomain.Room{}, res.Error
	}
	if res.RowsAffected == 0 {
		return hosteldomain.Room{}, hosteldomain.ErrRoomNotFound
	}
	return s.GetRoom(ctx, id)
}

// AllocateRoom claims capacity with a guarded increment and inserts the
// allocation in the same transaction. If the allocation insert loses the
// one-active-per-student race, the rollback also returns the claimed unit.
func (s *Service) AllocateRoom(ctx context.Context, req hosteldomain.AllocateRequest) (hosteldomain.Allocation, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&studentdomain.Student{}).
		Where("id = ?", req.StudentID).Count(&count).Error; err != nil {
		return hosteldomain.Allocation{}, err
	}
	if count == 0 {
		return hosteldomain.Allocation{}, hosteldomain.ErrStudentNotFound
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			s.obsMetrics.RecordConflictRetry(ctx, "hostel.allocate_room")
		}

		now := s.clock.Now()
		allocation := hosteldomain.Allocation{
			ID:        s.genID.Generate(),
			StudentID: req.StudentID,
			RoomID:    req.RoomID,
			Status:    hosteldomain.AllocationStatusActive,
			Terms:     datatypes.JSONMap(req.Terms),
			CreatedAt: now,
			UpdatedAt: now,
		}

		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.WithContext(ctx).Exec(
				`UPDATE rooms
				SET current_occupancy = current_occupancy + 1, updated_at = ?
				WHERE id = ? AND is_active = ? AND current_occupancy < capacity`,
				now, req.RoomID, true,
			)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errGuardFailed
			}

			res = tx.WithContext(ctx).Exec(
				`INSERT INTO hostel_allocations
				(id, student_id, room_id, status, terms, created_at, updated_at)
				SELECT ?, ?, ?, ?, ?, ?, ?
				WHERE NOT EXISTS (
					SELECT 1 FROM hostel_allocations WHERE student_id = ? AND status = ?
				)`,
				allocation.ID, allocation.StudentID, allocation.RoomID,
				string(allocation.Status), allocation.Terms,
				allocation.CreatedAt, allocation.UpdatedAt,
				req.StudentID, string(hosteldomain.AllocationStatusActive),
			)
			if res.Error != nil {
				if db.IsDuplicateKeyErr(res.Error) {
					return errAlreadyAllocated
				}
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errAlreadyAllocated
			}
			return nil
		})
		if errors.Is(err, errAlreadyAllocated) {
			return hosteldomain.Allocation{}, hosteldomain.ErrStudentAlreadyAllocated
		}
		if errors.Is(err, errGuardFailed) {
			room, rerr := s.GetRoom(ctx, req.RoomID)
			if rerr != nil {
				return hosteldomain.Allocation{}, rerr
			}
			if !room.IsActive {
				return hosteldomain.Allocation{}, hosteldomain.ErrRoomInactive
			}
			if room.CurrentOccupancy >= room.Capacity {
				return hosteldomain.Allocation{}, hosteldomain.ErrRoomFull
			}
			// Guard lost to a writer that has since vacated. Retry.
			continue
		}
		if err != nil {
			return hosteldomain.Allocation{}, err
		}

		s.obsMetrics.RecordAllocation(ctx, "allocated")
		s.log.Info("room allocated",
			zap.String("room_id", req.RoomID.String()),
			zap.String("student_id", req.StudentID.String()),
			zap.String("allocation_id", allocation.ID.String()),
		)
		return allocation, nil
	}

	return hosteldomain.Allocation{}, hosteldomain.ErrConflict
}

func (s *Service) VacateRoom(ctx context.Context, allocationID snowflake.ID) (hosteldomain.Allocation, error) {
	var allocation hosteldomain.Allocation
	if err := s.db.WithContext(ctx).First(&allocation, "id = ?", allocationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return hosteldomain.Allocation{}, hosteldomain.ErrAllocationNotFound
		}
		return hosteldomain.Allocation{}, err
	}

	now := s.clock.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.WithContext(ctx).Exec(
			`UPDATE hostel_allocations
			SET status = ?, vacated_at = ?, updated_at = ?
			WHERE id = ? AND status = ?`,
			string(hosteldomain.AllocationStatusVacated), now, now,
			allocationID, string(hosteldomain.AllocationStatusActive),
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return hosteldomain.ErrAlreadyVacated
		}

		// The CASE floor keeps occupancy from going negative even if the
		// counter ever drifts.
		return tx.WithContext(ctx).Exec(
			`UPDATE rooms
			SET current_occupancy = CASE WHEN current_occupancy > 0 THEN current_occupancy - 1 ELSE 0 END,
				updated_at = ?
			WHERE id = ?`,
			now, allocation.RoomID,
		).Error
	})
	if err != nil {
		return hosteldomain.Allocation{}, err
	}

	allocation.Status = hosteldomain.AllocationStatusVacated
	allocation.VacatedAt = &now
	allocation.UpdatedAt = now

	s.obsMetrics.RecordAllocation(ctx, "vacated")
	s.log.Info("room vacated",
		zap.String("room_id", allocation.RoomID.String()),
		zap.String("allocation_id", allocationID.String()),
	)
	return allocation, nil
}

func (s *Service) ListAllocations(ctx context.Context, roomID snowflake.ID) ([]hosteldomain.Allocation, error) {
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}

	var allocations []hosteldomain.Allocation
	if err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at ASC, id ASC").
		Find(&allocations).Error; err != nil {
		return nil, err
	}
	return allocations, nil
}
