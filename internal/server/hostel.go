package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	hosteldomain "github.com/smallbiznis/campus/internal/hostel/domain"
)

type createRoomRequest struct {
	Hostel   string `json:"hostel"`
	Number   string `json:"number"`
	Capacity int64  `json:"capacity"`
}

func (s *Server) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.hostelSvc.CreateRoom(c.Request.Context(), hosteldomain.CreateRoomRequest{
		Hostel:   strings.TrimSpace(req.Hostel),
		Number:   strings.TrimSpace(req.Number),
		Capacity: req.Capacity,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetRoom(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.hostelSvc.GetRoom(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type setRoomActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

func (s *Server) SetRoomActive(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req setRoomActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.hostelSvc.SetRoomActive(c.Request.Context(), id, *req.IsActive)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type allocateRoomRequest struct {
	StudentID string         `json:"student_id"`
	Terms     map[string]any `json:"terms"`
}

func (s *Server) AllocateRoom(c *gin.Context) {
	roomID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req allocateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	studentID, err := snowflake.ParseString(strings.TrimSpace(req.StudentID))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	// A short advisory lock around the student's request sheds duplicate
	// submits before they reach the database guards.
	ctx := c.Request.Context()
	token, acquired, err := s.writeLimiter.TryLockStudentAllocation(ctx, studentID.String(), 5*time.Second)
	if err != nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	if !acquired {
		AbortWithError(c, hosteldomain.ErrConflict)
		return
	}
	defer func() {
		_ = s.writeLimiter.ReleaseStudentAllocation(ctx, studentID.String(), token)
	}()

	resp, err := s.hostelSvc.AllocateRoom(ctx, hosteldomain.AllocateRequest{
		RoomID:    roomID,
		StudentID: studentID,
		Terms:     req.Terms,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) VacateRoom(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.hostelSvc.VacateRoom(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListAllocations(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.hostelSvc.ListAllocations(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
