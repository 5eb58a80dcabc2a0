package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	feedomain "github.com/smallbiznis/campus/internal/fee/domain"
)

type createFeeRecordRequest struct {
	StudentID string `json:"student_id"`
	Year      int    `json:"year"`
	Semester  int    `json:"semester"`
	Total     int64  `json:"total"`
	DueDate   string `json:"due_date"`
}

func (s *Server) CreateFeeRecord(c *gin.Context) {
	var req createFeeRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	studentID, err := snowflake.ParseString(strings.TrimSpace(req.StudentID))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var dueDate *time.Time
	if strings.TrimSpace(req.DueDate) != "" {
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(req.DueDate))
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		dueDate = &parsed
	}

	resp, err := s.feeSvc.CreateFeeRecord(c.Request.Context(), feedomain.CreateFeeRecordRequest{
		StudentID: studentID,
		Year:      req.Year,
		Semester:  req.Semester,
		Total:     req.Total,
		DueDate:   dueDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetFeeRecord(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.feeSvc.GetFeeRecord(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type recordPaymentRequest struct {
	Amount      int64  `json:"amount"`
	Mode        string `json:"mode"`
	ExternalRef string `json:"external_ref"`
}

func (s *Server) RecordPayment(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.feeSvc.RecordPayment(c.Request.Context(), id, feedomain.RecordPaymentRequest{
		Amount:      req.Amount,
		Mode:        strings.TrimSpace(req.Mode),
		ExternalRef: strings.TrimSpace(req.ExternalRef),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPaymentHistory(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.feeSvc.GetPaymentHistory(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateFeeStructureRequest struct {
	Total int64 `json:"total"`
}

func (s *Server) UpdateFeeStructure(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updateFeeStructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.feeSvc.UpdateFeeStructure(c.Request.Context(), id, req.Total)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateDueDateRequest struct {
	DueDate string `json:"due_date"`
}

func (s *Server) UpdateDueDate(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updateDueDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	due, err := time.Parse(time.RFC3339, strings.TrimSpace(req.DueDate))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.feeSvc.UpdateDueDate(c.Request.Context(), id, due)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
