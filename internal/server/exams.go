package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	examdomain "github.com/smallbiznis/campus/internal/exam/domain"
)

type createExamRequest struct {
	Code              string   `json:"code"`
	Name              string   `json:"name"`
	EligibleBranches  []string `json:"eligible_branches"`
	Subjects          []string `json:"subjects"`
	FeePerSubject     int64    `json:"fee_per_subject"`
	RegistrationStart string   `json:"registration_start"`
	RegistrationEnd   string   `json:"registration_end"`
}

func (s *Server) CreateExam(c *gin.Context) {
	var req createExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.RegistrationStart))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(req.RegistrationEnd))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.examSvc.CreateExam(c.Request.Context(), examdomain.CreateExamRequest{
		Code:              strings.TrimSpace(req.Code),
		Name:              strings.TrimSpace(req.Name),
		EligibleBranches:  req.EligibleBranches,
		Subjects:          req.Subjects,
		FeePerSubject:     req.FeePerSubject,
		RegistrationStart: start,
		RegistrationEnd:   end,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetExam(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.examSvc.GetExam(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type registerForExamRequest struct {
	StudentID string   `json:"student_id"`
	Subjects  []string `json:"subjects"`
}

func (s *Server) RegisterForExam(c *gin.Context) {
	examID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req registerForExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	studentID, err := snowflake.ParseString(strings.TrimSpace(req.StudentID))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.examSvc.Register(c.Request.Context(), examdomain.RegisterRequest{
		ExamID:    examID,
		StudentID: studentID,
		Subjects:  req.Subjects,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelRegistration(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.examSvc.Cancel(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListRegistrations(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.examSvc.ListRegistrations(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
