package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	admissiondomain "github.com/smallbiznis/campus/internal/admission/domain"
)

type submitApplicationRequest struct {
	ApplicantName string         `json:"applicant_name"`
	Email         string         `json:"email"`
	Program       string         `json:"program"`
	Year          int            `json:"year"`
	Payload       map[string]any `json:"payload"`
}

func (s *Server) SubmitApplication(c *gin.Context) {
	var req submitApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.admissionSvc.SubmitApplication(c.Request.Context(), admissiondomain.SubmitApplicationRequest{
		ApplicantName: strings.TrimSpace(req.ApplicantName),
		Email:         strings.TrimSpace(req.Email),
		Program:       strings.TrimSpace(req.Program),
		Year:          req.Year,
		Payload:       req.Payload,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetApplication(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.admissionSvc.GetApplication(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListApplications(c *gin.Context) {
	var query struct {
		Year int `form:"year"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.admissionSvc.ListApplications(c.Request.Context(), admissiondomain.ListApplicationRequest{
		Year: query.Year,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
