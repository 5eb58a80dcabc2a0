package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	admissiondomain "github.com/smallbiznis/campus/internal/admission/domain"
	examdomain "github.com/smallbiznis/campus/internal/exam/domain"
	feedomain "github.com/smallbiznis/campus/internal/fee/domain"
	hosteldomain "github.com/smallbiznis/campus/internal/hostel/domain"
	studentdomain "github.com/smallbiznis/campus/internal/student/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: err.Error(),
		}
	case isInvalidInputError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_input",
			Message: err.Error(),
		}
	case isPreconditionError(err):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "precondition_failed",
			Message: err.Error(),
		}
	case isCapacityError(err):
		return http.StatusConflict, errorPayload{
			Type:    "capacity_exceeded",
			Message: err.Error(),
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, studentdomain.ErrNotFound),
		errors.Is(err, admissiondomain.ErrNotFound),
		errors.Is(err, feedomain.ErrNotFound),
		errors.Is(err, feedomain.ErrStudentNotFound),
		errors.Is(err, examdomain.ErrExamNotFound),
		errors.Is(err, examdomain.ErrRegistrationNotFound),
		errors.Is(err, examdomain.ErrStudentNotFound),
		errors.Is(err, hosteldomain.ErrRoomNotFound),
		errors.Is(err, hosteldomain.ErrAllocationNotFound),
		errors.Is(err, hosteldomain.ErrStudentNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isInvalidInputError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, studentdomain.ErrInvalidName),
		errors.Is(err, studentdomain.ErrInvalidEmail),
		errors.Is(err, studentdomain.ErrInvalidBranch),
		errors.Is(err, admissiondomain.ErrInvalidScope),
		errors.Is(err, admissiondomain.ErrInvalidApplicant),
		errors.Is(err, feedomain.ErrInvalidAmount),
		errors.Is(err, feedomain.ErrInvalidTotal),
		errors.Is(err, examdomain.ErrInvalidExam),
		errors.Is(err, examdomain.ErrInvalidSubjects),
		errors.Is(err, hosteldomain.ErrInvalidRoom):
		return true
	default:
		return false
	}
}

func isPreconditionError(err error) bool {
	switch {
	case errors.Is(err, feedomain.ErrStructureLocked),
		errors.Is(err, examdomain.ErrRegistrationNotOpen),
		errors.Is(err, examdomain.ErrRegistrationClosed),
		errors.Is(err, examdomain.ErrNotEligible),
		errors.Is(err, examdomain.ErrAlreadyCancelled),
		errors.Is(err, hosteldomain.ErrRoomInactive),
		errors.Is(err, hosteldomain.ErrAlreadyVacated):
		return true
	default:
		return false
	}
}

// isCapacityError covers rejections where a bounded resource ran out: a full
// room or a payment larger than the remaining balance.
func isCapacityError(err error) bool {
	switch {
	case errors.Is(err, hosteldomain.ErrRoomFull),
		errors.Is(err, feedomain.ErrInsufficientBalance):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, studentdomain.ErrEmailExists),
		errors.Is(err, admissiondomain.ErrConflict),
		errors.Is(err, feedomain.ErrDuplicateRecord),
		errors.Is(err, feedomain.ErrConflict),
		errors.Is(err, examdomain.ErrAlreadyRegistered),
		errors.Is(err, hosteldomain.ErrStudentAlreadyAllocated),
		errors.Is(err, hosteldomain.ErrConflict):
		return true
	default:
		return false
	}
}

// classifyErrorForLog buckets handler errors for the request logger so access
// logs carry a stable type and code without the full message.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error", payload.Type
	case status >= http.StatusBadRequest:
		return "client_error", payload.Type
	default:
		return "", ""
	}
}
