package server

import (
	"fmt"
	"net/http"
	"testing"

	admissiondomain "github.com/smallbiznis/campus/internal/admission/domain"
	examdomain "github.com/smallbiznis/campus/internal/exam/domain"
	feedomain "github.com/smallbiznis/campus/internal/fee/domain"
	hosteldomain "github.com/smallbiznis/campus/internal/hostel/domain"
	studentdomain "github.com/smallbiznis/campus/internal/student/domain"
)

func TestMapErrorTaxonomy(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{studentdomain.ErrNotFound, http.StatusNotFound, "not_found"},
		{examdomain.ErrExamNotFound, http.StatusNotFound, "not_found"},
		{hosteldomain.ErrAllocationNotFound, http.StatusNotFound, "not_found"},
		{ErrInvalidRequest, http.StatusBadRequest, "invalid_input"},
		{admissiondomain.ErrInvalidScope, http.StatusBadRequest, "invalid_input"},
		{examdomain.ErrInvalidSubjects, http.StatusBadRequest, "invalid_input"},
		{feedomain.ErrInvalidAmount, http.StatusBadRequest, "invalid_input"},
		{examdomain.ErrRegistrationNotOpen, http.StatusUnprocessableEntity, "precondition_failed"},
		{examdomain.ErrNotEligible, http.StatusUnprocessableEntity, "precondition_failed"},
		{feedomain.ErrStructureLocked, http.StatusUnprocessableEntity, "precondition_failed"},
		{hosteldomain.ErrRoomInactive, http.StatusUnprocessableEntity, "precondition_failed"},
		{hosteldomain.ErrRoomFull, http.StatusConflict, "capacity_exceeded"},
		{feedomain.ErrInsufficientBalance, http.StatusConflict, "capacity_exceeded"},
		{examdomain.ErrAlreadyRegistered, http.StatusConflict, "conflict"},
		{hosteldomain.ErrStudentAlreadyAllocated, http.StatusConflict, "conflict"},
		{admissiondomain.ErrConflict, http.StatusConflict, "conflict"},
		{studentdomain.ErrEmailExists, http.StatusConflict, "conflict"},
		{ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{ErrServiceUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			status, payload := mapError(tc.err)
			if status != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, status)
			}
			if payload.Type != tc.kind {
				t.Fatalf("expected type %q, got %q", tc.kind, payload.Type)
			}
		})
	}
}

func TestMapErrorWrappedDetail(t *testing.T) {
	wrapped := fmt.Errorf("%w: payment of 700 exceeds balance 300", feedomain.ErrInsufficientBalance)
	status, payload := mapError(wrapped)
	if status != http.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}
	if payload.Type != "capacity_exceeded" {
		t.Fatalf("expected capacity_exceeded, got %q", payload.Type)
	}
	if payload.Message != wrapped.Error() {
		t.Fatalf("expected wrapped message to pass through, got %q", payload.Message)
	}
}
