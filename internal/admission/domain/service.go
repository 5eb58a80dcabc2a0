package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type SubmitApplicationRequest struct {
	ApplicantName string
	Email         string
	Program       string
	Year          int
	Payload       map[string]any
}

type ListApplicationRequest struct {
	Year int
}

type Service interface {
	// NextApplicationNumber issues the next gap-free number in scope.
	NextApplicationNumber(ctx context.Context, scope Scope) (string, error)
	SubmitApplication(ctx context.Context, req SubmitApplicationRequest) (Application, error)
	GetApplication(ctx context.Context, id snowflake.ID) (Application, error)
	ListApplications(ctx context.Context, req ListApplicationRequest) ([]Application, error)
}
