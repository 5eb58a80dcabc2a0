package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type CreateStudentRequest struct {
	Name    string
	Email   string
	Branch  string
	Program string
	Year    int
}

type ListStudentRequest struct {
	Branch string
	Year   int
}

type Service interface {
	Create(context.Context, CreateStudentRequest) (Student, error)
	GetByID(context.Context, snowflake.ID) (Student, error)
	List(context.Context, ListStudentRequest) ([]Student, error)
}
