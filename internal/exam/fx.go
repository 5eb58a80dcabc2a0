package exam

import (
	"github.com/smallbiznis/campus/internal/exam/service"
	"go.uber.org/fx"
)

var Module = fx.Module("exam.service",
	fx.Provide(service.NewService),
)
