package fee

import (
	"github.com/smallbiznis/campus/internal/fee/service"
	"go.uber.org/fx"
)

var Module = fx.Module("fee.service",
	fx.Provide(service.NewService),
)
