package hostel

import (
	"github.com/smallbiznis/campus/internal/hostel/service"
	"go.uber.org/fx"
)

var Module = fx.Module("hostel.service",
	fx.Provide(service.NewService),
)
