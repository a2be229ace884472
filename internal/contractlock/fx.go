package contractlock

import "go.uber.org/fx"

var Module = fx.Module("contract.lock",
	fx.Provide(NewGuard),
)
