package posting

import (
	"github.com/ledgerloop/revrec/internal/posting/adapters"
	"github.com/ledgerloop/revrec/internal/posting/adapters/quickbooks"
	"github.com/ledgerloop/revrec/internal/posting/adapters/xero"
	"github.com/ledgerloop/revrec/internal/posting/service"
	"go.uber.org/fx"
)

var Module = fx.Module("posting.service",
	fx.Provide(NewRegistry),
	fx.Provide(service.New),
)

func NewRegistry() *adapters.Registry {
	return adapters.NewRegistry(
		quickbooks.NewFactory(),
		xero.NewFactory(),
	)
}
