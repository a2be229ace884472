package contract

import (
	"github.com/ledgerloop/revrec/internal/contract/repository"
	"github.com/ledgerloop/revrec/internal/contract/service"
	"go.uber.org/fx"
)

var Module = fx.Module("contract.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
