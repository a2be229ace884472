package reconciliation

import (
	"github.com/ledgerloop/revrec/internal/reconciliation/repository"
	"github.com/ledgerloop/revrec/internal/reconciliation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reconciliation.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
