package audit

import (
	"github.com/ledgerloop/revrec/internal/audit/repository"
	"github.com/ledgerloop/revrec/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
