package recognition

import (
	"github.com/ledgerloop/revrec/internal/recognition/repository"
	"github.com/ledgerloop/revrec/internal/recognition/service"
	"go.uber.org/fx"
)

var Module = fx.Module("recognition.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
