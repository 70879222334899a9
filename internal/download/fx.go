package download

import (
	"github.com/smallbiznis/teleload/internal/download/repository"
	"github.com/smallbiznis/teleload/internal/download/service"
	"go.uber.org/fx"
)

var Module = fx.Module("download.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
