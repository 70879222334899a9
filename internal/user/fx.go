package user

import (
	"github.com/smallbiznis/teleload/internal/user/repository"
	"github.com/smallbiznis/teleload/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
