package token

import (
	"github.com/smallbiznis/teleload/internal/clock"
	"github.com/smallbiznis/teleload/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("token.store",
	fx.Provide(func(cfg config.Config, c clock.Clock) *Store {
		return NewStore(cfg.Pipeline.TokenTTL, c)
	}),
)
