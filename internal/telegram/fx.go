package telegram

import (
	"github.com/smallbiznis/teleload/internal/pipeline"
	"go.uber.org/fx"
)

var Module = fx.Module("telegram",
	fx.Provide(
		NewBotAPI,
		NewClient,
		func(c *Client) pipeline.Transport { return c },
		NewRunner,
	),
	fx.Invoke(func(*Runner) {}),
)
