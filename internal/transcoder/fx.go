package transcoder

import "go.uber.org/fx"

var Module = fx.Module("transcoder",
	fx.Provide(New),
)
