package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/teleload/internal/clock"
	"github.com/smallbiznis/teleload/internal/config"
	"github.com/smallbiznis/teleload/internal/dashboard"
	"github.com/smallbiznis/teleload/internal/download"
	"github.com/smallbiznis/teleload/internal/migration"
	"github.com/smallbiznis/teleload/internal/observability"
	"github.com/smallbiznis/teleload/internal/pipeline"
	"github.com/smallbiznis/teleload/internal/ratelimit"
	"github.com/smallbiznis/teleload/internal/resolver"
	"github.com/smallbiznis/teleload/internal/scheduler"
	"github.com/smallbiznis/teleload/internal/server"
	"github.com/smallbiznis/teleload/internal/telegram"
	"github.com/smallbiznis/teleload/internal/token"
	"github.com/smallbiznis/teleload/internal/transcoder"
	"github.com/smallbiznis/teleload/internal/user"
	"github.com/smallbiznis/teleload/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,

		// Functional Domains
		user.Module,
		download.Module,
		dashboard.Module,
		token.Module,
		resolver.Module,
		transcoder.Module,
		ratelimit.Module,
		pipeline.Module,

		// Transports
		telegram.Module,
		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
