package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/ledgerloop/revrec/internal/clock"
	"github.com/ledgerloop/revrec/internal/config"
	"github.com/ledgerloop/revrec/internal/migration"
	"github.com/ledgerloop/revrec/internal/observability"
	"github.com/ledgerloop/revrec/internal/scheduler"
	"github.com/ledgerloop/revrec/internal/server"
	"github.com/ledgerloop/revrec/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(NewSnowflakeNode),
		db.Module,
		clock.Module,
		migration.Module,

		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func NewSnowflakeNode() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
