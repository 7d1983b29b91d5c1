package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/abuse"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/audit"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/auth"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/authz"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/config"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/logger"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/mailer"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/metrics"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/migration"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/organization"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/server"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/tenant"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/token"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		metrics.Module,
		mailer.Module,
		token.Module,
		authz.Module,
		abuse.Module,
		organization.Module,
		auth.Module,
		tenant.Module,
		audit.Module,
		server.Module,
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
