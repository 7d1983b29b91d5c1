package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	auditdomain "github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/audit/domain"
	authdomain "github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/auth/domain"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/config"
	orgdomain "github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/organization/domain"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/seed"
)

// Module applies the schema and bootstrap data on startup. Postgres goes
// through the versioned SQL migrations; sqlite and mysql use AutoMigrate,
// which keeps local and test setups dependency free.
var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			if err := conn.AutoMigrate(
				&orgdomain.Organization{},
				&authdomain.User{},
				&auditdomain.Entry{},
			); err != nil {
				return err
			}
		}

		return seed.EnsureBootstrap(conn, cfg)
	}),
)
