package audit

import (
	"go.uber.org/fx"

	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/audit/repository"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/audit/service"
)

// Module wires the audit feature.
var Module = fx.Module("audit",
	fx.Provide(
		repository.New,
		service.New,
	),
)
