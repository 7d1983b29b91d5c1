package organization

import (
	"go.uber.org/fx"

	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/organization/repository"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/organization/service"
)

// Module wires the organization feature.
var Module = fx.Module("organization",
	fx.Provide(
		repository.New,
		service.New,
	),
)
