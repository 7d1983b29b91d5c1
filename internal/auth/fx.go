package auth

import (
	"go.uber.org/fx"

	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/auth/repository"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/auth/service"
)

// Module wires the auth feature.
var Module = fx.Module("auth",
	fx.Provide(
		repository.New,
		service.New,
	),
)
