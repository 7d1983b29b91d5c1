package tenant

import "go.uber.org/fx"

// Module wires the tenant resolver.
var Module = fx.Module("tenant",
	fx.Provide(New),
)
