package abuse

import "go.uber.org/fx"

// Module wires the abuse limiter.
var Module = fx.Module("abuse",
	fx.Provide(New),
)
