package batcher

import "go.uber.org/fx"

// FXModule provides the adaptive batcher to an Fx application. A
// vectordb.Backend must be available in the container; config, logger and
// observer are picked up when present.
var FXModule = fx.Module("batcher",
	fx.Provide(NewBatcher),
)
