package search

import "go.uber.org/fx"

// FXModule provides the search engine to an Fx application. A
// vectordb.Backend must be available in the container; logger and observer
// are picked up when present.
var FXModule = fx.Module("search",
	fx.Provide(NewEngine),
)
