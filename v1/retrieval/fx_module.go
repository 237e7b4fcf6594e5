package retrieval

import "go.uber.org/fx"

// FXModule provides the retrieval helper to an Fx application. A search
// engine and a vectordb.Backend must be available in the container.
var FXModule = fx.Module("retrieval",
	fx.Provide(NewRetriever),
)
