package logger

import (
	"context"

	"go.uber.org/fx"
)

// FXModule provides the logger to an Fx application and flushes it on
// shutdown. A logger.Config must be available in the container.
var FXModule = fx.Module("logger",
	fx.Provide(NewLoggerClient),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, l *Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			// Sync can fail on stderr; nothing actionable remains at shutdown.
			_ = l.Sync()
			return nil
		},
	})
}
