package qdrant

import (
	"context"

	"go.uber.org/fx"

	"github.com/arcadialab/vecengine/v1/logger"
	"github.com/arcadialab/vecengine/v1/observability"
	"github.com/arcadialab/vecengine/v1/vectordb"
)

// moduleParams collects the client's dependencies from the fx container.
// Everything except the backend contract itself is optional.
type moduleParams struct {
	fx.In

	Config      *Config                 `optional:"true"`
	Logger      *logger.Logger          `optional:"true"`
	Observer    observability.Observer  `optional:"true"`
	Credentials CredentialsProvider     `optional:"true"`
	Lifecycle   fx.Lifecycle
}

func provideClient(p moduleParams) (*Client, error) {
	client, err := NewClient(context.Background(), Params{
		Config:      p.Config,
		Logger:      p.Logger,
		Observer:    p.Observer,
		Credentials: p.Credentials,
	})
	if err != nil {
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			client.StartRepairLoop()
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

// FXModule provides the pooled Qdrant client to an Fx application and binds
// it as the vectordb.Backend. The background repair loop follows the
// application lifecycle.
var FXModule = fx.Module("qdrant",
	fx.Provide(provideClient),
	fx.Provide(func(c *Client) vectordb.Backend { return c }),
)
