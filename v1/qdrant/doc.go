// Package qdrant is the live vectordb.Backend over the official Qdrant Go
// client.
//
// Connections are pooled: a fixed number of gRPC handles rotate with an
// atomic round-robin counter, background probes flag unhealthy slots, and
// repair redials them without blocking callers. Every operation runs
// through a reconnect wrapper that retries exactly once on a
// transport-classified failure.
//
// Typical usage:
//
//	client, err := qdrant.NewClient(ctx, qdrant.Params{
//	    Config: qdrant.FromEndpoint("localhost").WithPoolSize(8),
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	engine, err := search.NewEngine(search.Params{Backend: client})
package qdrant
