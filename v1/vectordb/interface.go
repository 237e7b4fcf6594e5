package vectordb

import "context"

// Backend is the capability interface over a vector store. It is the single
// dispatch point between the live client (v1/qdrant) and the in-memory
// simulation backend (v1/simulation); everything above it (search engine,
// adaptive batcher, retrieval helpers) depends only on this contract.
//
// Implementations must return search results ordered by descending score.
type Backend interface {
	// Search runs one similarity query and returns scored results,
	// ordered by descending score.
	Search(ctx context.Context, req SearchRequest) ([]ScoredPoint, error)

	// SearchBatch runs several queries in a single round trip, returning
	// one result list per request, in request order.
	SearchBatch(ctx context.Context, reqs []SearchRequest) ([][]ScoredPoint, error)

	// Upsert inserts or replaces points in a collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Get fetches points by id. Absent ids are omitted from the result.
	Get(ctx context.Context, collection string, ids []PointID, withPayload, withVectors bool) ([]Point, error)

	// Scroll pages through points matching a filter, optionally ordered
	// by a payload field. No scoring is involved.
	Scroll(ctx context.Context, req ScrollRequest) ([]Point, error)

	// Count returns the number of points matching the filter
	// (all points when filter is nil).
	Count(ctx context.Context, collection string, filter *Filter) (uint64, error)

	// Delete removes points matching the filter or the explicit id list.
	Delete(ctx context.Context, collection string, filter *Filter, ids []PointID) error

	// Collection returns metadata for a collection, including its vector
	// dimension and distance metric.
	Collection(ctx context.Context, name string) (*Collection, error)
}
