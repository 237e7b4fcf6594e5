package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"

	"github.com/arcadialab/vecengine/v1/logger"
	"github.com/arcadialab/vecengine/v1/observability"
	"github.com/arcadialab/vecengine/v1/vectordb"
)

const component = "search"

// ErrScoreOrder is returned when a backend violates the descending-score
// contract. The engine trusts backend ordering and never re-sorts plain
// search results, but it does verify them.
var ErrScoreOrder = errors.New("search: backend returned results out of score order")

// Engine implements similarity search over a vectordb.Backend: basic and
// batched search, hybrid dense+sparse fusion, coarse-to-fine re-ranking and
// diversity-aware selection. It works identically over the live Qdrant
// client and the simulation backend.
type Engine struct {
	backend  vectordb.Backend
	log      *logger.Logger
	observer observability.Observer
}

// Params collects the engine's dependencies. Logger and Observer are
// optional; nil values fall back to no-ops.
type Params struct {
	fx.In

	Backend  vectordb.Backend
	Logger   *logger.Logger         `optional:"true"`
	Observer observability.Observer `optional:"true"`
}

// NewEngine constructs a search engine over the given backend.
func NewEngine(p Params) (*Engine, error) {
	if p.Backend == nil {
		return nil, fmt.Errorf("search: backend is required")
	}
	if p.Logger == nil {
		p.Logger = logger.NewNoop()
	}
	if p.Observer == nil {
		p.Observer = observability.NoopObserver{}
	}
	return &Engine{backend: p.Backend, log: p.Logger, observer: p.Observer}, nil
}

func (e *Engine) observe(ctx context.Context, op, collection string, start time.Time, count int, err error) {
	e.observer.ObserveOperation(ctx, observability.OperationContext{
		Component:   component,
		Operation:   op,
		Collection:  collection,
		Duration:    time.Since(start),
		ResultCount: count,
		Error:       err,
	})
}

// validateRequest runs the client-side checks shared by all search modes.
// Failures here are non-retryable and never reach the network.
func validateRequest(req vectordb.SearchRequest) error {
	if req.CollectionName == "" {
		return fmt.Errorf("%w: collection name cannot be empty", vectordb.ErrConflictingCondition)
	}
	if req.Vector.IsZero() {
		return vectordb.ErrEmptyVector
	}
	if sparse := req.Vector.Sparse; sparse != nil && len(sparse.Indices) != len(sparse.Values) {
		return fmt.Errorf("%w: sparse indices/values length mismatch", vectordb.ErrDimensionMismatch)
	}
	return req.Filter.Validate()
}

/// checkMonotonic enforces the engine's output contract: scores must be
// non-increasing for adjacent result pairs.
func checkMonotonic(results []vectordb.ScoredPoint) error {
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			return fmt.Errorf("%w: result %d scores %v above predecessor %v",
				ErrScoreOrder, i, results[i].Score, results[i-1].Score)
		}
	}
	return nil
}

// Search validates the request, issues a single query and returns results
// ordered by descending score as provided by the backend.
func (e *Engine) Search(ctx context.Context, req vectordb.SearchRequest) (results []vectordb.ScoredPoint, err error) {
	start := time.Now()
	defer func() { e.observe(ctx, "search", req.CollectionName, start, len(results), err) }()

	if err = validateRequest(req); err != nil {
		return nil, err
	}
	results, err = e.backend.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	if err = checkMonotonic(results); err != nil {
		return nil, err
	}
	return results, nil
}

// BatchOptions tunes SearchBatch post-processing.
type BatchOptions struct {
	// Deduplicate drops repeated ids across the batch's result lists,
	// keeping each id's first occurrence and preserving inter-list order.
	Deduplicate bool
}

// SearchBatch validates every request and sends them as a single round trip.
// One result list is returned per request, in request order.
func (e *Engine) SearchBatch(ctx context.Context, reqs []vectordb.SearchRequest, opts BatchOptions) (results [][]vectordb.ScoredPoint, err error) {
	start := time.Now()
	collection := ""
	if len(reqs) > 0 {
		collection = reqs[0].CollectionName
	}
	defer func() {
		total := 0
		for _, r := range results {
			total += len(r)
		}
		e.observe(ctx, "search_batch", collection, start, total, err)
	}()

	if len(reqs) == 0 {
		return nil, fmt.Errorf("search: at least one request is required")
	}
	for i, req := range reqs {
		if err = validateRequest(req); err != nil {
			return nil, fmt.Errorf("request [%d]: %w", i, err)
		}
	}

	results, err = e.backend.SearchBatch(ctx, reqs)
	if err != nil {
		return nil, err
	}
	for i, list := range results {
		if err = checkMonotonic(list); err != nil {
			return nil, fmt.Errorf("request [%d]: %w", i, err)
		}
	}

	if opts.Deduplicate {
		results = deduplicateByID(results)
	}
	return results, nil
}

// deduplicateByID keeps the first occurrence of each id across result
// lists, scanning lists in order. Relative order inside each list is
// preserved.
func deduplicateByID(lists [][]vectordb.ScoredPoint) [][]vectordb.ScoredPoint {
	seen := make(map[string]struct{})
	out := make([][]vectordb.ScoredPoint, len(lists))
	for i, list := range lists {
		kept := make([]vectordb.ScoredPoint, 0, len(list))
		for _, p := range list {
			key := p.ID.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			kept = append(kept, p)
		}
		out[i] = kept
	}
	return out
}
