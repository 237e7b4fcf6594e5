package search

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arcadialab/vecengine/v1/vectordb"
)

// rrfK is the Reciprocal Rank Fusion constant (Cormack et al. 2009).
const rrfK = 60

// HybridRequest describes a fused dense + sparse search.
type HybridRequest struct {
	CollectionName string `json:"collectionName"`

	// Dense is the dense query vector; DenseUsing optionally selects a
	// named vector.
	Dense      []float32 `json:"dense"`
	DenseUsing string    `json:"denseUsing,omitempty"`

	// Sparse is the sparse query vector; SparseUsing selects the sparse
	// vector name (sparse vectors are always named on the wire).
	Sparse      vectordb.SparseVector `json:"sparse"`
	SparseUsing string                `json:"sparseUsing,omitempty"`

	// Limit is the final fused result count. Each sub-search over-fetches
	// 2×Limit candidates to give the fusion step enough signal.
	Limit uint64 `json:"limit"`

	Filter *vectordb.Filter `json:"filter,omitempty"`

	// DenseWeight and SparseWeight scale each list's rank contributions.
	// Both default to 0.5 when zero.
	DenseWeight  float64 `json:"denseWeight,omitempty"`
	SparseWeight float64 `json:"sparseWeight,omitempty"`
}

// HybridSearch runs the dense and sparse sub-searches concurrently and
// fuses them with Reciprocal Rank Fusion: a point at 0-based rank r in a
// list contributes weight/(k+r+1), and its fused score is the sum of its
// contributions across whichever lists contain it. The fused list is sorted
// by descending score (ties broken by ascending id) and truncated to Limit.
func (e *Engine) HybridSearch(ctx context.Context, req HybridRequest) (results []vectordb.ScoredPoint, err error) {
	start := time.Now()
	defer func() { e.observe(ctx, "hybrid_search", req.CollectionName, start, len(results), err) }()

	denseWeight := req.DenseWeight
	sparseWeight := req.SparseWeight
	if denseWeight == 0 && sparseWeight == 0 {
		denseWeight, sparseWeight = 0.5, 0.5
	}

	fetch := 2 * req.Limit

	denseReq := vectordb.SearchRequest{
		CollectionName: req.CollectionName,
		Vector:         vectordb.NewVector(req.Dense...),
		Using:          req.DenseUsing,
		Limit:          fetch,
		Filter:         req.Filter,
		WithPayload:    true,
	}
	sparseReq := vectordb.SearchRequest{
		CollectionName: req.CollectionName,
		Vector:         vectordb.Vector{Sparse: &req.Sparse},
		Using:          req.SparseUsing,
		Limit:          fetch,
		Filter:         req.Filter,
		WithPayload:    true,
	}
	if err = validateRequest(denseReq); err != nil {
		return nil, err
	}
	if err = validateRequest(sparseReq); err != nil {
		return nil, err
	}

	var denseRes, sparseRes []vectordb.ScoredPoint
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var gerr error
		denseRes, gerr = e.backend.Search(gctx, denseReq)
		return gerr
	})
	g.Go(func() error {
		var gerr error
		sparseRes, gerr = e.backend.Search(gctx, sparseReq)
		return gerr
	})
	if err = g.Wait(); err != nil {
		return nil, err
	}

	results = fuseRRF(denseRes, sparseRes, denseWeight, sparseWeight, int(req.Limit))
	return results, nil
}

// fuseRRF merges two ranked lists via weighted Reciprocal Rank Fusion.
// When a point appears in both lists the dense entry is kept, it may carry
// the vector and payload.
func fuseRRF(dense, sparse []vectordb.ScoredPoint, denseWeight, sparseWeight float64, limit int) []vectordb.ScoredPoint {
	type fused struct {
		point vectordb.ScoredPoint
		score float64
	}
	merged := make(map[string]*fused, len(dense)+len(sparse))

	for rank, p := range dense {
		merged[p.ID.Key()] = &fused{point: p, score: denseWeight / float64(rrfK+rank+1)}
	}
	for rank, p := range sparse {
		contribution := sparseWeight / float64(rrfK+rank+1)
		if existing, ok := merged[p.ID.Key()]; ok {
			existing.score += contribution
		} else {
			merged[p.ID.Key()] = &fused{point: p, score: contribution}
		}
	}

	out := make([]vectordb.ScoredPoint, 0, len(merged))
	for _, f := range merged {
		p := f.point
		p.Score = float32(f.score)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID.Key() < out[j].ID.Key()
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
