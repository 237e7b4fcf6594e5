package search

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/arcadialab/vecengine/v1/vectordb"
)

// defaultCoarseEf is the reduced HNSW search effort for the coarse stage.
const defaultCoarseEf = 64

// MultiStageRequest describes a coarse-to-fine re-ranked search.
type MultiStageRequest struct {
	CollectionName string    `json:"collectionName"`
	Vector         []float32 `json:"vector"`
	Using          string    `json:"using,omitempty"`

	// CoarseLimit is the candidate count fetched by the cheap first stage.
	CoarseLimit uint64 `json:"coarseLimit"`

	// FinalLimit is the result count after exact re-scoring.
	FinalLimit uint64 `json:"finalLimit"`

	// CoarseEf reduces index traversal breadth for stage one.
	// Zero applies defaultCoarseEf.
	CoarseEf uint64 `json:"coarseEf,omitempty"`

	// Distance overrides the metric used for exact re-scoring. Zero value
	// resolves the collection's configured metric from the backend.
	Distance vectordb.Distance `json:"distance,omitempty"`

	Filter *vectordb.Filter `json:"filter,omitempty"`
}

// MultiStageSearch issues a coarse low-effort search over CoarseLimit
// candidates, then re-scores every candidate exactly with the collection's
// distance metric and returns the top FinalLimit by exact score. Candidate
// vectors returned by stage one are reused; missing ones are fetched by id.
func (e *Engine) MultiStageSearch(ctx context.Context, req MultiStageRequest) (results []vectordb.ScoredPoint, err error) {
	start := time.Now()
	defer func() { e.observe(ctx, "multi_stage_search", req.CollectionName, start, len(results), err) }()

	coarseEf := req.CoarseEf
	if coarseEf == 0 {
		coarseEf = defaultCoarseEf
	}
	coarseReq := vectordb.SearchRequest{
		CollectionName: req.CollectionName,
		Vector:         vectordb.NewVector(req.Vector...),
		Using:          req.Using,
		Limit:          req.CoarseLimit,
		Filter:         req.Filter,
		Ef:             coarseEf,
		WithPayload:    true,
		WithVectors:    true,
	}
	if err = validateRequest(coarseReq); err != nil {
		return nil, err
	}

	candidates, err := e.backend.Search(ctx, coarseReq)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []vectordb.ScoredPoint{}, nil
	}

	metric := req.Distance
	if metric == "" {
		info, cerr := e.backend.Collection(ctx, req.CollectionName)
		if cerr != nil {
			return nil, cerr
		}
		metric = info.Distance
	}

	if err = e.fillVectors(ctx, req.CollectionName, req.Using, candidates); err != nil {
		return nil, err
	}

	rescored := make([]vectordb.ScoredPoint, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Vector) != len(req.Vector) {
			return nil, fmt.Errorf("%w: candidate %s has dimension %d, query has %d",
				vectordb.ErrDimensionMismatch, c.ID, len(c.Vector), len(req.Vector))
		}
		c.Score = ScoreByDistance(metric, req.Vector, c.Vector)
		rescored = append(rescored, c)
	}

	sort.Slice(rescored, func(i, j int) bool {
		if rescored[i].Score != rescored[j].Score {
			return rescored[i].Score > rescored[j].Score
		}
		return rescored[i].ID.Key() < rescored[j].ID.Key()
	})
	if uint64(len(rescored)) > req.FinalLimit {
		rescored = rescored[:req.FinalLimit]
	}
	return rescored, nil
}

// fillVectors fetches stored vectors for candidates the backend returned
// without one.
func (e *Engine) fillVectors(ctx context.Context, collection, using string, candidates []vectordb.ScoredPoint) error {
	var missing []vectordb.PointID
	for _, c := range candidates {
		if len(c.Vector) == 0 {
			missing = append(missing, c.ID)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	points, err := e.backend.Get(ctx, collection, missing, false, true)
	if err != nil {
		return err
	}
	vectors := make(map[string][]float32, len(points))
	for _, p := range points {
		vectors[p.ID.Key()] = denseVector(p.Vectors, using)
	}
	for i := range candidates {
		if len(candidates[i].Vector) == 0 {
			candidates[i].Vector = vectors[candidates[i].ID.Key()]
		}
	}
	return nil
}

// denseVector extracts the dense vector a search targets: the named one
// when using is set, the default otherwise.
func denseVector(v vectordb.Vector, using string) []float32 {
	if using != "" {
		return v.Named[using]
	}
	if len(v.Dense) > 0 {
		return v.Dense
	}
	// Single-entry named maps stand in for the default vector on
	// multi-vector collections hydrated from the wire.
	if len(v.Named) == 1 {
		for _, dense := range v.Named {
			return dense
		}
	}
	return nil
}
