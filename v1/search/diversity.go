package search

import (
	"context"
	"math"
	"time"

	"github.com/arcadialab/vecengine/v1/vectordb"
)

// defaultLambda balances relevance against diversity when the request does
// not set one: 70% relevance, 30% diversity.
const defaultLambda = 0.7

// DiverseRequest describes a diversity-aware (Maximal Marginal Relevance)
// search.
type DiverseRequest struct {
	CollectionName string    `json:"collectionName"`
	Vector         []float32 `json:"vector"`
	Using          string    `json:"using,omitempty"`

	// Limit is the number of points to select.
	Limit uint64 `json:"limit"`

	// CandidateLimit is the over-fetched candidate pool size. Zero
	// defaults to 3×Limit.
	CandidateLimit uint64 `json:"candidateLimit,omitempty"`

	// Lambda weighs relevance (λ) against redundancy (1−λ).
	// λ=1 degenerates to plain relevance ranking. Zero applies 0.7.
	Lambda float64 `json:"lambda,omitempty"`

	Filter *vectordb.Filter `json:"filter,omitempty"`
}

// SearchDiverse over-fetches CandidateLimit candidates with vectors and
// iteratively selects the point maximizing
//
//	λ·relevance − (1−λ)·maxCosineToSelected
//
// removing it from the pool each iteration, until Limit points are selected
// or candidates are exhausted. No point is selected twice.
// Reference: Carbonell & Goldstein (1998).
func (e *Engine) SearchDiverse(ctx context.Context, req DiverseRequest) (results []vectordb.ScoredPoint, err error) {
	start := time.Now()
	defer func() { e.observe(ctx, "search_diverse", req.CollectionName, start, len(results), err) }()

	lambda := req.Lambda
	if lambda == 0 {
		lambda = defaultLambda
	}
	candidateLimit := req.CandidateLimit
	if candidateLimit == 0 {
		candidateLimit = 3 * req.Limit
	}

	searchReq := vectordb.SearchRequest{
		CollectionName: req.CollectionName,
		Vector:         vectordb.NewVector(req.Vector...),
		Using:          req.Using,
		Limit:          candidateLimit,
		Filter:         req.Filter,
		WithPayload:    true,
		WithVectors:    true,
	}
	if err = validateRequest(searchReq); err != nil {
		return nil, err
	}

	candidates, err := e.backend.Search(ctx, searchReq)
	if err != nil {
		return nil, err
	}

	results = selectMMR(candidates, lambda, int(req.Limit))
	return results, nil
}

// selectMMR runs the Maximal Marginal Relevance loop over a candidate pool
// already ordered by relevance. Candidates without vectors incur no
// redundancy penalty.
func selectMMR(candidates []vectordb.ScoredPoint, lambda float64, limit int) []vectordb.ScoredPoint {
	selected := make([]vectordb.ScoredPoint, 0, limit)
	remaining := make([]vectordb.ScoredPoint, len(candidates))
	copy(remaining, candidates)

	for len(selected) < limit && len(remaining) > 0 {
		bestIdx := -1
		bestScore := math.Inf(-1)

		for i, cand := range remaining {
			relevance := float64(cand.Score)

			maxSim := 0.0
			if len(cand.Vector) > 0 {
				for _, sel := range selected {
					if len(sel.Vector) == 0 {
						continue
					}
					if sim := float64(CosineSimilarity(cand.Vector, sel.Vector)); sim > maxSim {
						maxSim = sim
					}
				}
			}

			score := lambda*relevance - (1-lambda)*maxSim
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}

		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}
