package search_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcadialab/vecengine/v1/search"
	"github.com/arcadialab/vecengine/v1/simulation"
	"github.com/arcadialab/vecengine/v1/vectordb"
)

// stubBackend lets individual tests script backend behavior. Methods not
// overridden fail the calling test path with a nil-pointer panic, which is
// intentional: a test reaching an unscripted call is broken.
type stubBackend struct {
	search      func(ctx context.Context, req vectordb.SearchRequest) ([]vectordb.ScoredPoint, error)
	searchBatch func(ctx context.Context, reqs []vectordb.SearchRequest) ([][]vectordb.ScoredPoint, error)
	get         func(ctx context.Context, collection string, ids []vectordb.PointID, withPayload, withVectors bool) ([]vectordb.Point, error)
	collection  func(ctx context.Context, name string) (*vectordb.Collection, error)
}

func (s *stubBackend) Search(ctx context.Context, req vectordb.SearchRequest) ([]vectordb.ScoredPoint, error) {
	return s.search(ctx, req)
}

func (s *stubBackend) SearchBatch(ctx context.Context, reqs []vectordb.SearchRequest) ([][]vectordb.ScoredPoint, error) {
	return s.searchBatch(ctx, reqs)
}

func (s *stubBackend) Upsert(context.Context, string, []vectordb.Point) error { return nil }

func (s *stubBackend) Get(ctx context.Context, collection string, ids []vectordb.PointID, withPayload, withVectors bool) ([]vectordb.Point, error) {
	return s.get(ctx, collection, ids, withPayload, withVectors)
}

func (s *stubBackend) Scroll(context.Context, vectordb.ScrollRequest) ([]vectordb.Point, error) {
	return nil, nil
}

func (s *stubBackend) Count(context.Context, string, *vectordb.Filter) (uint64, error) {
	return 0, nil
}

func (s *stubBackend) Delete(context.Context, string, *vectordb.Filter, []vectordb.PointID) error {
	return nil
}

func (s *stubBackend) Collection(ctx context.Context, name string) (*vectordb.Collection, error) {
	return s.collection(ctx, name)
}

func newEngine(t *testing.T, backend vectordb.Backend) *search.Engine {
	t.Helper()
	engine, err := search.NewEngine(search.Params{Backend: backend})
	require.NoError(t, err)
	return engine
}

// seededBackend returns a simulation collection with three 2d points whose
// similarity order against the query (1,0) is known: exact match first, the
// near copy second, the orthogonal point last.
func seededBackend(t *testing.T) *simulation.Backend {
	t.Helper()
	backend := simulation.NewBackend()
	backend.CreateCollection("docs", 2, vectordb.DistanceCosine)
	err := backend.Upsert(context.Background(), "docs", []vectordb.Point{
		{ID: vectordb.NewIDNum(1), Vectors: vectordb.NewVector(1, 0), Payload: map[string]any{"tier": "a"}},
		{ID: vectordb.NewIDNum(2), Vectors: vectordb.NewVector(0, 1), Payload: map[string]any{"tier": "b"}},
		{ID: vectordb.NewIDNum(3), Vectors: vectordb.NewVector(0.9, 0.1), Payload: map[string]any{"tier": "a"}},
	})
	require.NoError(t, err)
	return backend
}

func TestEngine_RequiresBackend(t *testing.T) {
	_, err := search.NewEngine(search.Params{})
	assert.Error(t, err)
}

func TestSearch_OrdersByDescendingScore(t *testing.T) {
	engine := newEngine(t, seededBackend(t))

	results, err := engine.Search(context.Background(), vectordb.SearchRequest{
		CollectionName: "docs",
		Vector:         vectordb.NewVector(1, 0),
		Limit:          3,
		WithPayload:    true,
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, vectordb.NewIDNum(1), results[0].ID)
	assert.Equal(t, vectordb.NewIDNum(3), results[1].ID)
	assert.Equal(t, vectordb.NewIDNum(2), results[2].ID)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Score, results[i-1].Score)
	}
}

func TestSearch_ValidationFailsFast(t *testing.T) {
	called := false
	engine := newEngine(t, &stubBackend{
		search: func(context.Context, vectordb.SearchRequest) ([]vectordb.ScoredPoint, error) {
			called = true
			return nil, nil
		},
	})

	cases := []struct {
		name string
		req  vectordb.SearchRequest
	}{
		{"empty collection", vectordb.SearchRequest{Vector: vectordb.NewVector(1), Limit: 1}},
		{"empty vector", vectordb.SearchRequest{CollectionName: "docs", Limit: 1}},
		{"empty filter", vectordb.SearchRequest{
			CollectionName: "docs",
			Vector:         vectordb.NewVector(1),
			Limit:          1,
			Filter:         &vectordb.Filter{},
		}},
		{"sparse length mismatch", vectordb.SearchRequest{
			CollectionName: "docs",
			Vector:         vectordb.NewSparseVector([]uint32{1, 2}, []float32{0.5}),
			Limit:          1,
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Search(context.Background(), tc.req)
			assert.Error(t, err)
			assert.True(t, vectordb.IsValidation(err), "expected validation class, got %v", err)
		})
	}
	assert.False(t, called, "validation failures must never reach the backend")
}

func TestSearch_DetectsScoreOrderViolation(t *testing.T) {
	engine := newEngine(t, &stubBackend{
		search: func(context.Context, vectordb.SearchRequest) ([]vectordb.ScoredPoint, error) {
			return []vectordb.ScoredPoint{
				{ID: vectordb.NewIDNum(1), Score: 0.5},
				{ID: vectordb.NewIDNum(2), Score: 0.9},
			}, nil
		},
	})

	_, err := engine.Search(context.Background(), vectordb.SearchRequest{
		CollectionName: "docs",
		Vector:         vectordb.NewVector(1, 0),
		Limit:          2,
	})
	assert.ErrorIs(t, err, search.ErrScoreOrder)
}

func TestSearchBatch_Deduplicate(t *testing.T) {
	engine := newEngine(t, &stubBackend{
		searchBatch: func(_ context.Context, reqs []vectordb.SearchRequest) ([][]vectordb.ScoredPoint, error) {
			return [][]vectordb.ScoredPoint{
				{
					{ID: vectordb.NewIDNum(1), Score: 0.9},
					{ID: vectordb.NewIDNum(2), Score: 0.8},
				},
				{
					{ID: vectordb.NewIDNum(2), Score: 0.7},
					{ID: vectordb.NewIDNum(3), Score: 0.6},
				},
			}, nil
		},
	})

	req := vectordb.SearchRequest{
		CollectionName: "docs",
		Vector:         vectordb.NewVector(1, 0),
		Limit:          2,
	}
	results, err := engine.SearchBatch(context.Background(),
		[]vectordb.SearchRequest{req, req}, search.BatchOptions{Deduplicate: true})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Len(t, results[0], 2, "first list keeps both points")
	require.Len(t, results[1], 1, "duplicate id dropped from the second list")
	assert.Equal(t, vectordb.NewIDNum(3), results[1][0].ID)
}

func TestSearchBatch_WithoutDeduplicateKeepsAll(t *testing.T) {
	backend := seededBackend(t)
	engine := newEngine(t, backend)

	req := vectordb.SearchRequest{
		CollectionName: "docs",
		Vector:         vectordb.NewVector(1, 0),
		Limit:          2,
	}
	results, err := engine.SearchBatch(context.Background(),
		[]vectordb.SearchRequest{req, req}, search.BatchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, results[0], results[1])
}

func TestSearchBatch_RejectsEmpty(t *testing.T) {
	engine := newEngine(t, seededBackend(t))
	_, err := engine.SearchBatch(context.Background(), nil, search.BatchOptions{})
	assert.Error(t, err)
}

// TestHybridSearch_FusesWithRRF scripts both sub-search result lists and
// checks the fused contributions: a point at 0-based rank r contributes
// weight/(60+r+1), summed across the lists containing it.
func TestHybridSearch_FusesWithRRF(t *testing.T) {
	dense := []vectordb.ScoredPoint{
		{ID: vectordb.NewIDNum(2), Score: 0.9}, // B
		{ID: vectordb.NewIDNum(1), Score: 0.8}, // A
	}
	sparse := []vectordb.ScoredPoint{
		{ID: vectordb.NewIDNum(2), Score: 12}, // B
		{ID: vectordb.NewIDNum(3), Score: 7},  // C
	}
	engine := newEngine(t, &stubBackend{
		search: func(_ context.Context, req vectordb.SearchRequest) ([]vectordb.ScoredPoint, error) {
			if req.Vector.Sparse != nil {
				return sparse, nil
			}
			return dense, nil
		},
	})

	results, err := engine.HybridSearch(context.Background(), search.HybridRequest{
		CollectionName: "docs",
		Dense:          []float32{1, 0},
		Sparse:         vectordb.SparseVector{Indices: []uint32{4}, Values: []float32{1}},
		Limit:          3,
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	// B leads both lists: 0.5/61 + 0.5/61. A and C are each second in one
	// list: 0.5/62, tied, so ascending id breaks the tie.
	assert.Equal(t, vectordb.NewIDNum(2), results[0].ID)
	assert.Equal(t, vectordb.NewIDNum(1), results[1].ID)
	assert.Equal(t, vectordb.NewIDNum(3), results[2].ID)

	assert.InDelta(t, 0.5/61+0.5/61, float64(results[0].Score), 1e-6)
	assert.InDelta(t, 0.5/62, float64(results[1].Score), 1e-6)
	assert.InDelta(t, 0.5/62, float64(results[2].Score), 1e-6)
}

func TestHybridSearch_WeightsSkewFusion(t *testing.T) {
	dense := []vectordb.ScoredPoint{{ID: vectordb.NewIDNum(1), Score: 1}}
	sparse := []vectordb.ScoredPoint{{ID: vectordb.NewIDNum(2), Score: 1}}
	engine := newEngine(t, &stubBackend{
		search: func(_ context.Context, req vectordb.SearchRequest) ([]vectordb.ScoredPoint, error) {
			if req.Vector.Sparse != nil {
				return sparse, nil
			}
			return dense, nil
		},
	})

	results, err := engine.HybridSearch(context.Background(), search.HybridRequest{
		CollectionName: "docs",
		Dense:          []float32{1, 0},
		Sparse:         vectordb.SparseVector{Indices: []uint32{4}, Values: []float32{1}},
		Limit:          2,
		DenseWeight:    0.9,
		SparseWeight:   0.1,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, vectordb.NewIDNum(1), results[0].ID, "dense-weighted point wins")
}

func TestMultiStageSearch_RescoresExactly(t *testing.T) {
	backend := seededBackend(t)
	engine := newEngine(t, backend)

	results, err := engine.MultiStageSearch(context.Background(), search.MultiStageRequest{
		CollectionName: "docs",
		Vector:         []float32{1, 0},
		CoarseLimit:    3,
		FinalLimit:     2,
	})
	require.NoError(t, err)
	require.Len(t, results, 2, "truncated to FinalLimit")

	assert.Equal(t, vectordb.NewIDNum(1), results[0].ID)
	assert.Equal(t, vectordb.NewIDNum(3), results[1].ID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-6, "exact cosine of an exact match")
}

func TestMultiStageSearch_EmptyCoarseStage(t *testing.T) {
	backend := simulation.NewBackend()
	backend.CreateCollection("empty", 2, vectordb.DistanceCosine)
	engine := newEngine(t, backend)

	results, err := engine.MultiStageSearch(context.Background(), search.MultiStageRequest{
		CollectionName: "empty",
		Vector:         []float32{1, 0},
		CoarseLimit:    10,
		FinalLimit:     5,
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

// TestMultiStageSearch_FetchesMissingVectors scripts a coarse stage that
// returns candidates without vectors, forcing the re-ranker onto the
// fetch-by-id path.
func TestMultiStageSearch_FetchesMissingVectors(t *testing.T) {
	vectors := map[uint64][]float32{
		1: {0, 1},
		2: {1, 0},
	}
	var fetched []vectordb.PointID
	engine := newEngine(t, &stubBackend{
		search: func(context.Context, vectordb.SearchRequest) ([]vectordb.ScoredPoint, error) {
			// Coarse stage ranks the worse point first and strips vectors.
			return []vectordb.ScoredPoint{
				{ID: vectordb.NewIDNum(1), Score: 0.9},
				{ID: vectordb.NewIDNum(2), Score: 0.8},
			}, nil
		},
		get: func(_ context.Context, _ string, ids []vectordb.PointID, _, _ bool) ([]vectordb.Point, error) {
			fetched = ids
			out := make([]vectordb.Point, 0, len(ids))
			for _, id := range ids {
				n, _ := id.Num()
				out = append(out, vectordb.Point{ID: id, Vectors: vectordb.NewVector(vectors[n]...)})
			}
			return out, nil
		},
	})

	results, err := engine.MultiStageSearch(context.Background(), search.MultiStageRequest{
		CollectionName: "docs",
		Vector:         []float32{1, 0},
		CoarseLimit:    2,
		FinalLimit:     2,
		Distance:       vectordb.DistanceCosine,
	})
	require.NoError(t, err)
	require.Len(t, fetched, 2, "both vectorless candidates fetched")
	require.Len(t, results, 2)

	// Exact re-scoring inverts the coarse order.
	assert.Equal(t, vectordb.NewIDNum(2), results[0].ID)
	assert.Equal(t, vectordb.NewIDNum(1), results[1].ID)
}

func TestMultiStageSearch_DimensionMismatch(t *testing.T) {
	engine := newEngine(t, &stubBackend{
		search: func(context.Context, vectordb.SearchRequest) ([]vectordb.ScoredPoint, error) {
			return []vectordb.ScoredPoint{
				{ID: vectordb.NewIDNum(1), Score: 0.9, Vector: []float32{1, 0, 0}},
			}, nil
		},
	})

	_, err := engine.MultiStageSearch(context.Background(), search.MultiStageRequest{
		CollectionName: "docs",
		Vector:         []float32{1, 0},
		CoarseLimit:    1,
		FinalLimit:     1,
		Distance:       vectordb.DistanceCosine,
	})
	assert.ErrorIs(t, err, vectordb.ErrDimensionMismatch)
}

// TestSearchDiverse_PenalizesRedundancy seeds a near-duplicate of the best
// match. Plain ranking returns both; with redundancy weighted above
// relevance the diversity pass swaps the duplicate for the orthogonal point.
func TestSearchDiverse_PenalizesRedundancy(t *testing.T) {
	backend := simulation.NewBackend()
	backend.CreateCollection("docs", 2, vectordb.DistanceCosine)
	require.NoError(t, backend.Upsert(context.Background(), "docs", []vectordb.Point{
		{ID: vectordb.NewIDNum(1), Vectors: vectordb.NewVector(1, 0)},
		{ID: vectordb.NewIDNum(2), Vectors: vectordb.NewVector(0.99, 0.01)},
		{ID: vectordb.NewIDNum(3), Vectors: vectordb.NewVector(0, 1)},
	}))
	engine := newEngine(t, backend)

	results, err := engine.SearchDiverse(context.Background(), search.DiverseRequest{
		CollectionName: "docs",
		Vector:         []float32{1, 0},
		Limit:          2,
		Lambda:         0.3,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, vectordb.NewIDNum(1), results[0].ID, "most relevant picked first")
	assert.Equal(t, vectordb.NewIDNum(3), results[1].ID, "near-duplicate displaced by the diverse point")
}

func TestSearchDiverse_LambdaOneIsPlainRelevance(t *testing.T) {
	engine := newEngine(t, seededBackend(t))

	diverse, err := engine.SearchDiverse(context.Background(), search.DiverseRequest{
		CollectionName: "docs",
		Vector:         []float32{1, 0},
		Limit:          3,
		Lambda:         1,
	})
	require.NoError(t, err)

	plain, err := engine.Search(context.Background(), vectordb.SearchRequest{
		CollectionName: "docs",
		Vector:         vectordb.NewVector(1, 0),
		Limit:          3,
	})
	require.NoError(t, err)

	require.Len(t, diverse, len(plain))
	for i := range plain {
		assert.Equal(t, plain[i].ID, diverse[i].ID)
	}
}

func TestSearchDiverse_NeverRepeatsAndStopsAtPool(t *testing.T) {
	engine := newEngine(t, seededBackend(t))

	results, err := engine.SearchDiverse(context.Background(), search.DiverseRequest{
		CollectionName: "docs",
		Vector:         []float32{1, 0},
		Limit:          10,
	})
	require.NoError(t, err)
	assert.Len(t, results, 3, "selection stops when candidates run out")

	seen := make(map[string]bool)
	for _, r := range results {
		assert.False(t, seen[r.ID.Key()], "id %s selected twice", r.ID)
		seen[r.ID.Key()] = true
	}
}
