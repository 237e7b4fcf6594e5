package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcadialab/vecengine/v1/search"
	"github.com/arcadialab/vecengine/v1/simulation"
	"github.com/arcadialab/vecengine/v1/vectordb"
)

func chunkPoint(id uint64, doc string, ordinal int, vec []float32) vectordb.Point {
	return vectordb.Point{
		ID:      vectordb.NewIDNum(id),
		Vectors: vectordb.NewVector(vec...),
		Payload: map[string]any{"document_id": doc, "chunk_index": ordinal},
	}
}

// seedChunks builds a ten-chunk document where only chunk 5 points along the
// query axis, plus one stray point without document coordinates.
func seedChunks(t *testing.T) *simulation.Backend {
	t.Helper()
	backend := simulation.NewBackend()
	backend.CreateCollection("chunks", 2, vectordb.DistanceCosine)

	points := make([]vectordb.Point, 0, 11)
	for i := 0; i < 10; i++ {
		vec := []float32{0, 1}
		if i == 5 {
			vec = []float32{1, 0}
		}
		points = append(points, chunkPoint(uint64(100+i), "doc-a", i, vec))
	}
	points = append(points, vectordb.Point{
		ID:      vectordb.NewIDNum(99),
		Vectors: vectordb.NewVector(0.9, 0.1),
		Payload: map[string]any{"note": "floating"},
	})
	require.NoError(t, backend.Upsert(context.Background(), "chunks", points))
	return backend
}

func newRetriever(t *testing.T, backend vectordb.Backend, cfg Config) *Retriever {
	t.Helper()
	engine, err := search.NewEngine(search.Params{Backend: backend})
	require.NoError(t, err)
	r, err := NewRetriever(Params{Engine: engine, Backend: backend, Config: cfg})
	require.NoError(t, err)
	return r
}

func TestNewRetriever_RequiresDependencies(t *testing.T) {
	backend := simulation.NewBackend()
	engine, err := search.NewEngine(search.Params{Backend: backend})
	require.NoError(t, err)

	_, err = NewRetriever(Params{Backend: backend})
	assert.Error(t, err)
	_, err = NewRetriever(Params{Engine: engine})
	assert.Error(t, err)
}

func TestRetrieveWithContext_WindowAroundHit(t *testing.T) {
	r := newRetriever(t, seedChunks(t), Config{})

	chunks, err := r.RetrieveWithContext(context.Background(), ContextRequest{
		CollectionName: "chunks",
		Vector:         []float32{1, 0},
		Limit:          1,
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	hit := chunks[0]
	assert.Equal(t, vectordb.NewIDNum(105), hit.Hit.ID)

	// Default window is two chunks on each side, ordered by ordinal.
	require.Len(t, hit.Window, 5)
	for i, p := range hit.Window {
		assert.Equal(t, vectordb.NewIDNum(uint64(103+i)), p.ID)
		assert.Equal(t, 3+i, p.Payload["chunk_index"])
	}
}

func TestRetrieveWithContext_WindowOverrides(t *testing.T) {
	r := newRetriever(t, seedChunks(t), Config{})

	chunks, err := r.RetrieveWithContext(context.Background(), ContextRequest{
		CollectionName: "chunks",
		Vector:         []float32{1, 0},
		Limit:          1,
		Before:         1,
		After:          1,
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Len(t, chunks[0].Window, 3)
	assert.Equal(t, vectordb.NewIDNum(104), chunks[0].Window[0].ID)
	assert.Equal(t, vectordb.NewIDNum(106), chunks[0].Window[2].ID)
}

func TestRetrieveWithContext_WindowClampedAtDocumentEdge(t *testing.T) {
	r := newRetriever(t, seedChunks(t), Config{})

	// A window wider than the document returns every stored chunk rather
	// than failing on the out-of-range ordinals.
	chunks, err := r.RetrieveWithContext(context.Background(), ContextRequest{
		CollectionName: "chunks",
		Vector:         []float32{1, 0},
		Limit:          1,
		Before:         20,
		After:          20,
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Len(t, chunks[0].Window, 10)
}

func TestRetrieveWithContext_WindowlessWithoutCoordinates(t *testing.T) {
	r := newRetriever(t, seedChunks(t), Config{})

	chunks, err := r.RetrieveWithContext(context.Background(), ContextRequest{
		CollectionName: "chunks",
		Vector:         []float32{1, 0},
		Limit:          2,
	})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.NotEmpty(t, chunks[0].Window)
	assert.Equal(t, vectordb.NewIDNum(99), chunks[1].Hit.ID)
	assert.Empty(t, chunks[1].Window, "hit without coordinates stays windowless")
}

func TestRetrieveWithContext_CustomPayloadKeys(t *testing.T) {
	backend := simulation.NewBackend()
	backend.CreateCollection("chunks", 2, vectordb.DistanceCosine)
	require.NoError(t, backend.Upsert(context.Background(), "chunks", []vectordb.Point{
		{ID: vectordb.NewIDNum(1), Vectors: vectordb.NewVector(1, 0),
			Payload: map[string]any{"doc": "d1", "pos": 1}},
		{ID: vectordb.NewIDNum(2), Vectors: vectordb.NewVector(0, 1),
			Payload: map[string]any{"doc": "d1", "pos": 2}},
	}))
	r := newRetriever(t, backend, Config{DocumentIDKey: "doc", ChunkIndexKey: "pos"})

	chunks, err := r.RetrieveWithContext(context.Background(), ContextRequest{
		CollectionName: "chunks",
		Vector:         []float32{1, 0},
		Limit:          1,
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Len(t, chunks[0].Window, 2)
}

// seedDocuments builds two documents with known chunk scores against the
// query (1,0): doc-x scores 1.0 and 0.6, doc-y scores 0.8 and 0.9. Max
// favors doc-x; sum and average favor doc-y.
func seedDocuments(t *testing.T) *simulation.Backend {
	t.Helper()
	backend := simulation.NewBackend()
	backend.CreateCollection("chunks", 2, vectordb.DistanceCosine)
	require.NoError(t, backend.Upsert(context.Background(), "chunks", []vectordb.Point{
		chunkPoint(1, "doc-x", 0, []float32{1, 0}),
		chunkPoint(2, "doc-x", 1, []float32{0.6, 0.8}),
		chunkPoint(3, "doc-y", 0, []float32{0.8, 0.6}),
		chunkPoint(4, "doc-y", 1, []float32{0.9, 0.4358899}),
	}))
	return backend
}

func TestRetrieveDocuments_AggregationPolicies(t *testing.T) {
	r := newRetriever(t, seedDocuments(t), Config{})

	cases := []struct {
		agg        Aggregation
		wantOrder  []string
		wantScores []float32
	}{
		{AggMax, []string{"doc-x", "doc-y"}, []float32{1.0, 0.9}},
		{AggSum, []string{"doc-y", "doc-x"}, []float32{1.7, 1.6}},
		{AggAvg, []string{"doc-y", "doc-x"}, []float32{0.85, 0.8}},
	}
	for _, tc := range cases {
		t.Run(string(tc.agg), func(t *testing.T) {
			docs, err := r.RetrieveDocuments(context.Background(), DocumentRequest{
				CollectionName: "chunks",
				Vector:         []float32{1, 0},
				ChunkLimit:     10,
				DocumentLimit:  2,
				Aggregation:    tc.agg,
			})
			require.NoError(t, err)
			require.Len(t, docs, 2)
			for i := range docs {
				assert.Equal(t, tc.wantOrder[i], docs[i].DocumentID)
				assert.InDelta(t, tc.wantScores[i], docs[i].Score, 1e-3)
			}
		})
	}
}

func TestRetrieveDocuments_GroupsChunksPerDocument(t *testing.T) {
	r := newRetriever(t, seedDocuments(t), Config{})

	docs, err := r.RetrieveDocuments(context.Background(), DocumentRequest{
		CollectionName: "chunks",
		Vector:         []float32{1, 0},
		ChunkLimit:     10,
		DocumentLimit:  2,
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	for _, d := range docs {
		assert.Len(t, d.Chunks, 2)
		for _, c := range d.Chunks {
			assert.Equal(t, d.DocumentID, c.Payload["document_id"])
		}
	}
}

func TestRetrieveDocuments_TruncatesToDocumentLimit(t *testing.T) {
	r := newRetriever(t, seedDocuments(t), Config{})

	docs, err := r.RetrieveDocuments(context.Background(), DocumentRequest{
		CollectionName: "chunks",
		Vector:         []float32{1, 0},
		ChunkLimit:     10,
		DocumentLimit:  1,
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc-x", docs[0].DocumentID, "max aggregation is the default")
}

func TestRetrieveDocuments_TieBreaksByDocumentID(t *testing.T) {
	backend := simulation.NewBackend()
	backend.CreateCollection("chunks", 2, vectordb.DistanceCosine)
	require.NoError(t, backend.Upsert(context.Background(), "chunks", []vectordb.Point{
		chunkPoint(1, "doc-b", 0, []float32{1, 0}),
		chunkPoint(2, "doc-a", 0, []float32{2, 0}),
	}))
	r := newRetriever(t, backend, Config{})

	docs, err := r.RetrieveDocuments(context.Background(), DocumentRequest{
		CollectionName: "chunks",
		Vector:         []float32{1, 0},
		ChunkLimit:     10,
		DocumentLimit:  2,
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "doc-a", docs[0].DocumentID)
	assert.Equal(t, "doc-b", docs[1].DocumentID)
}

func TestRetrieveDocuments_SkipsHitsWithoutCoordinates(t *testing.T) {
	r := newRetriever(t, seedChunks(t), Config{})

	docs, err := r.RetrieveDocuments(context.Background(), DocumentRequest{
		CollectionName: "chunks",
		Vector:         []float32{0.9, 0.1},
		ChunkLimit:     20,
		DocumentLimit:  5,
	})
	require.NoError(t, err)
	require.Len(t, docs, 1, "the stray point without coordinates forms no document")
	assert.Equal(t, "doc-a", docs[0].DocumentID)
}

func TestChunkCoordinates(t *testing.T) {
	r := newRetriever(t, simulation.NewBackend(), Config{})

	cases := []struct {
		name    string
		payload map[string]any
		wantOK  bool
	}{
		{"int ordinal", map[string]any{"document_id": "d", "chunk_index": 3}, true},
		{"int64 ordinal", map[string]any{"document_id": "d", "chunk_index": int64(3)}, true},
		{"float ordinal", map[string]any{"document_id": "d", "chunk_index": 3.0}, true},
		{"string ordinal", map[string]any{"document_id": "d", "chunk_index": "3"}, false},
		{"missing ordinal", map[string]any{"document_id": "d"}, false},
		{"missing document", map[string]any{"chunk_index": 3}, false},
		{"empty document", map[string]any{"document_id": "", "chunk_index": 3}, false},
		{"non-string document", map[string]any{"document_id": 7, "chunk_index": 3}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc, ordinal, ok := r.chunkCoordinates(tc.payload)
			assert.Equal(t, tc.wantOK, ok)
			if ok {
				assert.Equal(t, "d", doc)
				assert.Equal(t, 3, ordinal)
			}
		})
	}
}

func TestAggregateScore_Empty(t *testing.T) {
	assert.Equal(t, float32(0), aggregateScore(AggMax, nil))
}
