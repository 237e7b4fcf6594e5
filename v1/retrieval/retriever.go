package retrieval

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/fx"

	"github.com/arcadialab/vecengine/v1/logger"
	"github.com/arcadialab/vecengine/v1/observability"
	"github.com/arcadialab/vecengine/v1/search"
	"github.com/arcadialab/vecengine/v1/vectordb"
)

const component = "retrieval"

// Aggregation selects how chunk scores roll up to a document score.
type Aggregation string

const (
	AggMax Aggregation = "max"
	AggSum Aggregation = "sum"
	AggAvg Aggregation = "avg"
)

// Config holds the payload conventions and window defaults used by the
// retrieval helpers.
type Config struct {
	// DocumentIDKey is the payload field carrying the document identifier.
	DocumentIDKey string `yaml:"document_id_key" env:"RETRIEVAL_DOCUMENT_ID_KEY"`

	// ChunkIndexKey is the payload field carrying the chunk ordinal.
	ChunkIndexKey string `yaml:"chunk_index_key" env:"RETRIEVAL_CHUNK_INDEX_KEY"`

	// WindowBefore and WindowAfter bound the context window fetched
	// around each hit.
	WindowBefore int `yaml:"window_before" env:"RETRIEVAL_WINDOW_BEFORE"`
	WindowAfter  int `yaml:"window_after" env:"RETRIEVAL_WINDOW_AFTER"`
}

// DefaultConfig uses the document_id / chunk_index payload convention with
// a two-chunk window on each side.
func DefaultConfig() Config {
	return Config{
		DocumentIDKey: "document_id",
		ChunkIndexKey: "chunk_index",
		WindowBefore:  2,
		WindowAfter:   2,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DocumentIDKey == "" {
		c.DocumentIDKey = d.DocumentIDKey
	}
	if c.ChunkIndexKey == "" {
		c.ChunkIndexKey = d.ChunkIndexKey
	}
	if c.WindowBefore <= 0 {
		c.WindowBefore = d.WindowBefore
	}
	if c.WindowAfter <= 0 {
		c.WindowAfter = d.WindowAfter
	}
	return c
}

// ContextualChunk pairs a search hit with the surrounding chunks of its
// document, ordered by chunk ordinal. Derived and read-only; never sent
// back to the backend.
type ContextualChunk struct {
	Hit    vectordb.ScoredPoint `json:"hit"`
	Window []vectordb.Point     `json:"window"`
}

// RetrievedDocument aggregates a document's matching chunks under one
// document-level score.
type RetrievedDocument struct {
	DocumentID string                 `json:"documentId"`
	Score      float32                `json:"score"`
	Chunks     []vectordb.ScoredPoint `json:"chunks"`
}

// Retriever composes search engine calls into contextual and
// document-level retrieval for augmented-generation workloads.
type Retriever struct {
	engine   *search.Engine
	backend  vectordb.Backend
	cfg      Config
	log      *logger.Logger
	observer observability.Observer
}

// Params collects the retriever's dependencies. The backend is required
// alongside the engine for the follow-up scroll queries.
type Params struct {
	fx.In

	Engine   *search.Engine
	Backend  vectordb.Backend
	Config   Config                 `optional:"true"`
	Logger   *logger.Logger         `optional:"true"`
	Observer observability.Observer `optional:"true"`
}

// NewRetriever constructs the retrieval helper.
func NewRetriever(p Params) (*Retriever, error) {
	if p.Engine == nil {
		return nil, fmt.Errorf("retrieval: search engine is required")
	}
	if p.Backend == nil {
		return nil, fmt.Errorf("retrieval: backend is required")
	}
	if p.Logger == nil {
		p.Logger = logger.NewNoop()
	}
	if p.Observer == nil {
		p.Observer = observability.NoopObserver{}
	}
	return &Retriever{
		engine:   p.Engine,
		backend:  p.Backend,
		cfg:      p.Config.withDefaults(),
		log:      p.Logger,
		observer: p.Observer,
	}, nil
}

// ContextRequest describes a contextual retrieval call.
type ContextRequest struct {
	CollectionName string           `json:"collectionName"`
	Vector         []float32        `json:"vector"`
	Limit          uint64           `json:"limit"`
	Filter         *vectordb.Filter `json:"filter,omitempty"`

	// Before and After override the configured window bounds when positive.
	Before int `json:"before,omitempty"`
	After  int `json:"after,omitempty"`
}

// RetrieveWithContext searches, then fetches the chunks surrounding each
// hit with an ordered range scroll on (document id, chunk ordinal). Hits
// whose payload lacks the document id or chunk ordinal are returned
// without a window.
func (r *Retriever) RetrieveWithContext(ctx context.Context, req ContextRequest) (chunks []ContextualChunk, err error) {
	start := time.Now()
	defer func() {
		r.observer.ObserveOperation(ctx, observability.OperationContext{
			Component:   component,
			Operation:   "retrieve_with_context",
			Collection:  req.CollectionName,
			Duration:    time.Since(start),
			ResultCount: len(chunks),
			Error:       err,
		})
	}()

	before := req.Before
	if before <= 0 {
		before = r.cfg.WindowBefore
	}
	after := req.After
	if after <= 0 {
		after = r.cfg.WindowAfter
	}

	hits, err := r.engine.Search(ctx, vectordb.SearchRequest{
		CollectionName: req.CollectionName,
		Vector:         vectordb.NewVector(req.Vector...),
		Limit:          req.Limit,
		Filter:         req.Filter,
		WithPayload:    true,
	})
	if err != nil {
		return nil, err
	}

	chunks = make([]ContextualChunk, 0, len(hits))
	for _, hit := range hits {
		docID, ordinal, ok := r.chunkCoordinates(hit.Payload)
		if !ok {
			r.log.Debug("hit lacks document coordinates, returned windowless", nil, map[string]interface{}{
				"point_id": hit.ID.String(),
			})
			chunks = append(chunks, ContextualChunk{Hit: hit})
			continue
		}

		lo := float64(ordinal - before)
		hi := float64(ordinal + after)
		windowFilter := vectordb.NewFilter().
			Match(r.cfg.DocumentIDKey, docID).
			Between(r.cfg.ChunkIndexKey, lo, hi).
			MustBuild()

		window, serr := r.backend.Scroll(ctx, vectordb.ScrollRequest{
			CollectionName: req.CollectionName,
			Filter:         windowFilter,
			Limit:          uint64(before + after + 1),
			OrderBy:        &vectordb.OrderBy{Key: r.cfg.ChunkIndexKey, Ascending: true},
			WithPayload:    true,
		})
		if serr != nil {
			return nil, serr
		}
		chunks = append(chunks, ContextualChunk{Hit: hit, Window: window})
	}
	return chunks, nil
}

// DocumentRequest describes a document-level retrieval call.
type DocumentRequest struct {
	CollectionName string           `json:"collectionName"`
	Vector         []float32        `json:"vector"`
	Filter         *vectordb.Filter `json:"filter,omitempty"`

	// ChunkLimit is the chunk-level search breadth. Zero defaults to
	// 4×DocumentLimit.
	ChunkLimit uint64 `json:"chunkLimit,omitempty"`

	// DocumentLimit is the number of documents returned.
	DocumentLimit uint64 `json:"documentLimit"`

	// Aggregation rolls chunk scores up to the document score.
	// Empty defaults to AggMax.
	Aggregation Aggregation `json:"aggregation,omitempty"`
}

// RetrieveDocuments runs a chunk-level search, groups hits by document
// identifier, aggregates each group's score by the configured policy,
// and returns the top documents by aggregated score (ties broken by
// ascending document id).
func (r *Retriever) RetrieveDocuments(ctx context.Context, req DocumentRequest) (docs []RetrievedDocument, err error) {
	start := time.Now()
	defer func() {
		r.observer.ObserveOperation(ctx, observability.OperationContext{
			Component:   component,
			Operation:   "retrieve_documents",
			Collection:  req.CollectionName,
			Duration:    time.Since(start),
			ResultCount: len(docs),
			Error:       err,
		})
	}()

	chunkLimit := req.ChunkLimit
	if chunkLimit == 0 {
		chunkLimit = 4 * req.DocumentLimit
	}
	agg := req.Aggregation
	if agg == "" {
		agg = AggMax
	}

	hits, err := r.engine.Search(ctx, vectordb.SearchRequest{
		CollectionName: req.CollectionName,
		Vector:         vectordb.NewVector(req.Vector...),
		Limit:          chunkLimit,
		Filter:         req.Filter,
		WithPayload:    true,
	})
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]vectordb.ScoredPoint)
	order := make([]string, 0)
	for _, hit := range hits {
		docID, _, ok := r.chunkCoordinates(hit.Payload)
		if !ok {
			continue
		}
		if _, seen := groups[docID]; !seen {
			order = append(order, docID)
		}
		groups[docID] = append(groups[docID], hit)
	}

	docs = make([]RetrievedDocument, 0, len(groups))
	for _, docID := range order {
		group := groups[docID]
		docs = append(docs, RetrievedDocument{
			DocumentID: docID,
			Score:      aggregateScore(agg, group),
			Chunks:     group,
		})
	}

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].DocumentID < docs[j].DocumentID
	})
	if req.DocumentLimit > 0 && uint64(len(docs)) > req.DocumentLimit {
		docs = docs[:req.DocumentLimit]
	}
	return docs, nil
}

// chunkCoordinates extracts the document id and chunk ordinal from a hit's
// payload.
func (r *Retriever) chunkCoordinates(payload map[string]any) (string, int, bool) {
	docVal, ok := payload[r.cfg.DocumentIDKey]
	if !ok {
		return "", 0, false
	}
	docID, ok := docVal.(string)
	if !ok || docID == "" {
		return "", 0, false
	}
	ordVal, ok := payload[r.cfg.ChunkIndexKey]
	if !ok {
		return "", 0, false
	}
	switch n := ordVal.(type) {
	case int:
		return docID, n, true
	case int64:
		return docID, int(n), true
	case float64:
		return docID, int(n), true
	default:
		return "", 0, false
	}
}

func aggregateScore(agg Aggregation, chunks []vectordb.ScoredPoint) float32 {
	if len(chunks) == 0 {
		return 0
	}
	switch agg {
	case AggSum:
		var sum float32
		for _, c := range chunks {
			sum += c.Score
		}
		return sum
	case AggAvg:
		var sum float32
		for _, c := range chunks {
			sum += c.Score
		}
		return sum / float32(len(chunks))
	default:
		max := chunks[0].Score
		for _, c := range chunks[1:] {
			if c.Score > max {
				max = c.Score
			}
		}
		return max
	}
}
