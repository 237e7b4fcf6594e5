package simulation

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/arcadialab/vecengine/v1/search"
	"github.com/arcadialab/vecengine/v1/vectordb"
)

// Backend is an in-memory, brute-force implementation of vectordb.Backend
// for deterministic testing without a live vector store. Collections are
// created explicitly so dimension and distance-metric validation behave
// like the real backend. Artificial latency can be injected to exercise
// timeout and concurrency paths.
type Backend struct {
	mu          sync.RWMutex
	collections map[string]*collection

	latencyBase   time.Duration
	latencyJitter time.Duration
}

type collection struct {
	dim      uint64
	distance vectordb.Distance
	// points is keyed by PointID.Key; insertion order is irrelevant,
	// search and scroll re-sort deterministically.
	points map[string]vectordb.Point
}

// NewBackend returns an empty simulation backend.
func NewBackend() *Backend {
	return &Backend{collections: make(map[string]*collection)}
}

// WithLatency injects base + [0, jitter) of artificial delay before every
// operation.
func (b *Backend) WithLatency(base, jitter time.Duration) *Backend {
	b.latencyBase = base
	b.latencyJitter = jitter
	return b
}

// CreateCollection registers a collection schema. Upserts into it validate
// dense vector dimension against dim.
func (b *Backend) CreateCollection(name string, dim uint64, distance vectordb.Distance) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.collections[name] = &collection{
		dim:      dim,
		distance: distance,
		points:   make(map[string]vectordb.Point),
	}
}

// delay sleeps for the configured artificial latency, honoring context
// cancellation so timeout paths behave like a real transport.
func (b *Backend) delay(ctx context.Context) error {
	if b.latencyBase == 0 && b.latencyJitter == 0 {
		return ctx.Err()
	}
	d := b.latencyBase
	if b.latencyJitter > 0 {
		d += time.Duration(rand.Int63n(int64(b.latencyJitter)))
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", vectordb.ErrTransport, ctx.Err())
	}
}

func (b *Backend) getCollection(name string) (*collection, error) {
	c, ok := b.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: collection %q", vectordb.ErrNotFound, name)
	}
	return c, nil
}

// Search scores every point matching the filter against the query vector,
// sorts by descending score (ties by ascending id), applies the score
// threshold and truncates to limit.
func (b *Backend) Search(ctx context.Context, req vectordb.SearchRequest) ([]vectordb.ScoredPoint, error) {
	if err := b.delay(ctx); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	c, err := b.getCollection(req.CollectionName)
	if err != nil {
		return nil, err
	}

	scored := make([]vectordb.ScoredPoint, 0)
	for _, p := range c.points {
		if !matchesFilter(p, req.Filter) {
			continue
		}
		score, ok := scorePoint(c.distance, req, p)
		if !ok {
			continue
		}
		if req.ScoreThreshold != nil && score < *req.ScoreThreshold {
			continue
		}
		sp := vectordb.ScoredPoint{ID: p.ID, Score: score}
		if req.WithPayload {
			sp.Payload = p.Payload
		}
		if req.WithVectors {
			sp.Vector = denseOf(p.Vectors, req.Using)
		}
		scored = append(scored, sp)
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ID.Key() < scored[j].ID.Key()
	})

	if req.Offset > 0 {
		if req.Offset >= uint64(len(scored)) {
			return []vectordb.ScoredPoint{}, nil
		}
		scored = scored[req.Offset:]
	}
	if uint64(len(scored)) > req.Limit {
		scored = scored[:req.Limit]
	}
	return scored, nil
}

// SearchBatch runs each request sequentially under one lock acquisition
// per request; the simulation has no round-trip cost to amortize.
func (b *Backend) SearchBatch(ctx context.Context, reqs []vectordb.SearchRequest) ([][]vectordb.ScoredPoint, error) {
	results := make([][]vectordb.ScoredPoint, 0, len(reqs))
	for i, req := range reqs {
		res, err := b.Search(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("request [%d]: %w", i, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// Upsert inserts or replaces points, validating dense vector dimensions
// against the collection schema.
func (b *Backend) Upsert(ctx context.Context, collectionName string, points []vectordb.Point) error {
	if err := b.delay(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	c, err := b.getCollection(collectionName)
	if err != nil {
		return err
	}
	for _, p := range points {
		if p.ID.IsZero() {
			return fmt.Errorf("%w: point without id", vectordb.ErrConflictingCondition)
		}
		if len(p.Vectors.Dense) > 0 && uint64(len(p.Vectors.Dense)) != c.dim {
			return fmt.Errorf("%w: point %s has dimension %d, collection %q expects %d",
				vectordb.ErrDimensionMismatch, p.ID, len(p.Vectors.Dense), collectionName, c.dim)
		}
	}
	for _, p := range points {
		c.points[p.ID.Key()] = p
	}
	return nil
}

// Get fetches points by id, omitting absent ids.
func (b *Backend) Get(ctx context.Context, collectionName string, ids []vectordb.PointID, withPayload, withVectors bool) ([]vectordb.Point, error) {
	if err := b.delay(ctx); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	c, err := b.getCollection(collectionName)
	if err != nil {
		return nil, err
	}
	out := make([]vectordb.Point, 0, len(ids))
	for _, id := range ids {
		p, ok := c.points[id.Key()]
		if !ok {
			continue
		}
		got := vectordb.Point{ID: p.ID}
		if withPayload {
			got.Payload = p.Payload
		}
		if withVectors {
			got.Vectors = p.Vectors
		}
		out = append(out, got)
	}
	return out, nil
}

// Scroll returns points matching the filter, ordered by the requested
// payload field (ascending id when no order is given), honoring offset and
// limit.
func (b *Backend) Scroll(ctx context.Context, req vectordb.ScrollRequest) ([]vectordb.Point, error) {
	if err := b.delay(ctx); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	c, err := b.getCollection(req.CollectionName)
	if err != nil {
		return nil, err
	}

	matched := make([]vectordb.Point, 0)
	for _, p := range c.points {
		if matchesFilter(p, req.Filter) {
			matched = append(matched, p)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if req.OrderBy != nil {
			vi, iok := payloadNumber(matched[i].Payload, req.OrderBy.Key)
			vj, jok := payloadNumber(matched[j].Payload, req.OrderBy.Key)
			if iok && jok && vi != vj {
				if req.OrderBy.Ascending {
					return vi < vj
				}
				return vi > vj
			}
		}
		return matched[i].ID.Key() < matched[j].ID.Key()
	})

	if req.Offset > 0 {
		if req.Offset >= uint64(len(matched)) {
			return []vectordb.Point{}, nil
		}
		matched = matched[req.Offset:]
	}
	if req.Limit > 0 && uint64(len(matched)) > req.Limit {
		matched = matched[:req.Limit]
	}

	out := make([]vectordb.Point, 0, len(matched))
	for _, p := range matched {
		got := vectordb.Point{ID: p.ID}
		if req.WithPayload {
			got.Payload = p.Payload
		}
		if req.WithVectors {
			got.Vectors = p.Vectors
		}
		out = append(out, got)
	}
	return out, nil
}

// Count returns the number of points matching the filter.
func (b *Backend) Count(ctx context.Context, collectionName string, filter *vectordb.Filter) (uint64, error) {
	if err := b.delay(ctx); err != nil {
		return 0, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	c, err := b.getCollection(collectionName)
	if err != nil {
		return 0, err
	}
	var n uint64
	for _, p := range c.points {
		if matchesFilter(p, filter) {
			n++
		}
	}
	return n, nil
}

// Delete removes points matching the filter or the explicit id list.
func (b *Backend) Delete(ctx context.Context, collectionName string, filter *vectordb.Filter, ids []vectordb.PointID) error {
	if err := b.delay(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	c, err := b.getCollection(collectionName)
	if err != nil {
		return err
	}
	for _, id := range ids {
		delete(c.points, id.Key())
	}
	if filter != nil {
		for key, p := range c.points {
			if matchesFilter(p, filter) {
				delete(c.points, key)
			}
		}
	}
	return nil
}

// Collection returns the registered schema plus live point counts.
func (b *Backend) Collection(ctx context.Context, name string) (*vectordb.Collection, error) {
	if err := b.delay(ctx); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	c, err := b.getCollection(name)
	if err != nil {
		return nil, err
	}
	return &vectordb.Collection{
		Name:        name,
		Status:      "Green",
		VectorSize:  c.dim,
		Distance:    c.distance,
		PointCount:  uint64(len(c.points)),
		VectorCount: uint64(len(c.points)),
	}, nil
}

// scorePoint scores one stored point against the query. Sparse queries use
// the dot product over shared indices; dense queries use the collection
// metric through the same kernels as the multi-stage re-ranker.
func scorePoint(metric vectordb.Distance, req vectordb.SearchRequest, p vectordb.Point) (float32, bool) {
	if sparse := req.Vector.Sparse; sparse != nil {
		stored := p.Vectors.Sparse
		if stored == nil {
			return 0, false
		}
		return sparseDot(*sparse, *stored), true
	}

	query := req.Vector.Dense
	if len(query) == 0 && req.Using != "" {
		query = req.Vector.Named[req.Using]
	}
	stored := denseOf(p.Vectors, req.Using)
	if len(query) == 0 || len(stored) != len(query) {
		return 0, false
	}
	return search.ScoreByDistance(metric, query, stored), true
}

func denseOf(v vectordb.Vector, using string) []float32 {
	if using != "" {
		return v.Named[using]
	}
	return v.Dense
}

// sparseDot multiplies matching indices of two sparse vectors.
func sparseDot(a, b vectordb.SparseVector) float32 {
	values := make(map[uint32]float32, len(a.Indices))
	for i, idx := range a.Indices {
		values[idx] = a.Values[i]
	}
	var sum float32
	for i, idx := range b.Indices {
		if v, ok := values[idx]; ok {
			sum += v * b.Values[i]
		}
	}
	return sum
}
