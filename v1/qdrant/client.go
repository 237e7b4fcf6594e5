package qdrant

import (
	"context"
	"fmt"
	"slices"
	"time"

	qdrant "github.com/qdrant/go-client/qdrant"

	"github.com/arcadialab/vecengine/v1/logger"
	"github.com/arcadialab/vecengine/v1/observability"
	"github.com/arcadialab/vecengine/v1/vectordb"
)

//
// ──────────────────────────────────────────────────────────────
//   QDRANT CLIENT
// ──────────────────────────────────────────────────────────────
//
// The live vectordb.Backend over the official Qdrant Go client. Every
// operation rotates over the connection pool and runs through a single
// reconnect wrapper: a transport-classified failure flags the slot,
// redials it once, and retries on the fresh handle. Anything else
// (validation, not-found, rate limiting) propagates immediately.
//

const component = "qdrant"

// Client is a pooled Qdrant backend. It satisfies vectordb.Backend and is
// safe for concurrent use.
type Client struct {
	pool     *pool
	cfg      *Config
	log      *logger.Logger
	observer observability.Observer

	repairCancel context.CancelFunc
	repairDone   chan struct{}
}

// Params collects the client's dependencies. Everything except the config
// endpoint has a usable default.
type Params struct {
	Config      *Config
	Logger      *logger.Logger
	Observer    observability.Observer
	Credentials CredentialsProvider
}

// NewClient dials the connection pool and verifies connectivity with an
// initial health pass. Construction fails when every slot probes unhealthy,
// so a misconfigured endpoint surfaces at startup rather than on the first
// query.
func NewClient(ctx context.Context, p Params) (*Client, error) {
	cfg := p.Config.withDefaults()
	log := p.Logger
	if log == nil {
		log = logger.NewNoop()
	}
	observer := p.Observer
	if observer == nil {
		observer = observability.NoopObserver{}
	}

	dial := newDialFn(cfg, p.Credentials)
	pool, err := newPool(ctx, cfg.PoolSize, dial, log)
	if err != nil {
		return nil, err
	}

	c := &Client{pool: pool, cfg: cfg, log: log, observer: observer}

	statuses := pool.HealthCheckAll(ctx, cfg.ConnectTimeout)
	healthy := 0
	for _, s := range statuses {
		if s.Healthy {
			healthy++
		}
	}
	if healthy == 0 {
		pool.closeSlots()
		return nil, fmt.Errorf("qdrant: no healthy connection to %s:%d: %w",
			cfg.Endpoint, cfg.Port, statuses[0].Err)
	}

	log.Info("connected", nil, map[string]interface{}{
		"endpoint":  cfg.Endpoint,
		"port":      cfg.Port,
		"pool_size": pool.size(),
		"healthy":   healthy,
	})
	return c, nil
}

// newDialFn builds the pool's dial function from the config and an optional
// credentials provider. The provider wins over the static API key.
func newDialFn(cfg *Config, creds CredentialsProvider) dialFn {
	return func(ctx context.Context) (*qdrant.Client, error) {
		apiKey := cfg.APIKey
		if creds != nil {
			token, err := creds.Token(ctx)
			if err != nil {
				return nil, fmt.Errorf("qdrant: resolving credentials: %w", err)
			}
			apiKey = token
		}
		return qdrant.NewClient(&qdrant.Config{
			Host:                   cfg.Endpoint,
			Port:                   cfg.Port,
			APIKey:                 apiKey,
			UseTLS:                 cfg.UseTLS,
			SkipCompatibilityCheck: !cfg.CheckCompatibility,
		})
	}
}

// StartRepairLoop launches the background probe-and-reconnect loop. A no-op
// when HealthCheckInterval is zero. Invoked by the fx lifecycle hook;
// standalone users may call it directly after construction.
func (c *Client) StartRepairLoop() {
	if c.cfg.HealthCheckInterval <= 0 || c.repairCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.repairCancel = cancel
	c.repairDone = make(chan struct{})
	go func() {
		defer close(c.repairDone)
		c.pool.repairLoop(ctx, c.cfg.HealthCheckInterval, c.cfg.ConnectTimeout)
	}()
}

// Close stops the repair loop and releases every pooled connection.
func (c *Client) Close() error {
	if c.repairCancel != nil {
		c.repairCancel()
		<-c.repairDone
		c.repairCancel = nil
	}
	c.pool.closeSlots()
	return nil
}

// HealthCheckAll probes every pool slot and returns per-slot outcomes.
func (c *Client) HealthCheckAll(ctx context.Context) []SlotStatus {
	return c.pool.HealthCheckAll(ctx, c.cfg.ConnectTimeout)
}

// ReconnectUnhealthy redials flagged slots. Best effort; failures are
// logged, never returned.
func (c *Client) ReconnectUnhealthy(ctx context.Context) {
	c.pool.ReconnectUnhealthy(ctx)
}

func (c *Client) observe(ctx context.Context, op, collection string, start time.Time, count int, err error) {
	c.observer.ObserveOperation(ctx, observability.OperationContext{
		Component:   component,
		Operation:   op,
		Collection:  collection,
		Duration:    time.Since(start),
		ResultCount: count,
		Error:       err,
	})
}

// executeWithReconnect runs fn against the next pooled handle with the
// configured per-operation timeout. On a transport-classified failure the
// slot is redialed once and fn retried on the fresh handle; a second
// failure propagates with its cause intact. Non-transport errors are never
// retried.
func (c *Client) executeWithReconnect(ctx context.Context, op string, fn func(ctx context.Context, api *qdrant.Client) error) error {
	client, idx := c.pool.acquire()

	attempt := func(api *qdrant.Client) error {
		opCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
		return vectordb.ClassifyRPC(fn(opCtx, api))
	}

	err := attempt(client)
	if err == nil || !vectordb.IsTransport(err) {
		return err
	}

	c.pool.markUnhealthy(idx)
	c.log.Warn("transport failure, reconnecting slot", err, map[string]interface{}{
		"operation": op,
		"slot":      idx,
	})
	if rerr := c.pool.replace(ctx, idx); rerr != nil {
		// Redial failed; the background loop retries later. Surface the
		// original transport error, not the dial error.
		c.log.Warn("slot redial failed", rerr, map[string]interface{}{
			"operation": op,
			"slot":      idx,
		})
		return err
	}

	return attempt(c.pool.clientAt(idx))
}

// ── vectordb.Backend ─────────────────────────────────────────────────────────

// Search runs one similarity query.
func (c *Client) Search(ctx context.Context, req vectordb.SearchRequest) (results []vectordb.ScoredPoint, err error) {
	start := time.Now()
	defer func() { c.observe(ctx, "search", req.CollectionName, start, len(results), err) }()

	query, err := toQueryPoints(req)
	if err != nil {
		return nil, err
	}
	err = c.executeWithReconnect(ctx, "search", func(ctx context.Context, api *qdrant.Client) error {
		resp, qerr := api.Query(ctx, query)
		if qerr != nil {
			return qerr
		}
		results, qerr = fromScoredPoints(resp, req.Using)
		return qerr
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// SearchBatch sends every query in one round trip and returns one result
// list per request, in request order.
func (c *Client) SearchBatch(ctx context.Context, reqs []vectordb.SearchRequest) (results [][]vectordb.ScoredPoint, err error) {
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
		c.observe(ctx, "search_batch", collection, start, total, err)
	}()

	queries := make([]*qdrant.QueryPoints, 0, len(reqs))
	for i, req := range reqs {
		q, qerr := toQueryPoints(req)
		if qerr != nil {
			return nil, fmt.Errorf("request [%d]: %w", i, qerr)
		}
		queries = append(queries, q)
	}

	batch := &qdrant.QueryBatchPoints{
		CollectionName: collection,
		QueryPoints:    queries,
	}
	err = c.executeWithReconnect(ctx, "search_batch", func(ctx context.Context, api *qdrant.Client) error {
		resp, qerr := api.QueryBatch(ctx, batch)
		if qerr != nil {
			return qerr
		}
		out := make([][]vectordb.ScoredPoint, len(resp))
		for i, r := range resp {
			out[i], qerr = fromScoredPoints(r.Result, reqs[i].Using)
			if qerr != nil {
				return qerr
			}
		}
		results = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Upsert inserts or replaces points, waiting for the write to be applied.
func (c *Client) Upsert(ctx context.Context, collection string, points []vectordb.Point) (err error) {
	start := time.Now()
	defer func() { c.observe(ctx, "upsert", collection, start, len(points), err) }()

	if len(points) == 0 {
		return nil
	}
	structs := toPointStructs(points)
	wait := true
	req := &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         structs,
		Wait:           &wait,
	}
	return c.executeWithReconnect(ctx, "upsert", func(ctx context.Context, api *qdrant.Client) error {
		_, uerr := api.Upsert(ctx, req)
		return uerr
	})
}

// Get fetches points by id. Absent ids are omitted from the result.
func (c *Client) Get(ctx context.Context, collection string, ids []vectordb.PointID, withPayload, withVectors bool) (points []vectordb.Point, err error) {
	start := time.Now()
	defer func() { c.observe(ctx, "get", collection, start, len(points), err) }()

	if len(ids) == 0 {
		return nil, nil
	}
	req := &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            toPointIDs(ids),
		WithPayload:    qdrant.NewWithPayload(withPayload),
		WithVectors:    withVectorsSelector(withVectors),
	}
	err = c.executeWithReconnect(ctx, "get", func(ctx context.Context, api *qdrant.Client) error {
		resp, gerr := api.Get(ctx, req)
		if gerr != nil {
			return gerr
		}
		points, gerr = fromRetrievedPoints(resp)
		return gerr
	})
	if err != nil {
		return nil, err
	}
	return points, nil
}

// Scroll pages through points matching a filter, optionally ordered by a
// payload field.
func (c *Client) Scroll(ctx context.Context, req vectordb.ScrollRequest) (points []vectordb.Point, err error) {
	start := time.Now()
	defer func() { c.observe(ctx, "scroll", req.CollectionName, start, len(points), err) }()

	scroll := toScrollPoints(req)
	err = c.executeWithReconnect(ctx, "scroll", func(ctx context.Context, api *qdrant.Client) error {
		resp, serr := api.Scroll(ctx, scroll)
		if serr != nil {
			return serr
		}
		points, serr = fromRetrievedPoints(resp)
		return serr
	})
	if err != nil {
		return nil, err
	}
	return points, nil
}

// Count returns the exact number of points matching the filter.
func (c *Client) Count(ctx context.Context, collection string, filter *vectordb.Filter) (count uint64, err error) {
	start := time.Now()
	defer func() { c.observe(ctx, "count", collection, start, int(count), err) }()

	exact := true
	req := &qdrant.CountPoints{
		CollectionName: collection,
		Filter:         toFilter(filter),
		Exact:          &exact,
	}
	err = c.executeWithReconnect(ctx, "count", func(ctx context.Context, api *qdrant.Client) error {
		n, cerr := api.Count(ctx, req)
		if cerr != nil {
			return cerr
		}
		count = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Delete removes points matching the filter or the explicit id list. When
// both are given, two selectors are issued.
func (c *Client) Delete(ctx context.Context, collection string, filter *vectordb.Filter, ids []vectordb.PointID) (err error) {
	start := time.Now()
	defer func() { c.observe(ctx, "delete", collection, start, len(ids), err) }()

	var selectors []*qdrant.PointsSelector
	if len(ids) > 0 {
		selectors = append(selectors, &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: toPointIDs(ids)},
			},
		})
	}
	if filter != nil {
		selectors = append(selectors, &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: toFilter(filter),
			},
		})
	}
	if len(selectors) == 0 {
		return nil
	}

	wait := true
	for _, selector := range selectors {
		req := &qdrant.DeletePoints{
			CollectionName: collection,
			Points:         selector,
			Wait:           &wait,
		}
		err = c.executeWithReconnect(ctx, "delete", func(ctx context.Context, api *qdrant.Client) error {
			_, derr := api.Delete(ctx, req)
			return derr
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Collection returns metadata for a collection, including its vector
// dimension and distance metric.
func (c *Client) Collection(ctx context.Context, name string) (collection *vectordb.Collection, err error) {
	start := time.Now()
	defer func() { c.observe(ctx, "collection", name, start, 0, err) }()

	if name == "" {
		return nil, fmt.Errorf("qdrant: collection name cannot be empty")
	}
	err = c.executeWithReconnect(ctx, "collection", func(ctx context.Context, api *qdrant.Client) error {
		info, gerr := api.GetCollectionInfo(ctx, name)
		if gerr != nil {
			return gerr
		}
		collection = fromCollectionInfo(name, info)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return collection, nil
}

// ── Collection management ────────────────────────────────────────────────────

// EnsureCollection creates a collection when absent. Safe to call
// repeatedly; an existing collection returns early.
func (c *Client) EnsureCollection(ctx context.Context, name string, vectorSize uint64, distance vectordb.Distance) error {
	if name == "" {
		return fmt.Errorf("qdrant: collection name cannot be empty")
	}

	var names []string
	err := c.executeWithReconnect(ctx, "list_collections", func(ctx context.Context, api *qdrant.Client) error {
		list, lerr := api.ListCollections(ctx)
		if lerr != nil {
			return lerr
		}
		names = list
		return nil
	})
	if err != nil {
		return err
	}
	if slices.Contains(names, name) {
		return nil
	}

	req := &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: toDistance(distance),
		}),
	}
	err = c.executeWithReconnect(ctx, "create_collection", func(ctx context.Context, api *qdrant.Client) error {
		return api.CreateCollection(ctx, req)
	})
	if err != nil {
		return err
	}
	c.log.Info("collection created", nil, map[string]interface{}{
		"collection":  name,
		"vector_size": vectorSize,
		"distance":    string(distance),
	})
	return nil
}

// EnsurePayloadIndex creates a payload field index. Ordered scrolls and
// range filters over a field need one. Idempotent on the server side.
func (c *Client) EnsurePayloadIndex(ctx context.Context, collection, field string, fieldType vectordb.PayloadFieldType) error {
	if collection == "" || field == "" {
		return fmt.Errorf("qdrant: collection and field names cannot be empty")
	}
	ft := toFieldType(fieldType)
	wait := true
	req := &qdrant.CreateFieldIndexCollection{
		CollectionName: collection,
		FieldName:      field,
		FieldType:      &ft,
		Wait:           &wait,
	}
	return c.executeWithReconnect(ctx, "create_payload_index", func(ctx context.Context, api *qdrant.Client) error {
		_, ierr := api.CreateFieldIndex(ctx, req)
		return ierr
	})
}

// ListCollections returns the names of all collections.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	var names []string
	err := c.executeWithReconnect(ctx, "list_collections", func(ctx context.Context, api *qdrant.Client) error {
		list, lerr := api.ListCollections(ctx)
		if lerr != nil {
			return lerr
		}
		names = list
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}
