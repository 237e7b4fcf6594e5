package batcher

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/fx"
	"golang.org/x/sync/semaphore"

	"github.com/arcadialab/vecengine/v1/logger"
	"github.com/arcadialab/vecengine/v1/observability"
	"github.com/arcadialab/vecengine/v1/vectordb"
)

const component = "batcher"

// Batcher ingests large point sets with a dynamically tuned batch size and
// bounded parallelism. The batch size starts at the midpoint of
// [MinBatchSize, MaxBatchSize] and adapts after every completed batch
// based on a rolling window of recent outcomes.
type Batcher struct {
	backend  vectordb.Backend
	cfg      Config
	log      *logger.Logger
	observer observability.Observer

	// mu guards the rolling window and current size; concurrent batch
	// completions serialize their updates here.
	mu     sync.Mutex
	window []bool
	size   int
}

// Params collects the batcher's dependencies.
type Params struct {
	fx.In

	Backend  vectordb.Backend
	Config   Config                 `optional:"true"`
	Logger   *logger.Logger         `optional:"true"`
	Observer observability.Observer `optional:"true"`
}

// NewBatcher constructs an adaptive batcher over the given backend.
func NewBatcher(p Params) (*Batcher, error) {
	if p.Backend == nil {
		return nil, fmt.Errorf("batcher: backend is required")
	}
	if p.Logger == nil {
		p.Logger = logger.NewNoop()
	}
	if p.Observer == nil {
		p.Observer = observability.NoopObserver{}
	}
	cfg := p.Config.withDefaults()
	return &Batcher{
		backend:  p.Backend,
		cfg:      cfg,
		log:      p.Logger,
		observer: p.Observer,
		window:   make([]bool, 0, cfg.WindowSize),
		size:     (cfg.MinBatchSize + cfg.MaxBatchSize) / 2,
	}, nil
}

// BatchSize returns the current adaptive batch size.
func (b *Batcher) BatchSize() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// recordOutcome pushes one batch outcome into the rolling window (evicting
// the oldest when full) and adjusts the batch size: grow 20% at a success
// rate of 0.95 or better, shrink 20% below 0.80, otherwise unchanged.
func (b *Batcher) recordOutcome(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.window) == b.cfg.WindowSize {
		b.window = b.window[1:]
	}
	b.window = append(b.window, ok)

	succeeded := 0
	for _, outcome := range b.window {
		if outcome {
			succeeded++
		}
	}
	rate := float64(succeeded) / float64(len(b.window))

	switch {
	case rate >= growThreshold && b.size < b.cfg.MaxBatchSize:
		b.size = int(float64(b.size) * growthFactor)
		if b.size > b.cfg.MaxBatchSize {
			b.size = b.cfg.MaxBatchSize
		}
	case rate < shrinkThreshold && b.size > b.cfg.MinBatchSize:
		b.size = int(float64(b.size) * shrinkFactor)
		if b.size < b.cfg.MinBatchSize {
			b.size = b.cfg.MinBatchSize
		}
	}
}

// BatchFailure reports one failed chunk for targeted re-submission.
type BatchFailure struct {
	// Index is the chunk's position in the original chunk sequence.
	Index int

	// Points are the chunk's points, unmodified.
	Points []vectordb.Point

	// Err is the upsert failure.
	Err error
}

// Report aggregates an UpsertParallel run. Failures are data, not errors:
// one failed chunk never aborts or hides its siblings.
type Report struct {
	// TotalPoints is the number of points submitted.
	TotalPoints int

	// SucceededBatches counts chunks that upserted cleanly.
	SucceededBatches int

	// FailedBatches lists failed chunks ordered by chunk index.
	FailedBatches []BatchFailure
}

// chunkPoints splits points into consecutive chunks of at most size
// elements. Flattening the result reproduces the input exactly: same
// cardinality, same identity, same relative order.
func chunkPoints(points []vectordb.Point, size int) [][]vectordb.Point {
	if size <= 0 || len(points) == 0 {
		return nil
	}
	chunks := make([][]vectordb.Point, 0, (len(points)+size-1)/size)
	for start := 0; start < len(points); start += size {
		end := start + size
		if end > len(points) {
			end = len(points)
		}
		chunks = append(chunks, points[start:end])
	}
	return chunks
}

// UpsertParallel splits points into chunks of the current batch size and
// submits up to Concurrency chunks at once. Each chunk's outcome feeds the
// adaptive window. The returned Report is always non-nil on a nil error;
// per-chunk failures are isolated and reported as data.
func (b *Batcher) UpsertParallel(ctx context.Context, collection string, points []vectordb.Point) (report *Report, err error) {
	start := time.Now()
	defer func() {
		count := 0
		if report != nil {
			count = report.TotalPoints
		}
		b.observer.ObserveOperation(ctx, observability.OperationContext{
			Component:   component,
			Operation:   "upsert_parallel",
			Collection:  collection,
			Duration:    time.Since(start),
			ResultCount: count,
			Error:       err,
		})
	}()

	if len(points) == 0 {
		return &Report{}, nil
	}

	chunks := chunkPoints(points, b.BatchSize())
	sem := semaphore.NewWeighted(int64(b.cfg.Concurrency))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []BatchFailure
		ok       int
	)

	for i, chunk := range chunks {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled mid-submission; chunks not yet started
			// are reported as failed with the cancellation cause.
			mu.Lock()
			for j := i; j < len(chunks); j++ {
				failures = append(failures, BatchFailure{Index: j, Points: chunks[j], Err: err})
			}
			mu.Unlock()
			break
		}

		wg.Add(1)
		go func(index int, batch []vectordb.Point) {
			defer wg.Done()
			defer sem.Release(1)

			upsertErr := b.backend.Upsert(ctx, collection, batch)
			b.recordOutcome(upsertErr == nil)

			mu.Lock()
			defer mu.Unlock()
			if upsertErr != nil {
				b.log.Warn("batch upsert failed", upsertErr, map[string]interface{}{
					"collection":  collection,
					"batch_index": index,
					"batch_size":  len(batch),
				})
				failures = append(failures, BatchFailure{Index: index, Points: batch, Err: upsertErr})
				return
			}
			ok++
		}(i, chunk)
	}

	wg.Wait()

	sort.Slice(failures, func(i, j int) bool { return failures[i].Index < failures[j].Index })

	return &Report{
		TotalPoints:      len(points),
		SucceededBatches: ok,
		FailedBatches:    failures,
	}, nil
}
