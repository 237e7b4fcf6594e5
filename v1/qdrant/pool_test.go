package qdrant

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	qdrant "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/arcadialab/vecengine/v1/logger"
	"github.com/arcadialab/vecengine/v1/observability"
	"github.com/arcadialab/vecengine/v1/vectordb"
)

// lazyDial returns handles that never touch the network: the SDK dials
// lazily and the compatibility probe is skipped, so pool mechanics are
// testable without a server.
func lazyDial(counter *atomic.Int32) dialFn {
	return func(ctx context.Context) (*qdrant.Client, error) {
		if counter != nil {
			counter.Add(1)
		}
		return qdrant.NewClient(&qdrant.Config{
			Host:                   "localhost",
			Port:                   1,
			SkipCompatibilityCheck: true,
		})
	}
}

func newTestPool(t *testing.T, size int, dials *atomic.Int32) *pool {
	t.Helper()
	p, err := newPool(context.Background(), size, lazyDial(dials), logger.NewNoop())
	require.NoError(t, err)
	t.Cleanup(p.closeSlots)
	return p
}

func TestPool_RoundRobin(t *testing.T) {
	p := newTestPool(t, 3, nil)

	var indices []int
	for i := 0; i < 6; i++ {
		_, idx := p.acquire()
		indices = append(indices, idx)
	}
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2}, indices)
}

func TestPool_RejectsNonPositiveSize(t *testing.T) {
	_, err := newPool(context.Background(), 0, lazyDial(nil), logger.NewNoop())
	assert.Error(t, err)
}

func TestPool_ReplaceSwapsHandle(t *testing.T) {
	var dials atomic.Int32
	p := newTestPool(t, 2, &dials)
	require.Equal(t, int32(2), dials.Load())

	before := p.clientAt(1)
	p.markUnhealthy(1)
	require.NoError(t, p.replace(context.Background(), 1))

	assert.Equal(t, int32(3), dials.Load())
	assert.NotSame(t, before, p.clientAt(1))
	assert.True(t, p.slots[1].healthy.Load())
}

func TestPool_ReconnectUnhealthyOnlyTouchesFlagged(t *testing.T) {
	var dials atomic.Int32
	p := newTestPool(t, 3, &dials)
	healthy := p.clientAt(0)

	p.markUnhealthy(2)
	p.ReconnectUnhealthy(context.Background())

	assert.Equal(t, int32(4), dials.Load(), "only the flagged slot redials")
	assert.Same(t, healthy, p.clientAt(0))
	assert.True(t, p.slots[2].healthy.Load())
}

func TestPool_ReconnectFailureIsSwallowed(t *testing.T) {
	dialErr := errors.New("dial refused")
	failing := func(ctx context.Context) (*qdrant.Client, error) {
		return nil, dialErr
	}

	p := newTestPool(t, 1, nil)
	p.dial = failing
	p.markUnhealthy(0)

	// Must not panic or propagate; the slot stays flagged for the next pass.
	p.ReconnectUnhealthy(context.Background())
	assert.False(t, p.slots[0].healthy.Load())
}

// newTestClient wires a Client around a lazy pool so executeWithReconnect
// can be exercised with canned RPC outcomes.
func newTestClient(t *testing.T, poolSize int, dials *atomic.Int32) *Client {
	t.Helper()
	return &Client{
		pool:     newTestPool(t, poolSize, dials),
		cfg:      DefaultConfig(),
		log:      logger.NewNoop(),
		observer: observability.NoopObserver{},
	}
}

func TestExecuteWithReconnect_RetriesOnceOnTransport(t *testing.T) {
	var dials atomic.Int32
	c := newTestClient(t, 1, &dials)

	calls := 0
	err := c.executeWithReconnect(context.Background(), "search", func(ctx context.Context, api *qdrant.Client) error {
		calls++
		if calls == 1 {
			return status.Error(codes.Unavailable, "connection reset")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls, "one retry after the transport failure")
	assert.Equal(t, int32(2), dials.Load(), "slot redialed before the retry")
}

func TestExecuteWithReconnect_SecondFailurePropagates(t *testing.T) {
	c := newTestClient(t, 1, nil)

	calls := 0
	err := c.executeWithReconnect(context.Background(), "search", func(ctx context.Context, api *qdrant.Client) error {
		calls++
		return status.Error(codes.Unavailable, "still down")
	})

	assert.Equal(t, 2, calls)
	assert.True(t, vectordb.IsTransport(err))
}

func TestExecuteWithReconnect_NonTransportNotRetried(t *testing.T) {
	var dials atomic.Int32
	c := newTestClient(t, 1, &dials)

	calls := 0
	err := c.executeWithReconnect(context.Background(), "get", func(ctx context.Context, api *qdrant.Client) error {
		calls++
		return status.Error(codes.NotFound, "no such collection")
	})

	assert.Equal(t, 1, calls, "validation-class errors never retry")
	assert.True(t, vectordb.IsNotFound(err))
	assert.Equal(t, int32(1), dials.Load(), "no redial")
}

func TestExecuteWithReconnect_RedialFailureReturnsOriginalError(t *testing.T) {
	c := newTestClient(t, 1, nil)
	transportCause := status.Error(codes.Unavailable, "broken pipe")
	c.pool.dial = func(ctx context.Context) (*qdrant.Client, error) {
		return nil, errors.New("dial refused")
	}

	calls := 0
	err := c.executeWithReconnect(context.Background(), "upsert", func(ctx context.Context, api *qdrant.Client) error {
		calls++
		return transportCause
	})

	assert.Equal(t, 1, calls, "no retry when the redial itself fails")
	assert.True(t, vectordb.IsTransport(err))
	assert.ErrorContains(t, err, "broken pipe")
}

func TestExecuteWithReconnect_AppliesTimeout(t *testing.T) {
	c := newTestClient(t, 1, nil)
	c.cfg.Timeout = 10 * time.Millisecond

	var deadlineSet bool
	err := c.executeWithReconnect(context.Background(), "count", func(ctx context.Context, api *qdrant.Client) error {
		_, deadlineSet = ctx.Deadline()
		return nil
	})

	require.NoError(t, err)
	assert.True(t, deadlineSet, "per-operation deadline must be set")
}

func TestStaticCredentials(t *testing.T) {
	token, err := StaticCredentials("secret").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "secret", token)
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := (&Config{Endpoint: "qdrant.internal"}).withDefaults()
	assert.Equal(t, "qdrant.internal", cfg.Endpoint)
	assert.Equal(t, 6334, cfg.Port)
	assert.Equal(t, 4, cfg.PoolSize)
	assert.NotZero(t, cfg.Timeout)

	var nilCfg *Config
	def := nilCfg.withDefaults()
	assert.Equal(t, "localhost", def.Endpoint)
}
