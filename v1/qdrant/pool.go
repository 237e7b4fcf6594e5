package qdrant

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	qdrant "github.com/qdrant/go-client/qdrant"
	"golang.org/x/sync/errgroup"

	"github.com/arcadialab/vecengine/v1/logger"
)

//
// ──────────────────────────────────────────────────────────────
//   CONNECTION POOL
// ──────────────────────────────────────────────────────────────
//
// A fixed-size pool of Qdrant client handles. Requests rotate over the
// slots with an atomic round-robin counter, so slot selection never blocks
// and never consults health state. Health management is separate: probes
// mark slots unhealthy, and repair replaces the slot's handle with a fresh
// dial. Replacement swaps under a write lock, so a concurrent caller sees
// either the old handle or the new one, never a torn slot.
//

// dialFn establishes one Qdrant client handle. Injected so pool mechanics
// are testable without a live server.
type dialFn func(ctx context.Context) (*qdrant.Client, error)

// slot is one pooled client handle with its health flag.
type slot struct {
	client  *qdrant.Client
	healthy atomic.Bool
}

// SlotStatus is the outcome of one health probe.
type SlotStatus struct {
	Slot    int
	Healthy bool
	Err     error
}

type pool struct {
	mu    sync.RWMutex
	slots []*slot
	next  atomic.Uint64
	dial  dialFn
	log   *logger.Logger
}

// newPool dials size handles up front and fails fast if any dial fails.
func newPool(ctx context.Context, size int, dial dialFn, log *logger.Logger) (*pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("qdrant: pool size must be positive, got %d", size)
	}
	p := &pool{
		slots: make([]*slot, size),
		dial:  dial,
		log:   log,
	}
	for i := range p.slots {
		client, err := dial(ctx)
		if err != nil {
			p.closeSlots()
			return nil, fmt.Errorf("qdrant: dialing pool slot %d: %w", i, err)
		}
		s := &slot{client: client}
		s.healthy.Store(true)
		p.slots[i] = s
	}
	return p, nil
}

// acquire returns the next slot in round-robin order along with its index.
// Selection ignores health: an unhealthy slot is still usable until repair
// swaps it, and the retry path handles the failure either way.
func (p *pool) acquire() (*qdrant.Client, int) {
	idx := int(p.next.Add(1)-1) % len(p.slots)
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.slots[idx].client, idx
}

// clientAt returns the current handle of a slot.
func (p *pool) clientAt(idx int) *qdrant.Client {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.slots[idx].client
}

// markUnhealthy flags a slot for the next repair pass.
func (p *pool) markUnhealthy(idx int) {
	p.slots[idx].healthy.Store(false)
}

// replace redials a slot and swaps its handle in. The old handle is closed
// after the swap, outside the lock.
func (p *pool) replace(ctx context.Context, idx int) error {
	client, err := p.dial(ctx)
	if err != nil {
		return fmt.Errorf("qdrant: redialing slot %d: %w", idx, err)
	}

	p.mu.Lock()
	old := p.slots[idx].client
	p.slots[idx].client = client
	p.slots[idx].healthy.Store(true)
	p.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

// HealthCheckAll probes every slot concurrently and returns one status per
// slot, indexed by slot position. Probe outcomes update the slots' health
// flags. All probes are joined before return.
func (p *pool) HealthCheckAll(ctx context.Context, timeout time.Duration) []SlotStatus {
	statuses := make([]SlotStatus, len(p.slots))
	g, ctx := errgroup.WithContext(ctx)

	for i := range p.slots {
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			client := p.clientAt(i)
			_, err := client.HealthCheck(probeCtx)
			p.slots[i].healthy.Store(err == nil)
			statuses[i] = SlotStatus{Slot: i, Healthy: err == nil, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return statuses
}

// ReconnectUnhealthy redials every slot currently flagged unhealthy. Repair
// is best effort: a failed redial is logged at Warn and left for the next
// pass, never propagated to callers.
func (p *pool) ReconnectUnhealthy(ctx context.Context) {
	for i := range p.slots {
		if p.slots[i].healthy.Load() {
			continue
		}
		if err := p.replace(ctx, i); err != nil {
			p.log.Warn("slot reconnect failed", err, map[string]interface{}{
				"slot": i,
			})
			continue
		}
		p.log.Info("slot reconnected", nil, map[string]interface{}{
			"slot": i,
		})
	}
}

// repairLoop runs periodic probe-and-reconnect passes until the context is
// canceled. Started by the fx lifecycle when HealthCheckInterval > 0.
func (p *pool) repairLoop(ctx context.Context, interval, probeTimeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.HealthCheckAll(ctx, probeTimeout)
			p.ReconnectUnhealthy(ctx)
		}
	}
}

// size returns the number of slots.
func (p *pool) size() int {
	return len(p.slots)
}

// closeSlots closes every dialed handle. Used on construction failure and
// shutdown.
func (p *pool) closeSlots() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.slots {
		if s != nil && s.client != nil {
			_ = s.client.Close()
		}
	}
}
