package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultPoolSize is used when no worker count is configured.
	DefaultPoolSize = 4
	// AcquireTimeout bounds how long a region waits for a free worker.
	AcquireTimeout = 5 * time.Second
)

// Pool bounds how many detector invocations run at once. Each slot is a
// token in a buffered channel.
type Pool struct {
	slots   chan struct{}
	size    int
	metrics *PoolMetrics
}

// PoolMetrics tracks pool usage.
type PoolMetrics struct {
	mu              sync.RWMutex
	inUse           int
	totalAcquired   int64
	totalReleased   int64
	acquireFailures int64
	waitTime        time.Duration
}

// PoolStats is a snapshot of PoolMetrics.
type PoolStats struct {
	Size            int     `json:"size"`
	InUse           int     `json:"in_use"`
	TotalAcquired   int64   `json:"total_acquired"`
	TotalReleased   int64   `json:"total_released"`
	AcquireFailures int64   `json:"acquire_failures"`
	AvgWaitMillis   float64 `json:"avg_wait_ms"`
}

// NewPool creates a pool with size slots.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	p := &Pool{
		slots:   make(chan struct{}, size),
		size:    size,
		metrics: &PoolMetrics{},
	}
	for i := 0; i < size; i++ {
		p.slots <- struct{}{}
	}
	return p
}

// Acquire takes a slot, waiting at most AcquireTimeout.
func (p *Pool) Acquire(ctx context.Context) error {
	start := time.Now()
	defer func() {
		p.metrics.mu.Lock()
		p.metrics.waitTime += time.Since(start)
		p.metrics.mu.Unlock()
	}()

	timer := time.NewTimer(AcquireTimeout)
	defer timer.Stop()

	select {
	case <-p.slots:
		p.metrics.mu.Lock()
		p.metrics.inUse++
		p.metrics.totalAcquired++
		p.metrics.mu.Unlock()
		return nil
	case <-timer.C:
		p.metrics.mu.Lock()
		p.metrics.acquireFailures++
		p.metrics.mu.Unlock()
		return fmt.Errorf("timeout waiting for available worker")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot taken by Acquire.
func (p *Pool) Release() {
	p.metrics.mu.Lock()
	p.metrics.inUse--
	p.metrics.totalReleased++
	p.metrics.mu.Unlock()

	p.slots <- struct{}{}
}

// Stats returns a snapshot of the pool metrics.
func (p *Pool) Stats() PoolStats {
	p.metrics.mu.RLock()
	defer p.metrics.mu.RUnlock()

	var avg float64
	if p.metrics.totalAcquired > 0 {
		avg = float64(p.metrics.waitTime.Microseconds()) / 1000 / float64(p.metrics.totalAcquired)
	}
	return PoolStats{
		Size:            p.size,
		InUse:           p.metrics.inUse,
		TotalAcquired:   p.metrics.totalAcquired,
		TotalReleased:   p.metrics.totalReleased,
		AcquireFailures: p.metrics.acquireFailures,
		AvgWaitMillis:   avg,
	}
}
