package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewPoolDefaultSize(t *testing.T) {
	if got := NewPool(0).Stats().Size; got != DefaultPoolSize {
		t.Errorf("size = %d, want %d", got, DefaultPoolSize)
	}
	if got := NewPool(3).Stats().Size; got != 3 {
		t.Errorf("size = %d, want 3", got)
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	pool := NewPool(2)
	var running, peak int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pool.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			defer pool.Release()

			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
		}()
	}
	wg.Wait()

	if peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
	st := pool.Stats()
	if st.TotalAcquired != 8 || st.TotalReleased != 8 || st.InUse != 0 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestPoolAcquireHonorsContext(t *testing.T) {
	pool := NewPool(1)
	if err := pool.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer pool.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := pool.Acquire(ctx); err == nil {
		t.Error("expected Acquire on a full pool to fail when the context expires")
	}
}
