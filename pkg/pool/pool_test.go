package pool_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/herohde/gauntlet/pkg/pool"
)

func TestAllSubmittedTasksRun(t *testing.T) {
	p := pool.New(4)
	p.Start(context.Background())

	var count int64
	const n = 50
	for i := 0; i < n; i++ {
		p.Submit(func(ctx context.Context) {
			atomic.AddInt64(&count, 1)
		})
	}
	p.Wait()

	assert.Equal(t, int64(n), atomic.LoadInt64(&count))
}

func TestNewClampsConcurrencyToOne(t *testing.T) {
	p := pool.New(0)
	p.Start(context.Background())
	defer p.Stop()

	done := make(chan struct{})
	p.Submit(func(ctx context.Context) { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}

func TestStopPreventsFurtherTasksFromRunning(t *testing.T) {
	p := pool.New(1)
	p.Start(context.Background())

	blocking := make(chan struct{})
	p.Submit(func(ctx context.Context) { <-blocking })

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(blocking)
	}()
	p.Stop()

	var ran atomic.Bool
	p.Submit(func(ctx context.Context) { ran.Store(true) })

	time.Sleep(20 * time.Millisecond)
	assert.False(t, ran.Load())
}

func TestWaitReturnsAfterAllTasksFinishConcurrently(t *testing.T) {
	p := pool.New(8)
	p.Start(context.Background())
	defer p.Stop()

	var running int32
	var maxObserved int32
	for i := 0; i < 8; i++ {
		p.Submit(func(ctx context.Context) {
			n := atomic.AddInt32(&running, 1)
			for {
				m := atomic.LoadInt32(&maxObserved)
				if n <= m || atomic.CompareAndSwapInt32(&maxObserved, m, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&running, -1)
		})
	}
	p.Wait()

	assert.Greater(t, atomic.LoadInt32(&maxObserved), int32(1))
}
