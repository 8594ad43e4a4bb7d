package evtworker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_DispatchNonBlocking(t *testing.T) {
	pool := NewPool(2, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool.Start(ctx)
	defer pool.Stop()

	start := time.Now()
	pool.Dispatch(Job{
		OrganizationID: "org1",
		Handler: func(ctx context.Context) error {
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	})
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 10*time.Millisecond, "dispatch must not block the caller")
}

func TestPool_SameOrgSequentialProcessing(t *testing.T) {
	pool := NewPool(4, 100)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool.Start(ctx)
	defer pool.Stop()

	var results []int
	var mu sync.Mutex

	for i := 1; i <= 5; i++ {
		val := i
		pool.Dispatch(Job{
			OrganizationID: "org1",
			Handler: func(ctx context.Context) error {
				time.Sleep(10 * time.Millisecond)
				mu.Lock()
				results = append(results, val)
				mu.Unlock()
				return nil
			},
		})
	}

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{1, 2, 3, 4, 5}, results, "same-org jobs must keep order")
}

func TestPool_DifferentOrgsRunInParallel(t *testing.T) {
	pool := NewPool(4, 100)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool.Start(ctx)
	defer pool.Stop()

	var active, maxActive int32
	orgs := []string{"org-a", "org-b", "org-c", "org-d"}

	var wg sync.WaitGroup
	wg.Add(len(orgs))
	for _, org := range orgs {
		pool.Dispatch(Job{
			OrganizationID: org,
			Handler: func(ctx context.Context) error {
				defer wg.Done()
				cur := atomic.AddInt32(&active, 1)
				for {
					prev := atomic.LoadInt32(&maxActive)
					if cur <= prev || atomic.CompareAndSwapInt32(&maxActive, prev, cur) {
						break
					}
				}
				time.Sleep(50 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			},
		})
	}
	wg.Wait()

	// With four shards at least two orgs should overlap. (Shard
	// collisions can reduce parallelism, never below 1.)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&maxActive), int32(1))
}

func TestPool_PanicDoesNotKillShard(t *testing.T) {
	pool := NewPool(1, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool.Start(ctx)
	defer pool.Stop()

	done := make(chan struct{})
	pool.Dispatch(Job{
		OrganizationID: "org1",
		Handler:        func(ctx context.Context) error { panic("boom") },
	})
	pool.Dispatch(Job{
		OrganizationID: "org1",
		Handler: func(ctx context.Context) error {
			close(done)
			return nil
		},
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("shard stopped processing after a panic")
	}

	stats := pool.GetStats()
	assert.Equal(t, int64(1), stats.TotalErrors)
}

func TestPool_TryDispatchBackpressure(t *testing.T) {
	pool := NewPool(1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool.Start(ctx)
	defer pool.Stop()

	block := make(chan struct{})
	// Occupy the worker, then fill the single queue slot.
	pool.Dispatch(Job{OrganizationID: "org1", Handler: func(ctx context.Context) error {
		<-block
		return nil
	}})
	time.Sleep(20 * time.Millisecond)
	require.True(t, pool.TryDispatch(Job{OrganizationID: "org1", Handler: func(ctx context.Context) error { return nil }}))
	assert.False(t, pool.TryDispatch(Job{OrganizationID: "org1", Handler: func(ctx context.Context) error { return nil }}))
	close(block)
}

func TestPool_StopRejectsNewJobs(t *testing.T) {
	pool := NewPool(1, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool.Start(ctx)
	pool.Stop()

	assert.False(t, pool.TryDispatch(Job{OrganizationID: "org1", Handler: func(ctx context.Context) error { return nil }}))
}
