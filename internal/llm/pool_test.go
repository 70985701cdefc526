package llm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	mu    sync.Mutex
	calls int
	reply string
	err   error
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string) (*Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &Result{Response: s.reply, Latency: time.Millisecond}, nil
}

func TestPoolComplete(t *testing.T) {
	stub := &stubCompleter{reply: "ok"}
	pool := NewPool(stub, DefaultPoolConfig())
	defer pool.Shutdown(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := pool.Complete(ctx, "prompt")
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Response)
}

func TestPoolConcurrency(t *testing.T) {
	stub := &stubCompleter{reply: "ok"}
	pool := NewPool(stub, &PoolConfig{Workers: 4, QueueSize: 64, MaxConcurrent: 2})
	defer pool.Shutdown(time.Second)

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := pool.Complete(ctx, "prompt")
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	metrics := pool.GetMetrics()
	assert.Equal(t, int64(n), metrics.TotalRequests)
	assert.Equal(t, int64(n), metrics.CompletedOK)
}

func TestPoolMetricsTrackFailures(t *testing.T) {
	stub := &stubCompleter{err: &Error{Kind: FailureBackend, Err: context.DeadlineExceeded}}
	pool := NewPool(stub, &PoolConfig{Workers: 1, QueueSize: 4, MaxConcurrent: 1})
	defer pool.Shutdown(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := pool.Complete(ctx, "prompt")
	require.Error(t, err)

	metrics := pool.GetMetrics()
	assert.Equal(t, int64(1), metrics.CompletedError)
}
