package llm

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// Request represents a queued extraction request
type Request struct {
	ID       string
	Prompt   string
	Callback func(*Result, error) // Called when completed
	Context  context.Context
}

// Pool manages a pool of workers for concurrent extraction requests.
// Message handling fans many small extraction calls through here so a
// burst of conversations cannot overload the local model.
type Pool struct {
	client    Completer
	workers   int
	queue     chan *Request
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	semaphore chan struct{} // Limits concurrent requests
	metrics   *PoolMetrics
}

// PoolMetrics tracks pool performance
type PoolMetrics struct {
	TotalRequests   int64
	CompletedOK     int64
	CompletedError  int64
	AverageLatency  time.Duration
	TotalLatency    time.Duration
	CurrentInflight int
	mu              sync.RWMutex
}

// PoolConfig holds pool configuration
type PoolConfig struct {
	Workers       int // Number of worker goroutines
	QueueSize     int // Size of request queue
	MaxConcurrent int // Maximum concurrent requests
}

// DefaultPoolConfig returns default pool configuration
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		Workers:       runtime.NumCPU(),
		QueueSize:     256,
		MaxConcurrent: 4, // Match typical Ollama defaults
	}
}

// NewPool creates a new extraction pool around a completer
func NewPool(client Completer, config *PoolConfig) *Pool {
	if config == nil {
		config = DefaultPoolConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		client:    client,
		workers:   config.Workers,
		queue:     make(chan *Request, config.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
		semaphore: make(chan struct{}, config.MaxConcurrent),
		metrics:   &PoolMetrics{},
	}

	for i := 0; i < pool.workers; i++ {
		pool.wg.Add(1)
		go pool.worker()
	}

	return pool
}

// worker processes requests from the queue
func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case req, ok := <-p.queue:
			if !ok {
				return
			}
			p.processRequest(req)
		}
	}
}

// processRequest handles a single extraction request
func (p *Pool) processRequest(req *Request) {
	select {
	case p.semaphore <- struct{}{}:
		defer func() { <-p.semaphore }()
	case <-req.Context.Done():
		if req.Callback != nil {
			req.Callback(nil, &Error{Kind: FailureTimeout, Err: req.Context.Err()})
		}
		return
	}

	p.metrics.mu.Lock()
	p.metrics.CurrentInflight++
	p.metrics.mu.Unlock()

	defer func() {
		p.metrics.mu.Lock()
		p.metrics.CurrentInflight--
		p.metrics.mu.Unlock()
	}()

	startTime := time.Now()
	result, err := p.client.Complete(req.Context, req.Prompt)
	latency := time.Since(startTime)

	p.updateMetrics(latency, err == nil)

	if req.Callback != nil {
		req.Callback(result, err)
	}
}

// updateMetrics updates pool metrics
func (p *Pool) updateMetrics(latency time.Duration, success bool) {
	p.metrics.mu.Lock()
	defer p.metrics.mu.Unlock()

	p.metrics.TotalRequests++
	if success {
		p.metrics.CompletedOK++
	} else {
		p.metrics.CompletedError++
	}

	p.metrics.TotalLatency += latency
	if p.metrics.CompletedOK > 0 {
		p.metrics.AverageLatency = p.metrics.TotalLatency / time.Duration(p.metrics.CompletedOK)
	}
}

// Submit submits a request to the pool
func (p *Pool) Submit(req *Request) error {
	if req.Context == nil {
		req.Context = p.ctx
	}

	select {
	case p.queue <- req:
		return nil
	case <-req.Context.Done():
		return req.Context.Err()
	default:
		return fmt.Errorf("queue full")
	}
}

// Complete submits a request and waits for the result, satisfying the
// Completer contract so the pool can stand in front of the raw client.
func (p *Pool) Complete(ctx context.Context, prompt string) (*Result, error) {
	type outcome struct {
		result *Result
		err    error
	}
	resultChan := make(chan outcome, 1)

	req := &Request{
		ID:      fmt.Sprintf("extract-%d", time.Now().UnixNano()),
		Prompt:  prompt,
		Context: ctx,
		Callback: func(result *Result, err error) {
			resultChan <- outcome{result: result, err: err}
		},
	}

	if err := p.Submit(req); err != nil {
		return nil, err
	}

	select {
	case out := <-resultChan:
		return out.result, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetMetrics returns current pool metrics
func (p *Pool) GetMetrics() PoolMetrics {
	p.metrics.mu.RLock()
	defer p.metrics.mu.RUnlock()

	return PoolMetrics{
		TotalRequests:   p.metrics.TotalRequests,
		CompletedOK:     p.metrics.CompletedOK,
		CompletedError:  p.metrics.CompletedError,
		AverageLatency:  p.metrics.AverageLatency,
		TotalLatency:    p.metrics.TotalLatency,
		CurrentInflight: p.metrics.CurrentInflight,
	}
}

// QueueLength returns the current queue length
func (p *Pool) QueueLength() int {
	return len(p.queue)
}

// Shutdown gracefully shuts down the pool
func (p *Pool) Shutdown(timeout time.Duration) error {
	close(p.queue)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return fmt.Errorf("shutdown timeout exceeded")
	}
}
