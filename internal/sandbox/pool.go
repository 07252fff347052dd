package sandbox

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrPoolClosed = errors.New("sandbox pool is closed")
	ErrTimeout    = errors.New("sandbox acquisition timeout")
)

// acquireTimeout bounds how long a run waits for a free runtime
const acquireTimeout = 5 * time.Second

// Pool manages a pool of reusable runtimes
type Pool struct {
	config   Config
	runtimes chan *Runtime
	size     int
	mu       sync.RWMutex
	closed   bool
}

// PoolStats describes pool occupancy
type PoolStats struct {
	Size      int  `json:"size"`
	Available int  `json:"available"`
	InUse     int  `json:"in_use"`
	Closed    bool `json:"closed"`
}

// NewPool creates a runtime pool
func NewPool(config Config) *Pool {
	size := config.PoolSize
	if size <= 0 {
		size = DefaultConfig().PoolSize
	}

	pool := &Pool{
		config:   config,
		runtimes: make(chan *Runtime, size),
		size:     size,
	}
	for i := 0; i < size; i++ {
		pool.runtimes <- New(config)
	}
	return pool
}

// Acquire gets a runtime from the pool
func (p *Pool) Acquire(ctx context.Context) (*Runtime, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	timer := time.NewTimer(acquireTimeout)
	defer timer.Stop()

	select {
	case rt := <-p.runtimes:
		return rt, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrTimeout
	}
}

// Release resets the runtime and returns it to the pool
func (p *Pool) Release(rt *Runtime) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		rt.Close()
		return
	}

	rt.Reset()

	select {
	case p.runtimes <- rt:
	default:
		rt.Close()
	}
}

// Execute runs req on a pooled runtime
func (p *Pool) Execute(ctx context.Context, req Request) (ExecutionResult, error) {
	rt, err := p.Acquire(ctx)
	if err != nil {
		return ExecutionResult{}, err
	}
	defer p.Release(rt)

	return rt.Execute(ctx, req), nil
}

// Close closes the pool and all idle runtimes
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	close(p.runtimes)
	for rt := range p.runtimes {
		rt.Close()
	}
	return nil
}

// Stats returns pool statistics
func (p *Pool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	available := len(p.runtimes)
	return PoolStats{
		Size:      p.size,
		Available: available,
		InUse:     p.size - available,
		Closed:    p.closed,
	}
}
