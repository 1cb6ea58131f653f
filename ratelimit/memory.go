package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/vinayprograms/agentcore/logging"
)

// bucket is a token bucket refilled at capacity/window.
type bucket struct {
	limit      int // configured capacity
	capacity   int // current capacity, lowered by Reduce
	available  int
	window     time.Duration
	lastRefill time.Time
	reducedAt  time.Time
}

func (b *bucket) interval() time.Duration {
	d := b.window / time.Duration(b.capacity)
	if d <= 0 {
		d = time.Nanosecond
	}
	return d
}

func (b *bucket) refill(now time.Time) {
	if b.available >= b.capacity {
		b.available = b.capacity
		b.lastRefill = now
		return
	}
	per := b.interval()
	n := int(now.Sub(b.lastRefill) / per)
	if n <= 0 {
		return
	}
	b.available += n
	b.lastRefill = b.lastRefill.Add(time.Duration(n) * per)
	if b.available >= b.capacity {
		b.available = b.capacity
		b.lastRefill = now
	}
}

// wait returns how long until the next token.
func (b *bucket) wait(now time.Time) time.Duration {
	d := b.lastRefill.Add(b.interval()).Sub(now)
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}

func (b *bucket) resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	b.capacity = capacity
	if b.available > capacity {
		b.available = capacity
	}
}

// MemoryLimiter is a process-local Limiter. It is safe for concurrent use.
type MemoryLimiter struct {
	cfg    Config
	logger *logging.Logger

	mu      sync.Mutex
	buckets map[string]*bucket
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
	now     func() time.Time
}

// NewMemoryLimiter creates a limiter and starts its recovery loop when
// cfg.RecoveryInterval is positive.
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	cfg = cfg.withDefaults()
	m := &MemoryLimiter{
		cfg:     cfg,
		logger:  cfg.Logger.WithComponent("ratelimit"),
		buckets: make(map[string]*bucket),
		closeCh: make(chan struct{}),
		now:     time.Now,
	}
	if cfg.RecoveryInterval > 0 {
		m.wg.Add(1)
		go m.recoveryLoop()
	}
	return m
}

// SetCapacity implements Limiter. Re-setting a resource restores its full
// limit.
func (m *MemoryLimiter) SetCapacity(resource string, capacity int, window time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if capacity <= 0 || window <= 0 {
		delete(m.buckets, resource)
		return
	}
	if b, ok := m.buckets[resource]; ok {
		b.limit = capacity
		b.window = window
		b.resize(capacity)
		b.reducedAt = time.Time{}
		return
	}
	m.buckets[resource] = &bucket{
		limit:      capacity,
		capacity:   capacity,
		available:  capacity,
		window:     window,
		lastRefill: m.now(),
	}
}

// Capacity implements Limiter.
func (m *MemoryLimiter) Capacity(resource string) *Capacity {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[resource]
	if !ok {
		return nil
	}
	b.refill(m.now())
	return &Capacity{
		Resource:  resource,
		Available: b.available,
		Total:     b.capacity,
		Limit:     b.limit,
		Window:    b.window,
	}
}

// TryAcquire implements Limiter.
func (m *MemoryLimiter) TryAcquire(resource string) bool {
	wait, err := m.take(resource)
	return err == nil && wait == 0
}

// Acquire implements Limiter.
func (m *MemoryLimiter) Acquire(ctx context.Context, resource string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		wait, err := m.take(resource)
		if err != nil {
			return err
		}
		if wait == 0 {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-m.closeCh:
			timer.Stop()
			return ErrClosed
		case <-timer.C:
		}
	}
}

// take consumes a token, or reports how long to wait for one.
func (m *MemoryLimiter) take(resource string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	b, ok := m.buckets[resource]
	if !ok {
		return 0, ErrUnknownResource
	}
	now := m.now()
	b.refill(now)
	if b.available > 0 {
		b.available--
		return 0, nil
	}
	return b.wait(now), nil
}

// Reduce implements Limiter.
func (m *MemoryLimiter) Reduce(resource, reason string) {
	if n, ok := m.reduce(resource); ok {
		m.logger.Warn("capacity reduced", map[string]interface{}{
			"resource": resource,
			"capacity": n,
			"reason":   reason,
		})
	}
}

func (m *MemoryLimiter) reduce(resource string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[resource]
	if !ok || m.closed {
		return 0, false
	}
	b.resize(int(float64(b.capacity) * m.cfg.ReduceFactor))
	b.reducedAt = m.now()
	return b.capacity, true
}

// lower applies a capacity announced by another limiter when it is below
// the local one.
func (m *MemoryLimiter) lower(resource string, capacity int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[resource]
	if !ok || m.closed || capacity >= b.capacity {
		return false
	}
	b.resize(capacity)
	b.reducedAt = m.now()
	return true
}

func (m *MemoryLimiter) recoveryLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.RecoveryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.closeCh:
			return
		case <-ticker.C:
			m.restore()
		}
	}
}

// restore grows every reduced bucket that has stayed reduced for at least
// one RecoveryInterval.
func (m *MemoryLimiter) restore() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for name, b := range m.buckets {
		if b.capacity >= b.limit || now.Sub(b.reducedAt) < m.cfg.RecoveryInterval {
			continue
		}
		n := int(float64(b.capacity) * m.cfg.RecoveryFactor)
		if n <= b.capacity {
			n = b.capacity + 1
		}
		if n > b.limit {
			n = b.limit
		}
		b.capacity = n
		b.reducedAt = now
		m.logger.Debug("capacity recovered", map[string]interface{}{
			"resource": name,
			"capacity": n,
		})
	}
}

// Close implements Limiter. Blocked Acquire calls return ErrClosed.
func (m *MemoryLimiter) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.closed = true
	close(m.closeCh)
	m.mu.Unlock()
	m.wg.Wait()
	return nil
}

var _ Limiter = (*MemoryLimiter)(nil)
