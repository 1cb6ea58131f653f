package ratelimit

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/vinayprograms/agentcore/bus"
)

// BusConfig configures a BusLimiter.
type BusConfig struct {
	Config

	// Bus carries CapacityUpdate messages.
	Bus bus.MessageBus

	// Source identifies this limiter; its own updates are ignored.
	Source string
}

// Validate checks the configuration.
func (c BusConfig) Validate() error {
	if c.Bus == nil || c.Source == "" {
		return ErrInvalidConfig
	}
	return c.Config.Validate()
}

// BusLimiter is a MemoryLimiter whose reductions are shared over a bus.
type BusLimiter struct {
	*MemoryLimiter

	bus    bus.MessageBus
	source string
	sub    bus.Subscription

	mu       sync.Mutex
	onUpdate func(CapacityUpdate)
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewBusLimiter creates a limiter subscribed to CapacitySubject.
func NewBusLimiter(cfg BusConfig) (*BusLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sub, err := cfg.Bus.Subscribe(CapacitySubject)
	if err != nil {
		return nil, err
	}
	l := &BusLimiter{
		MemoryLimiter: NewMemoryLimiter(cfg.Config),
		bus:           cfg.Bus,
		source:        cfg.Source,
		sub:           sub,
		done:          make(chan struct{}),
	}
	l.wg.Add(1)
	go l.listen()
	return l, nil
}

// OnUpdate sets a callback for updates applied from other limiters.
func (l *BusLimiter) OnUpdate(fn func(CapacityUpdate)) {
	l.mu.Lock()
	l.onUpdate = fn
	l.mu.Unlock()
}

func (l *BusLimiter) listen() {
	defer l.wg.Done()
	for {
		select {
		case <-l.done:
			return
		case msg, ok := <-l.sub.Messages():
			if !ok {
				return
			}
			l.apply(msg.Data)
		}
	}
}

func (l *BusLimiter) apply(data []byte) {
	var u CapacityUpdate
	if err := json.Unmarshal(data, &u); err != nil {
		l.logger.Debug("malformed capacity update", map[string]interface{}{"error": err.Error()})
		return
	}
	if u.Source == l.source || !l.lower(u.Resource, u.NewCapacity) {
		return
	}
	l.logger.Info("capacity lowered by peer", map[string]interface{}{
		"resource": u.Resource,
		"capacity": u.NewCapacity,
		"source":   u.Source,
		"reason":   u.Reason,
	})

	l.mu.Lock()
	fn := l.onUpdate
	l.mu.Unlock()
	if fn != nil {
		fn(u)
	}
}

// Reduce shrinks the local bucket and announces the new capacity.
func (l *BusLimiter) Reduce(resource, reason string) {
	n, ok := l.reduce(resource)
	if !ok {
		return
	}
	l.logger.Warn("capacity reduced", map[string]interface{}{
		"resource": resource,
		"capacity": n,
		"reason":   reason,
	})

	data, err := json.Marshal(CapacityUpdate{
		Resource:    resource,
		Source:      l.source,
		NewCapacity: n,
		Reason:      reason,
		Timestamp:   time.Now().UTC(),
	})
	if err != nil {
		return
	}
	if err := l.bus.Publish(CapacitySubject, data); err != nil {
		l.logger.Warn("capacity announce failed", map[string]interface{}{
			"resource": resource,
			"error":    err.Error(),
		})
	}
}

// Close unsubscribes and closes the local limiter.
func (l *BusLimiter) Close() error {
	l.mu.Lock()
	select {
	case <-l.done:
		l.mu.Unlock()
		return ErrClosed
	default:
	}
	close(l.done)
	l.mu.Unlock()
	_ = l.sub.Unsubscribe()
	l.wg.Wait()
	return l.MemoryLimiter.Close()
}

var _ Limiter = (*BusLimiter)(nil)
