package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/vinayprograms/agentcore/logging"
)

// Common errors.
var (
	ErrClosed          = errors.New("limiter closed")
	ErrUnknownResource = errors.New("unknown resource")
	ErrInvalidConfig   = errors.New("invalid configuration")
)

// CapacitySubject carries CapacityUpdate messages between limiters.
const CapacitySubject = "ratelimit.capacity"

// Limiter throttles access to named resources.
type Limiter interface {
	// Acquire blocks until a token for resource is available, ctx ends or
	// the limiter is closed. Resources without a capacity return
	// ErrUnknownResource.
	Acquire(ctx context.Context, resource string) error

	// TryAcquire takes a token without blocking.
	TryAcquire(resource string) bool

	// SetCapacity allows capacity calls per window. A non-positive value
	// removes the resource.
	SetCapacity(resource string, capacity int, window time.Duration)

	// Reduce shrinks the resource's capacity after an upstream rejection.
	Reduce(resource, reason string)

	// Capacity returns the current state of resource, or nil.
	Capacity(resource string) *Capacity

	Close() error
}

// Capacity describes one resource bucket.
type Capacity struct {
	Resource  string
	Available int
	Total     int
	Limit     int
	Window    time.Duration
}

// Reduced reports whether the bucket is below its configured limit.
func (c *Capacity) Reduced() bool {
	return c.Total < c.Limit
}

// CapacityUpdate announces a reduction to other limiters on the bus.
type CapacityUpdate struct {
	Resource    string    `json:"resource"`
	Source      string    `json:"source"`
	NewCapacity int       `json:"new_capacity"`
	Reason      string    `json:"reason"`
	Timestamp   time.Time `json:"timestamp"`
}

// Config tunes reduction and recovery.
type Config struct {
	// ReduceFactor multiplies the capacity on Reduce (0-1).
	ReduceFactor float64

	// RecoveryInterval is how long a bucket stays reduced before each
	// recovery step. Zero disables recovery.
	RecoveryInterval time.Duration

	// RecoveryFactor multiplies the capacity on each recovery step (>1).
	RecoveryFactor float64

	Logger *logging.Logger
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{
		ReduceFactor:     0.5,
		RecoveryInterval: 30 * time.Second,
		RecoveryFactor:   1.5,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ReduceFactor < 0 || c.ReduceFactor >= 1 {
		return ErrInvalidConfig
	}
	if c.RecoveryInterval < 0 {
		return ErrInvalidConfig
	}
	if c.RecoveryFactor != 0 && c.RecoveryFactor <= 1 {
		return ErrInvalidConfig
	}
	return nil
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ReduceFactor == 0 {
		c.ReduceFactor = d.ReduceFactor
	}
	if c.RecoveryFactor == 0 {
		c.RecoveryFactor = d.RecoveryFactor
	}
	if c.Logger == nil {
		c.Logger = logging.Nop()
	}
	return c
}
