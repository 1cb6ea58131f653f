// Package ratelimit throttles calls to shared upstream resources such as
// LLM provider APIs.
//
// A MemoryLimiter holds one token bucket per resource:
//
//	limiter := ratelimit.NewMemoryLimiter(ratelimit.DefaultConfig())
//	limiter.SetCapacity("anthropic", 60, time.Minute)
//
//	if err := limiter.Acquire(ctx, "anthropic"); err != nil {
//	    return err
//	}
//
// When the upstream answers with a rate limit error, Reduce shrinks the
// bucket by Config.ReduceFactor. The capacity then grows back by
// Config.RecoveryFactor every Config.RecoveryInterval until it reaches the
// configured limit again.
//
// A BusLimiter does the same and also publishes every reduction on
// ratelimit.capacity, so that every pool sharing the bus backs off
// together:
//
//	limiter, err := ratelimit.NewBusLimiter(ratelimit.BusConfig{
//	    Config: ratelimit.DefaultConfig(),
//	    Bus:    b,
//	    Source: "pool-a",
//	})
package ratelimit
