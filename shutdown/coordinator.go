package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/vinayprograms/agentcore/logging"
)

// Coordinator runs registered handlers phase by phase. Handlers that share a
// phase run concurrently. A Coordinator shuts down at most once.
type Coordinator struct {
	config Config
	logger *logging.Logger

	mu       sync.Mutex
	handlers []registration
	started  bool

	done   chan struct{}
	err    error
	result *Result

	signals chan os.Signal
}

// NewCoordinator creates a coordinator. Zero fields take their defaults.
func NewCoordinator(config Config) *Coordinator {
	def := DefaultConfig()
	if config.Timeout == 0 {
		config.Timeout = def.Timeout
	}
	if config.DefaultPhase == 0 {
		config.DefaultPhase = def.DefaultPhase
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Coordinator{
		config:  config,
		logger:  logger.WithComponent("shutdown"),
		done:    make(chan struct{}),
		signals: make(chan os.Signal, 1),
	}
}

// Register adds a handler in the default phase.
func (c *Coordinator) Register(name string, h Handler) {
	c.RegisterWithPhase(name, h, c.config.DefaultPhase)
}

// RegisterWithPhase adds a handler in the given phase. Handlers registered
// after shutdown has started are ignored.
func (c *Coordinator) RegisterWithPhase(name string, h Handler, phase int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		c.logger.Warn("handler registered after shutdown started", map[string]interface{}{
			"handler": name,
		})
		return
	}
	c.handlers = append(c.handlers, registration{name: name, handler: h, phase: phase})
}

// RegisterFunc registers fn in the default phase.
func (c *Coordinator) RegisterFunc(name string, fn func(ctx context.Context) error) {
	c.Register(name, HandlerFunc(fn))
}

// RegisterFuncWithPhase registers fn in the given phase.
func (c *Coordinator) RegisterFuncWithPhase(name string, fn func(ctx context.Context) error, phase int) {
	c.RegisterWithPhase(name, HandlerFunc(fn), phase)
}

// Shutdown runs every phase in order under ctx. It runs once: a call made
// while a shutdown is in flight returns ErrAlreadyShutdown, and a call made
// after it finished returns its error.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		select {
		case <-c.done:
			return c.err
		default:
			return ErrAlreadyShutdown
		}
	}
	c.started = true
	handlers := make([]registration, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	c.err = c.run(ctx, handlers)
	close(c.done)
	return c.err
}

// ShutdownWithTimeout runs Shutdown with a fresh deadline. Zero uses the
// configured timeout.
func (c *Coordinator) ShutdownWithTimeout(timeout time.Duration) error {
	if timeout == 0 {
		timeout = c.config.Timeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.Shutdown(ctx)
}

// HandleSignals starts a shutdown on SIGTERM or SIGINT. The returned
// function stops listening.
func (c *Coordinator) HandleSignals() (stop func()) {
	signal.Notify(c.signals, syscall.SIGTERM, syscall.SIGINT)
	quit := make(chan struct{})
	go func() {
		select {
		case sig := <-c.signals:
			c.logger.Info("signal received", map[string]interface{}{"signal": sig.String()})
			_ = c.ShutdownWithTimeout(0)
		case <-quit:
		case <-c.done:
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(c.signals)
			close(quit)
		})
	}
}

// Trigger delivers a synthetic SIGTERM to the HandleSignals listener.
func (c *Coordinator) Trigger() {
	select {
	case c.signals <- syscall.SIGTERM:
	default:
	}
}

// Done is closed once shutdown has finished.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Err returns the shutdown error, or nil before Done is closed.
func (c *Coordinator) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Result returns the per-handler outcome, or nil before Done is closed.
func (c *Coordinator) Result() *Result {
	select {
	case <-c.done:
		return c.result
	default:
		return nil
	}
}

func (c *Coordinator) run(ctx context.Context, handlers []registration) error {
	start := time.Now()
	sort.SliceStable(handlers, func(i, j int) bool {
		return handlers[i].phase < handlers[j].phase
	})
	groups := groupByPhase(handlers)

	result := &Result{Results: make([]HandlerResult, 0, len(handlers))}
	var failures []error
	var stopErr error

	for i, group := range groups {
		if stopErr == nil && ctx.Err() != nil {
			stopErr = ErrTimeout
		}
		if stopErr != nil {
			for _, rest := range groups[i:] {
				for _, r := range rest {
					result.Results = append(result.Results, HandlerResult{Name: r.name, Phase: r.phase, Skipped: true})
				}
			}
			break
		}

		for _, hr := range c.runPhase(ctx, group) {
			result.Results = append(result.Results, hr)
			if hr.Err != nil {
				failures = append(failures, fmt.Errorf("%s: %w", hr.Name, hr.Err))
			}
		}
		if len(failures) > 0 && !c.config.ContinueOnError {
			stopErr = ErrHandlerFailed
		}
	}

	var err error
	switch {
	case stopErr == ErrTimeout:
		err = errors.Join(append([]error{ErrTimeout}, failures...)...)
	case len(failures) > 0:
		err = errors.Join(append([]error{ErrHandlerFailed}, failures...)...)
	}

	result.Err = err
	result.TotalDuration = time.Since(start)
	c.result = result

	fields := map[string]interface{}{
		"handlers":    len(handlers),
		"duration_ms": result.TotalDuration.Milliseconds(),
	}
	if err != nil {
		fields["error"] = err.Error()
		c.logger.Error("shutdown incomplete", fields)
	} else {
		c.logger.Info("shutdown complete", fields)
	}
	return err
}

func (c *Coordinator) runPhase(ctx context.Context, group []registration) []HandlerResult {
	results := make([]HandlerResult, len(group))
	var wg sync.WaitGroup
	for i, r := range group {
		wg.Add(1)
		go func(i int, r registration) {
			defer wg.Done()
			began := time.Now()
			err := callHandler(ctx, r.handler)
			hr := HandlerResult{Name: r.name, Phase: r.phase, Duration: time.Since(began), Err: err}
			results[i] = hr
			c.report(hr)
		}(i, r)
	}
	wg.Wait()
	return results
}

func (c *Coordinator) report(hr HandlerResult) {
	fields := map[string]interface{}{
		"handler":     hr.Name,
		"phase":       hr.Phase,
		"duration_ms": hr.Duration.Milliseconds(),
	}
	if hr.Err != nil {
		fields["error"] = hr.Err.Error()
		c.logger.Warn("shutdown handler failed", fields)
	} else {
		c.logger.Debug("shutdown handler done", fields)
	}
	if c.config.OnProgress != nil {
		c.config.OnProgress(hr)
	}
}

// callHandler converts a handler panic into an error so one bad component
// cannot abort the rest of the teardown.
func callHandler(ctx context.Context, h Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.OnShutdown(ctx)
}

// groupByPhase splits handlers, already sorted by phase, into runs of equal
// phase.
func groupByPhase(handlers []registration) [][]registration {
	var groups [][]registration
	for _, h := range handlers {
		n := len(groups)
		if n > 0 && groups[n-1][0].phase == h.phase {
			groups[n-1] = append(groups[n-1], h)
			continue
		}
		groups = append(groups, []registration{h})
	}
	return groups
}
