package shutdown

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vinayprograms/agentcore/logging"
)

// ============================================================================
// Ordering
// ============================================================================

func TestShutdown_SingleHandler(t *testing.T) {
	coord := NewCoordinator(DefaultConfig())

	var called atomic.Bool
	coord.RegisterFunc("pool", func(ctx context.Context) error {
		called.Store(true)
		return nil
	})

	if err := coord.ShutdownWithTimeout(time.Second); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if !called.Load() {
		t.Fatal("handler was not called")
	}

	select {
	case <-coord.Done():
	default:
		t.Fatal("Done not closed after shutdown")
	}
	if coord.Err() != nil {
		t.Fatalf("Err() = %v", coord.Err())
	}
	if r := coord.Result(); r == nil || len(r.Results) != 1 || r.Failed() {
		t.Fatalf("Result() = %+v", r)
	}
}

func TestShutdown_PhasesRunInOrder(t *testing.T) {
	coord := NewCoordinator(DefaultConfig())

	var mu sync.Mutex
	var order []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	coord.RegisterFuncWithPhase("store", record("store"), PhaseClose)
	coord.RegisterFuncWithPhase("heartbeat", record("heartbeat"), PhaseStopIntake)
	coord.RegisterFuncWithPhase("journal", record("journal"), PhaseFlush)
	coord.RegisterFuncWithPhase("pool", record("pool"), PhaseDrain)

	if err := coord.ShutdownWithTimeout(time.Second); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	want := []string{"heartbeat", "pool", "journal", "store"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Fatalf("order = %v, want %v", order, want)
	}
}

func TestShutdown_SamePhaseRunsConcurrently(t *testing.T) {
	coord := NewCoordinator(DefaultConfig())

	// Each handler waits for the other, so only concurrent execution finishes.
	var wg sync.WaitGroup
	wg.Add(2)
	barrier := func(context.Context) error {
		wg.Done()
		wg.Wait()
		return nil
	}
	coord.RegisterFuncWithPhase("bus", barrier, PhaseClose)
	coord.RegisterFuncWithPhase("store", barrier, PhaseClose)

	if err := coord.ShutdownWithTimeout(2 * time.Second); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

func TestShutdown_DefaultPhase(t *testing.T) {
	coord := NewCoordinator(Config{DefaultPhase: 7})
	coord.RegisterFunc("a", func(context.Context) error { return nil })

	if err := coord.ShutdownWithTimeout(time.Second); err != nil {
		t.Fatal(err)
	}
	if got := coord.Result().Results[0].Phase; got != 7 {
		t.Fatalf("phase = %d, want 7", got)
	}
}

func TestShutdown_Empty(t *testing.T) {
	coord := NewCoordinator(DefaultConfig())
	if err := coord.ShutdownWithTimeout(time.Second); err != nil {
		t.Fatalf("empty shutdown: %v", err)
	}
	if r := coord.Result(); r == nil || len(r.Results) != 0 {
		t.Fatalf("Result() = %+v", r)
	}
}

// ============================================================================
// Failures
// ============================================================================

func TestShutdown_HandlerErrorIsJoined(t *testing.T) {
	coord := NewCoordinator(DefaultConfig())
	boom := errors.New("boom")
	coord.RegisterFunc("journal", func(context.Context) error { return boom })

	err := coord.ShutdownWithTimeout(time.Second)
	if !errors.Is(err, ErrHandlerFailed) {
		t.Fatalf("expected ErrHandlerFailed, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected handler error to be joined, got %v", err)
	}
	if !strings.Contains(err.Error(), "journal: boom") {
		t.Fatalf("error should name the handler: %v", err)
	}

	r := coord.Result()
	if !r.Failed() {
		t.Fatal("Failed() = false")
	}
	if got := r.FailedHandlers(); len(got) != 1 || got[0] != "journal" {
		t.Fatalf("FailedHandlers() = %v", got)
	}
}

func TestShutdown_ContinueOnError(t *testing.T) {
	coord := NewCoordinator(Config{ContinueOnError: true})

	var later atomic.Bool
	coord.RegisterFuncWithPhase("pool", func(context.Context) error { return errors.New("drain") }, PhaseDrain)
	coord.RegisterFuncWithPhase("bus", func(context.Context) error {
		later.Store(true)
		return nil
	}, PhaseClose)

	if err := coord.ShutdownWithTimeout(time.Second); !errors.Is(err, ErrHandlerFailed) {
		t.Fatalf("expected ErrHandlerFailed, got %v", err)
	}
	if !later.Load() {
		t.Fatal("later phase should run with ContinueOnError")
	}
}

func TestShutdown_StopOnError(t *testing.T) {
	coord := NewCoordinator(Config{ContinueOnError: false})

	var later atomic.Bool
	coord.RegisterFuncWithPhase("pool", func(context.Context) error { return errors.New("drain") }, PhaseDrain)
	coord.RegisterFuncWithPhase("bus", func(context.Context) error {
		later.Store(true)
		return nil
	}, PhaseClose)

	if err := coord.ShutdownWithTimeout(time.Second); !errors.Is(err, ErrHandlerFailed) {
		t.Fatalf("expected ErrHandlerFailed, got %v", err)
	}
	if later.Load() {
		t.Fatal("later phase ran after failure")
	}
	if got := coord.Result().SkippedHandlers(); len(got) != 1 || got[0] != "bus" {
		t.Fatalf("SkippedHandlers() = %v", got)
	}
}

func TestShutdown_HandlerPanic(t *testing.T) {
	coord := NewCoordinator(DefaultConfig())

	var later atomic.Bool
	coord.RegisterFuncWithPhase("bad", func(context.Context) error { panic("kaboom") }, PhaseFlush)
	coord.RegisterFuncWithPhase("store", func(context.Context) error {
		later.Store(true)
		return nil
	}, PhaseClose)

	err := coord.ShutdownWithTimeout(time.Second)
	if !errors.Is(err, ErrHandlerFailed) {
		t.Fatalf("expected ErrHandlerFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "kaboom") {
		t.Fatalf("panic value missing from error: %v", err)
	}
	if !later.Load() {
		t.Fatal("panic should not abort later phases")
	}
}

// ============================================================================
// Deadlines
// ============================================================================

func TestShutdown_HandlerSeesDeadline(t *testing.T) {
	coord := NewCoordinator(DefaultConfig())

	var cancelled atomic.Bool
	coord.RegisterFunc("slow", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			cancelled.Store(true)
			return ctx.Err()
		case <-time.After(10 * time.Second):
			return nil
		}
	})

	start := time.Now()
	err := coord.ShutdownWithTimeout(50 * time.Millisecond)
	if time.Since(start) > 2*time.Second {
		t.Fatal("shutdown ignored the deadline")
	}
	if !cancelled.Load() {
		t.Fatal("handler context was not cancelled")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected joined DeadlineExceeded, got %v", err)
	}
}

func TestShutdown_DeadlineSkipsRemainingPhases(t *testing.T) {
	coord := NewCoordinator(DefaultConfig())

	var later atomic.Bool
	coord.RegisterFuncWithPhase("pool", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}, PhaseDrain)
	coord.RegisterFuncWithPhase("store", func(context.Context) error {
		later.Store(true)
		return nil
	}, PhaseClose)

	err := coord.ShutdownWithTimeout(20 * time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if later.Load() {
		t.Fatal("phase after the deadline ran")
	}
	if got := coord.Result().SkippedHandlers(); len(got) != 1 || got[0] != "store" {
		t.Fatalf("SkippedHandlers() = %v", got)
	}
}

func TestShutdown_CancelledContext(t *testing.T) {
	coord := NewCoordinator(DefaultConfig())

	var called atomic.Bool
	coord.RegisterFunc("pool", func(context.Context) error {
		called.Store(true)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := coord.Shutdown(ctx); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if called.Load() {
		t.Fatal("handler called with a cancelled context")
	}
}

// ============================================================================
// Once
// ============================================================================

func TestShutdown_SecondCallReturnsFirstResult(t *testing.T) {
	coord := NewCoordinator(DefaultConfig())

	var calls atomic.Int32
	coord.RegisterFunc("pool", func(context.Context) error {
		calls.Add(1)
		return errors.New("failed")
	})

	first := coord.ShutdownWithTimeout(time.Second)
	second := coord.ShutdownWithTimeout(time.Second)

	if calls.Load() != 1 {
		t.Fatalf("handler called %d times", calls.Load())
	}
	if first == nil || first != second {
		t.Fatalf("second call = %v, want %v", second, first)
	}
}

func TestShutdown_CallDuringShutdown(t *testing.T) {
	coord := NewCoordinator(DefaultConfig())

	entered := make(chan struct{})
	release := make(chan struct{})
	coord.RegisterFunc("pool", func(context.Context) error {
		close(entered)
		<-release
		return nil
	})

	go func() { _ = coord.ShutdownWithTimeout(5 * time.Second) }()
	<-entered

	if err := coord.ShutdownWithTimeout(time.Second); !errors.Is(err, ErrAlreadyShutdown) {
		t.Fatalf("expected ErrAlreadyShutdown, got %v", err)
	}
	close(release)
	<-coord.Done()
}

func TestShutdown_RegisterAfterStartIgnored(t *testing.T) {
	coord := NewCoordinator(DefaultConfig())
	if err := coord.ShutdownWithTimeout(time.Second); err != nil {
		t.Fatal(err)
	}
	coord.RegisterFunc("late", func(context.Context) error { return nil })

	if n := len(coord.Result().Results); n != 0 {
		t.Fatalf("late registration recorded: %d results", n)
	}
}

func TestResultBeforeDone(t *testing.T) {
	coord := NewCoordinator(DefaultConfig())
	if coord.Result() != nil {
		t.Fatal("Result() should be nil before shutdown")
	}
	if coord.Err() != nil {
		t.Fatal("Err() should be nil before shutdown")
	}
}

// ============================================================================
// Signals
// ============================================================================

func TestHandleSignals_Trigger(t *testing.T) {
	coord := NewCoordinator(Config{Timeout: time.Second})

	var called atomic.Bool
	coord.RegisterFunc("pool", func(context.Context) error {
		called.Store(true)
		return nil
	})

	stop := coord.HandleSignals()
	defer stop()
	coord.Trigger()

	select {
	case <-coord.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not run after trigger")
	}
	if !called.Load() {
		t.Fatal("handler was not called")
	}
}

func TestHandleSignals_Stop(t *testing.T) {
	coord := NewCoordinator(DefaultConfig())
	stop := coord.HandleSignals()
	stop()
	stop()

	coord.Trigger()
	select {
	case <-coord.Done():
		t.Fatal("shutdown ran after stop")
	case <-time.After(50 * time.Millisecond):
	}
}

// ============================================================================
// Reporting
// ============================================================================

func TestOnProgress(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	coord := NewCoordinator(Config{
		OnProgress: func(hr HandlerResult) {
			mu.Lock()
			seen[hr.Name] = true
			mu.Unlock()
		},
	})
	coord.RegisterFunc("a", func(context.Context) error { return nil })
	coord.RegisterFunc("b", func(context.Context) error { return nil })

	if err := coord.ShutdownWithTimeout(time.Second); err != nil {
		t.Fatal(err)
	}
	if !seen["a"] || !seen["b"] {
		t.Fatalf("OnProgress saw %v", seen)
	}
}

func TestShutdown_Logs(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New()
	log.SetOutput(&buf)
	log.SetLevel(logging.LevelDebug)

	coord := NewCoordinator(Config{Logger: log})
	coord.RegisterFuncWithPhase("pool", func(context.Context) error { return errors.New("stuck") }, PhaseDrain)
	_ = coord.ShutdownWithTimeout(time.Second)

	out := buf.String()
	for _, want := range []string{"shutdown handler failed", "handler=pool", "shutdown incomplete", "component=shutdown"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}

func TestHandlerDuration(t *testing.T) {
	coord := NewCoordinator(DefaultConfig())
	coord.RegisterFunc("sleepy", func(context.Context) error {
		time.Sleep(20 * time.Millisecond)
		return nil
	})
	if err := coord.ShutdownWithTimeout(time.Second); err != nil {
		t.Fatal(err)
	}
	r := coord.Result()
	if r.Results[0].Duration < 20*time.Millisecond {
		t.Fatalf("Duration = %v", r.Results[0].Duration)
	}
	if r.TotalDuration < r.Results[0].Duration {
		t.Fatalf("TotalDuration %v < handler duration", r.TotalDuration)
	}
}

// ============================================================================
// Config
// ============================================================================

func TestConfig(t *testing.T) {
	def := DefaultConfig()
	if def.Timeout != 30*time.Second || def.DefaultPhase != 100 || !def.ContinueOnError {
		t.Fatalf("DefaultConfig() = %+v", def)
	}

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"zero", Config{}, false},
		{"negative_timeout", Config{Timeout: -time.Second}, true},
		{"negative_phase", Config{DefaultPhase: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestGroupByPhase(t *testing.T) {
	if groupByPhase(nil) != nil {
		t.Fatal("expected nil for no handlers")
	}
	groups := groupByPhase([]registration{
		{name: "a", phase: 10},
		{name: "b", phase: 10},
		{name: "c", phase: 20},
		{name: "d", phase: 40},
		{name: "e", phase: 40},
	})
	sizes := []int{2, 1, 2}
	if len(groups) != len(sizes) {
		t.Fatalf("groups = %d, want %d", len(groups), len(sizes))
	}
	for i, n := range sizes {
		if len(groups[i]) != n {
			t.Errorf("group %d has %d handlers, want %d", i, len(groups[i]), n)
		}
	}
}
