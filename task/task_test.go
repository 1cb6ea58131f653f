package task

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	agenterrors "github.com/vinayprograms/agentcore/errors"
)

// fixedClock returns the same instant on every call.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNew(t *testing.T) {
	task, err := New("echo", Params{"text": "hi"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if task.ID() == "" {
		t.Error("Expected generated ID")
	}
	if task.Type() != "echo" {
		t.Errorf("Type() = %v, want echo", task.Type())
	}
	if task.Status() != StatusPending {
		t.Errorf("Status() = %v, want pending", task.Status())
	}
	if !task.UpdatedAt().Equal(task.CreatedAt()) {
		t.Error("Expected updatedAt == createdAt for a new task")
	}
	if task.Result() != nil || task.Err() != nil {
		t.Error("New task should have no result or error")
	}
}

func TestNewWithOptions(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	task, err := New("echo", nil, WithID("t-1"), WithClock(fixedClock(at)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if task.ID() != "t-1" {
		t.Errorf("ID() = %v, want t-1", task.ID())
	}
	if !task.CreatedAt().Equal(at) {
		t.Errorf("CreatedAt() = %v, want %v", task.CreatedAt(), at)
	}
	if task.Params() == nil {
		t.Error("Params() should never be nil")
	}
}

func TestNewEmptyType(t *testing.T) {
	_, err := New("", nil)
	if !agenterrors.Is(err, agenterrors.ErrCodeInvalidTask) {
		t.Fatalf("Expected INVALID_TASK, got %v", err)
	}
	if !agenterrors.IsContract(err) {
		t.Error("Expected contract category")
	}
}

func TestParamsAreCopied(t *testing.T) {
	in := Params{"nested": map[string]any{"k": "v"}}
	task := MustNew("echo", in)

	in["nested"].(map[string]any)["k"] = "mutated"
	got, _ := task.Params().Map("nested")
	if got["k"] != "v" {
		t.Error("Task params should not alias the caller's map")
	}

	out := task.Params()
	out["extra"] = 1
	if task.Params().Has("extra") {
		t.Error("Params() should return a copy")
	}
}

func TestLifecycleCompleted(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	task := MustNew("echo", nil, WithClock(fixedClock(at)))

	if err := task.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if task.Status() != StatusRunning {
		t.Errorf("Status() = %v, want running", task.Status())
	}
	running := task.UpdatedAt()
	if !running.After(task.CreatedAt()) {
		t.Error("updatedAt must move past createdAt on Start even with a frozen clock")
	}

	if err := task.Complete("ok"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if task.Status() != StatusCompleted {
		t.Errorf("Status() = %v, want completed", task.Status())
	}
	if task.Result() != "ok" {
		t.Errorf("Result() = %v, want ok", task.Result())
	}
	if !task.UpdatedAt().After(running) {
		t.Error("updatedAt must increase on every transition")
	}
	if task.Attempts() != 1 {
		t.Errorf("Attempts() = %d, want 1", task.Attempts())
	}
}

func TestLifecycleFailed(t *testing.T) {
	task := MustNew("echo", nil)
	_ = task.Start()

	cause := agenterrors.TaskFailed(task.ID(), "bad")
	if err := task.Fail(cause); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}
	if task.Status() != StatusFailed {
		t.Errorf("Status() = %v, want failed", task.Status())
	}
	if task.Err() != cause {
		t.Errorf("Err() = %v, want %v", task.Err(), cause)
	}
	if task.Result() != nil {
		t.Error("Failed task should have no result")
	}
}

func TestFailNilCause(t *testing.T) {
	task := MustNew("echo", nil)
	_ = task.Start()
	_ = task.Fail(nil)
	if !agenterrors.Is(task.Err(), agenterrors.ErrCodeTaskFailed) {
		t.Errorf("Expected TASK_FAILED placeholder, got %v", task.Err())
	}
}

func TestInvalidTransitions(t *testing.T) {
	t.Run("start_twice", func(t *testing.T) {
		task := MustNew("echo", nil)
		_ = task.Start()
		err := task.Start()
		if !agenterrors.Is(err, agenterrors.ErrCodeTaskNotPending) {
			t.Errorf("Expected TASK_NOT_PENDING, got %v", err)
		}
	})

	t.Run("start_terminal", func(t *testing.T) {
		task := MustNew("echo", nil)
		_ = task.Start()
		_ = task.Complete(nil)
		before := task.UpdatedAt()
		if err := task.Start(); !agenterrors.IsContract(err) {
			t.Errorf("Expected contract error, got %v", err)
		}
		if task.Status() != StatusCompleted || !task.UpdatedAt().Equal(before) {
			t.Error("Rejected transition must not change the task")
		}
	})

	t.Run("complete_pending", func(t *testing.T) {
		task := MustNew("echo", nil)
		err := task.Complete("x")
		if !agenterrors.Is(err, agenterrors.ErrCodeInvalidTransition) {
			t.Errorf("Expected INVALID_TRANSITION, got %v", err)
		}
		if task.Result() != nil {
			t.Error("Result should not be set on rejected transition")
		}
	})

	t.Run("fail_completed", func(t *testing.T) {
		task := MustNew("echo", nil)
		_ = task.Start()
		_ = task.Complete("x")
		if err := task.Fail(errors.New("late")); !agenterrors.IsIntegrity(err) {
			t.Errorf("Expected integrity error, got %v", err)
		}
		if task.Status() != StatusCompleted {
			t.Error("Completed task must stay completed")
		}
	})
}

func TestStatusTable(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusRunning, true},
		{StatusPending, StatusCompleted, false},
		{StatusRunning, StatusCompleted, true},
		{StatusRunning, StatusFailed, true},
		{StatusRunning, StatusPending, false},
		{StatusCompleted, StatusRunning, false},
		{StatusFailed, StatusPending, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"_"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo() = %v, want %v", got, tt.want)
			}
		})
	}
	if !StatusFailed.IsTerminal() || !StatusCompleted.IsTerminal() || StatusRunning.IsTerminal() {
		t.Error("IsTerminal() mismatch")
	}
}

func TestConcurrentStart(t *testing.T) {
	task := MustNew("echo", nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if task.Start() == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("Expected exactly one Start to win, got %d", wins)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	task := MustNew("echo", Params{"text": "hi", "n": 3})
	_ = task.Start()
	_ = task.Fail(agenterrors.TaskFailed(task.ID(), "boom"))

	data, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	restored, err := FromRecord(rec)
	if err != nil {
		t.Fatalf("FromRecord failed: %v", err)
	}

	if restored.ID() != task.ID() || restored.Type() != "echo" {
		t.Errorf("identity lost: %s/%s", restored.ID(), restored.Type())
	}
	if restored.Status() != StatusFailed {
		t.Errorf("Status() = %v, want failed", restored.Status())
	}
	if !agenterrors.Is(restored.Err(), agenterrors.ErrCodeTaskFailed) {
		t.Errorf("Err() = %v", restored.Err())
	}
	if n, ok := restored.Params().Int("n"); !ok || n != 3 {
		t.Errorf("Params().Int(n) = %v, %v", n, ok)
	}
	if !restored.UpdatedAt().Equal(task.UpdatedAt()) {
		t.Error("updatedAt lost in round trip")
	}
	if err := restored.Start(); !agenterrors.IsContract(err) {
		t.Error("Restored terminal task must not start again")
	}
}

func TestSnapshotPlainError(t *testing.T) {
	task := MustNew("echo", nil)
	_ = task.Start()
	_ = task.Fail(errors.New("plain"))

	rec := task.Snapshot()
	if rec.Error == nil || rec.Error.Message() != "plain" {
		t.Errorf("Snapshot().Error = %v", rec.Error)
	}
}

func TestFromRecordInvalid(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
	}{
		{"no_id", Record{Type: "echo", Status: StatusPending}},
		{"no_type", Record{ID: "x", Status: StatusPending}},
		{"bad_status", Record{ID: "x", Type: "echo", Status: "weird"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromRecord(tt.rec); err == nil {
				t.Error("Expected error")
			}
		})
	}
}
