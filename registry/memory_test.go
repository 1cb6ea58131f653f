package registry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vinayprograms/agentcore/agent"
)

// --- Unit Tests ---

func TestMemoryRegistry_Register(t *testing.T) {
	r := NewMemoryRegistry()
	defer r.Close()

	info := AgentInfo{
		ID:           "agent-1",
		Name:         "Test Agent",
		Capabilities: []string{"code-review", "testing"},
		Status:       agent.StatusIdle,
	}

	if err := r.Register(info); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	got, err := r.Get("agent-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Name != "Test Agent" {
		t.Errorf("Name = %q, want %q", got.Name, "Test Agent")
	}
	if got.Status != agent.StatusIdle {
		t.Errorf("Status = %s, want idle", got.Status)
	}
	if got.LastSeen.IsZero() {
		t.Error("LastSeen should be set")
	}
}

func TestMemoryRegistry_RegisterInvalid(t *testing.T) {
	r := NewMemoryRegistry()
	defer r.Close()

	if err := r.Register(AgentInfo{}); err != ErrInvalidID {
		t.Errorf("expected ErrInvalidID, got %v", err)
	}
}

func TestMemoryRegistry_InfoFromConfig(t *testing.T) {
	cfg := agent.Config{ID: "a1", Name: "one", Type: "worker", Capabilities: []string{"echo"}}
	info := InfoFromConfig(cfg, agent.StatusUninitialized)

	if info.ID != "a1" || info.Name != "one" || info.Type != "worker" {
		t.Errorf("info = %+v", info)
	}
	cfg.Capabilities[0] = "changed"
	if info.Capabilities[0] != "echo" {
		t.Error("capabilities should be copied")
	}
}

func TestMemoryRegistry_Isolation(t *testing.T) {
	r := NewMemoryRegistry()
	defer r.Close()

	caps := []string{"a"}
	r.Register(AgentInfo{ID: "x", Capabilities: caps, Metadata: map[string]string{"k": "v"}})
	caps[0] = "mutated"

	got, _ := r.Get("x")
	if got.Capabilities[0] != "a" {
		t.Error("registry shares the caller's slice")
	}
	got.Metadata["k"] = "changed"
	again, _ := r.Get("x")
	if again.Metadata["k"] != "v" {
		t.Error("registry shares its metadata map")
	}
}

func TestMemoryRegistry_Deregister(t *testing.T) {
	r := NewMemoryRegistry()
	defer r.Close()

	r.Register(AgentInfo{ID: "agent-1"})
	if err := r.Deregister("agent-1"); err != nil {
		t.Fatalf("Deregister error: %v", err)
	}
	if _, err := r.Get("agent-1"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := r.Deregister("agent-1"); err != ErrNotFound {
		t.Errorf("second Deregister: expected ErrNotFound, got %v", err)
	}
	if err := r.Deregister(""); err != ErrInvalidID {
		t.Errorf("empty id: expected ErrInvalidID, got %v", err)
	}
}

func TestMemoryRegistry_UpdateStatus(t *testing.T) {
	r := NewMemoryRegistry()
	defer r.Close()

	now := time.Unix(100, 0)
	r.now = func() time.Time { return now }

	r.Register(AgentInfo{ID: "a1", Status: agent.StatusUninitialized})

	now = now.Add(time.Second)
	if err := r.UpdateStatus("a1", agent.StatusIdle); err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}

	got, _ := r.Get("a1")
	if got.Status != agent.StatusIdle {
		t.Errorf("Status = %s, want idle", got.Status)
	}
	if !got.LastSeen.Equal(now) {
		t.Errorf("LastSeen = %v, want %v", got.LastSeen, now)
	}

	if err := r.UpdateStatus("missing", agent.StatusIdle); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// --- Query Tests ---

func TestMemoryRegistry_ListOrder(t *testing.T) {
	r := NewMemoryRegistry()
	defer r.Close()

	for _, id := range []string{"c", "a", "b"} {
		r.Register(AgentInfo{ID: id, Status: agent.StatusIdle})
	}
	// Re-registering keeps the original position.
	r.Register(AgentInfo{ID: "c", Name: "again", Status: agent.StatusIdle})

	list, err := r.List(nil)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	got := ids(list)
	if fmt.Sprint(got) != "[c a b]" {
		t.Errorf("List order = %v, want [c a b]", got)
	}
	if list[0].Name != "again" {
		t.Errorf("re-register should replace the entry, got %+v", list[0])
	}
}

func TestMemoryRegistry_ListFilter(t *testing.T) {
	r := NewMemoryRegistry()
	defer r.Close()

	r.Register(AgentInfo{ID: "a1", Type: "llm", Capabilities: []string{"chat"}, Status: agent.StatusIdle})
	r.Register(AgentInfo{ID: "a2", Type: "worker", Capabilities: []string{"echo"}, Status: agent.StatusBusy})
	r.Register(AgentInfo{ID: "a3", Type: "worker", Capabilities: []string{"echo", "chat"}, Status: agent.StatusError})

	tests := []struct {
		name   string
		filter *Filter
		want   string
	}{
		{"nil", nil, "[a1 a2 a3]"},
		{"status", &Filter{Statuses: []agent.Status{agent.StatusBusy, agent.StatusError}}, "[a2 a3]"},
		{"capability", &Filter{Capability: "chat"}, "[a1 a3]"},
		{"type", &Filter{Type: "worker"}, "[a2 a3]"},
		{"combined", &Filter{Type: "worker", Capability: "chat"}, "[a3]"},
		{"none", &Filter{Capability: "missing"}, "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := r.List(tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if got := fmt.Sprint(ids(list)); got != tt.want {
				t.Errorf("List = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMemoryRegistry_FindIdle(t *testing.T) {
	r := NewMemoryRegistry()
	defer r.Close()

	r.Register(AgentInfo{ID: "a1", Capabilities: []string{"echo"}, Status: agent.StatusBusy})
	r.Register(AgentInfo{ID: "a2", Capabilities: []string{"echo"}, Status: agent.StatusIdle})
	r.Register(AgentInfo{ID: "a3", Capabilities: []string{"chat"}, Status: agent.StatusIdle})

	idle, _ := r.FindIdle("echo")
	if fmt.Sprint(ids(idle)) != "[a2]" {
		t.Errorf("FindIdle(echo) = %v", ids(idle))
	}

	r.UpdateStatus("a1", agent.StatusIdle)
	idle, _ = r.FindIdle("echo")
	if fmt.Sprint(ids(idle)) != "[a1 a2]" {
		t.Errorf("FindIdle(echo) after update = %v", ids(idle))
	}

	all, _ := r.FindIdle("")
	if len(all) != 3 {
		t.Errorf("FindIdle(\"\") = %v, want 3 agents", ids(all))
	}
}

// --- Watch Tests ---

func TestMemoryRegistry_Watch(t *testing.T) {
	r := NewMemoryRegistry()

	ch, err := r.Watch()
	if err != nil {
		t.Fatalf("Watch error: %v", err)
	}

	r.Register(AgentInfo{ID: "a1", Status: agent.StatusUninitialized})
	r.UpdateStatus("a1", agent.StatusIdle)
	r.UpdateStatus("a1", agent.StatusIdle) // no-op, no event
	r.Register(AgentInfo{ID: "a1", Status: agent.StatusIdle})
	r.Deregister("a1")

	want := []struct {
		typ    EventType
		status agent.Status
	}{
		{EventAdded, agent.StatusUninitialized},
		{EventUpdated, agent.StatusIdle},
		{EventUpdated, agent.StatusIdle},
		{EventRemoved, agent.StatusIdle},
	}
	for i, w := range want {
		select {
		case ev := <-ch:
			if ev.Type != w.typ || ev.Agent.Status != w.status {
				t.Errorf("event %d = %s/%s, want %s/%s", i, ev.Type, ev.Agent.Status, w.typ, w.status)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for event %d", i)
		}
	}

	r.Close()
	if _, ok := <-ch; ok {
		t.Error("watch channel should be closed after Close")
	}
}

func TestMemoryRegistry_Closed(t *testing.T) {
	r := NewMemoryRegistry()
	r.Close()

	if err := r.Register(AgentInfo{ID: "a"}); err != ErrClosed {
		t.Errorf("Register: expected ErrClosed, got %v", err)
	}
	if err := r.UpdateStatus("a", agent.StatusIdle); err != ErrClosed {
		t.Errorf("UpdateStatus: expected ErrClosed, got %v", err)
	}
	if _, err := r.List(nil); err != ErrClosed {
		t.Errorf("List: expected ErrClosed, got %v", err)
	}
	if _, err := r.Watch(); err != ErrClosed {
		t.Errorf("Watch: expected ErrClosed, got %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

// --- Concurrency Tests ---

func TestMemoryRegistry_ConcurrentUpdates(t *testing.T) {
	r := NewMemoryRegistry()
	defer r.Close()

	for i := 0; i < 10; i++ {
		r.Register(AgentInfo{ID: fmt.Sprintf("a%d", i), Capabilities: []string{"echo"}})
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		id := fmt.Sprintf("a%d", i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if j%2 == 0 {
					r.UpdateStatus(id, agent.StatusBusy)
				} else {
					r.UpdateStatus(id, agent.StatusIdle)
				}
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.FindIdle("echo")
			}
		}()
	}
	wg.Wait()

	idle, _ := r.FindIdle("echo")
	if len(idle) != 10 {
		t.Errorf("all agents should end idle, got %d", len(idle))
	}
}

func ids(list []AgentInfo) []string {
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.ID
	}
	return out
}
