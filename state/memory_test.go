package state

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// ============================================================================
// LEVEL 1: Unit Tests - Basic Get/Put/Delete
// ============================================================================

func TestMemoryStore_Get_NotFound(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	_, err := s.Get(context.Background(), "nonexistent")
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	if err := s.Put(ctx, "tasks.1", []byte("value"), 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.Get(ctx, "tasks.1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "value" {
		t.Errorf("expected value, got %s", got)
	}
}

func TestMemoryStore_Overwrite(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	s.Put(ctx, "k", []byte("v1"), 0)
	s.Put(ctx, "k", []byte("v2"), 0)

	got, _ := s.Get(ctx, "k")
	if string(got) != "v2" {
		t.Errorf("expected v2, got %s", got)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	s.Put(ctx, "k", []byte("v"), 0)
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, "k"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Errorf("deleting missing key should succeed, got %v", err)
	}
}

func TestMemoryStore_Keys(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	for _, k := range []string{"tasks.b", "tasks.a", "agents.x"} {
		s.Put(ctx, k, []byte("v"), 0)
	}

	keys, err := s.Keys(ctx, "tasks.*")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 2 || keys[0] != "tasks.a" || keys[1] != "tasks.b" {
		t.Errorf("Keys(tasks.*) = %v, want [tasks.a tasks.b]", keys)
	}

	all, _ := s.Keys(ctx, "*")
	if len(all) != 3 {
		t.Errorf("Keys(*) = %v, want 3 keys", all)
	}
}

func TestMemoryStore_ValueIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	value := []byte("original")
	s.Put(ctx, "k", value, 0)
	value[0] = 'X'

	got, _ := s.Get(ctx, "k")
	if string(got) != "original" {
		t.Errorf("stored value mutated through caller slice: %s", got)
	}

	got[0] = 'Y'
	again, _ := s.Get(ctx, "k")
	if string(again) != "original" {
		t.Errorf("stored value mutated through returned slice: %s", again)
	}
}

// ============================================================================
// LEVEL 2: Validation and lifecycle
// ============================================================================

func TestMemoryStore_KeyValidation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	for _, key := range []string{"", "has space", ".lead", "trail."} {
		if err := s.Put(ctx, key, []byte("v"), 0); err != ErrInvalidKey {
			t.Errorf("Put(%q) = %v, want ErrInvalidKey", key, err)
		}
		if _, err := s.Get(ctx, key); err != ErrInvalidKey {
			t.Errorf("Get(%q) = %v, want ErrInvalidKey", key, err)
		}
	}
}

func TestMemoryStore_TTLValidation_Negative(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	if err := s.Put(context.Background(), "k", []byte("v"), -time.Second); err != ErrInvalidTTL {
		t.Errorf("expected ErrInvalidTTL, got %v", err)
	}
}

func TestMemoryStore_OperationsAfterClose(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Put(ctx, "k", []byte("v"), 0)
	s.Close()

	if _, err := s.Get(ctx, "k"); err != ErrClosed {
		t.Errorf("Get after close: expected ErrClosed, got %v", err)
	}
	if err := s.Put(ctx, "k", []byte("v"), 0); err != ErrClosed {
		t.Errorf("Put after close: expected ErrClosed, got %v", err)
	}
	if err := s.Delete(ctx, "k"); err != ErrClosed {
		t.Errorf("Delete after close: expected ErrClosed, got %v", err)
	}
	if _, err := s.Keys(ctx, "*"); err != ErrClosed {
		t.Errorf("Keys after close: expected ErrClosed, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Put(ctx, "k", []byte("v"), 0); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// ============================================================================
// LEVEL 3: TTL
// ============================================================================

func TestMemoryStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	now := time.Unix(1000, 0)
	s := newMemoryStore(time.Hour, func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	})
	defer s.Close()

	s.Put(ctx, "temp", []byte("value"), time.Minute)
	if _, err := s.Get(ctx, "temp"); err != nil {
		t.Fatalf("expected value, got %v", err)
	}

	mu.Lock()
	now = now.Add(time.Minute)
	mu.Unlock()
	if _, err := s.Get(ctx, "temp"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after TTL, got %v", err)
	}
	if keys, _ := s.Keys(ctx, "*"); len(keys) != 0 {
		t.Errorf("expired key listed: %v", keys)
	}
}

func TestMemoryStore_CleanupLoop(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(5*time.Millisecond, time.Now)
	defer s.Close()

	s.Put(ctx, "temp", []byte("value"), 10*time.Millisecond)
	s.Put(ctx, "keep", []byte("value"), 0)

	deadline := time.Now().Add(2 * time.Second)
	for s.Len() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("expired entry not swept, Len() = %d", s.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// ============================================================================
// LEVEL 4: Concurrency
// ============================================================================

func TestMemoryStore_ConcurrentPut(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("tasks.%d", i)
			if err := s.Put(ctx, key, []byte("v"), 0); err != nil {
				t.Errorf("Put(%s) failed: %v", key, err)
			}
			if _, err := s.Get(ctx, key); err != nil {
				t.Errorf("Get(%s) failed: %v", key, err)
			}
		}(i)
	}
	wg.Wait()

	keys, _ := s.Keys(ctx, "tasks.*")
	if len(keys) != 50 {
		t.Errorf("expected 50 keys, got %d", len(keys))
	}
}

func BenchmarkMemoryStore_PutGet(b *testing.B) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	value := []byte("benchmark-value")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Put(ctx, "bench", value, 0)
		s.Get(ctx, "bench")
	}
}
