package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/vinayprograms/agentcore/agent"
)

// MemoryRegistry is an in-memory implementation of Registry.
type MemoryRegistry struct {
	mu       sync.RWMutex
	agents   map[string]*entry
	seq      uint64
	watchers []chan Event
	closed   bool
	now      func() time.Time
}

type entry struct {
	info  AgentInfo
	order uint64
}

// NewMemoryRegistry creates a new in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		agents: make(map[string]*entry),
		now:    time.Now,
	}
}

// Register adds or replaces an agent entry.
func (r *MemoryRegistry) Register(info AgentInfo) error {
	if err := ValidateAgentInfo(info); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	info = info.clone()
	info.LastSeen = r.now()

	eventType := EventAdded
	if e, exists := r.agents[info.ID]; exists {
		e.info = info
		eventType = EventUpdated
	} else {
		r.seq++
		r.agents[info.ID] = &entry{info: info, order: r.seq}
	}
	r.notifyWatchers(Event{Type: eventType, Agent: info.clone()})
	return nil
}

// Deregister removes an agent from the registry.
func (r *MemoryRegistry) Deregister(id string) error {
	if id == "" {
		return ErrInvalidID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	e, exists := r.agents[id]
	if !exists {
		return ErrNotFound
	}
	delete(r.agents, id)
	r.notifyWatchers(Event{Type: EventRemoved, Agent: e.info.clone()})
	return nil
}

// UpdateStatus records a status change. Setting the current status again
// refreshes LastSeen without emitting an event.
func (r *MemoryRegistry) UpdateStatus(id string, status agent.Status) error {
	if id == "" {
		return ErrInvalidID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	e, exists := r.agents[id]
	if !exists {
		return ErrNotFound
	}
	e.info.LastSeen = r.now()
	if e.info.Status == status {
		return nil
	}
	e.info.Status = status
	r.notifyWatchers(Event{Type: EventUpdated, Agent: e.info.clone()})
	return nil
}

// Get retrieves a specific agent by ID.
func (r *MemoryRegistry) Get(id string) (*AgentInfo, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrClosed
	}

	e, exists := r.agents[id]
	if !exists {
		return nil, ErrNotFound
	}
	info := e.info.clone()
	return &info, nil
}

// List returns all agents matching the filter.
func (r *MemoryRegistry) List(filter *Filter) ([]AgentInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrClosed
	}

	matched := make([]*entry, 0, len(r.agents))
	for _, e := range r.agents {
		if MatchesFilter(e.info, filter) {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].order < matched[j].order
	})

	result := make([]AgentInfo, len(matched))
	for i, e := range matched {
		result[i] = e.info.clone()
	}
	return result, nil
}

// FindIdle returns idle agents advertising capability.
func (r *MemoryRegistry) FindIdle(capability string) ([]AgentInfo, error) {
	return r.List(&Filter{
		Statuses:   []agent.Status{agent.StatusIdle},
		Capability: capability,
	})
}

// Watch returns a channel of registry events.
func (r *MemoryRegistry) Watch() (<-chan Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}

	ch := make(chan Event, 64)
	r.watchers = append(r.watchers, ch)
	return ch, nil
}

// Close shuts down the registry.
func (r *MemoryRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	for _, ch := range r.watchers {
		close(ch)
	}
	r.watchers = nil
	return nil
}

// notifyWatchers sends an event to all watchers.
// Must be called with lock held.
func (r *MemoryRegistry) notifyWatchers(event Event) {
	for _, ch := range r.watchers {
		select {
		case ch <- event:
		default:
			// Channel full, skip
		}
	}
}
