package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vinayprograms/agentcore/agent"
	"github.com/vinayprograms/agentcore/bus"
	"github.com/vinayprograms/agentcore/errors"
	"github.com/vinayprograms/agentcore/journal"
	"github.com/vinayprograms/agentcore/logging"
	"github.com/vinayprograms/agentcore/registry"
	"github.com/vinayprograms/agentcore/task"
)

// DoneSubjectPrefix prefixes the subject a terminal task is published on.
// The full subject is DoneSubjectPrefix + task type.
const DoneSubjectPrefix = "tasks.done."

// Config configures a Pool.
type Config struct {
	// Name identifies the pool in logs and heartbeats.
	Name string

	// DrainPoll is how often Shutdown re-checks for busy agents.
	// Default: 10ms
	DrainPoll time.Duration
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{
		Name:      "agentcore",
		DrainPoll: 10 * time.Millisecond,
	}
}

// Option configures a Pool.
type Option func(*Pool)

// WithRegistry sets the registry agents are advertised in. The pool does
// not close a registry it was given. A nil registry is ignored.
func WithRegistry(r registry.Registry) Option {
	return func(p *Pool) {
		if r != nil {
			p.registry = r
			p.ownsRegistry = false
		}
	}
}

// WithJournal records every terminal task.
func WithJournal(j *journal.Journal) Option {
	return func(p *Pool) {
		p.journal = j
	}
}

// WithBus publishes every terminal task on DoneSubjectPrefix + type.
func WithBus(b bus.MessageBus) Option {
	return func(p *Pool) {
		p.bus = b
	}
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l *logging.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// Pool supervises a set of agents. It initializes them, routes tasks to
// idle agents with a matching capability, recovers faulted agents and
// drains them on shutdown. It never queues: a task with no idle candidate
// is rejected with NO_CAPACITY.
type Pool struct {
	cfg          Config
	registry     registry.Registry
	ownsRegistry bool
	journal      *journal.Journal
	bus          bus.MessageBus
	logger       *logging.Logger

	mu     sync.RWMutex
	agents map[string]*agent.Agent
	order  []string
	closed bool

	// inflight counts Submit calls past the closed check, so Shutdown can
	// wait for their journal and bus writes.
	inflight atomic.Int64
}

// New creates an empty pool.
func New(cfg Config, opts ...Option) *Pool {
	def := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.DrainPoll <= 0 {
		cfg.DrainPoll = def.DrainPoll
	}
	p := &Pool{
		cfg:          cfg,
		registry:     registry.NewMemoryRegistry(),
		ownsRegistry: true,
		logger:       logging.New(),
		agents:       make(map[string]*agent.Agent),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithComponent("pool").WithFields(map[string]interface{}{"pool": cfg.Name})
	return p
}

// Name returns the pool name.
func (p *Pool) Name() string {
	return p.cfg.Name
}

// Registry returns the registry the pool advertises agents in.
func (p *Pool) Registry() registry.Registry {
	return p.registry
}

// Add puts an agent under supervision and advertises it in the registry.
// Every later status change of the agent is mirrored into the registry.
func (p *Pool) Add(a *agent.Agent) error {
	if a == nil {
		return errors.Contract(errors.ErrCodeInvalidTask, "agent is nil")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errors.Contract(errors.ErrCodePoolClosed, "pool is shutting down")
	}
	id := a.ID()
	if _, ok := p.agents[id]; ok {
		return errors.Contract(errors.ErrCodeDuplicateAgent,
			fmt.Sprintf("agent %s is already in pool %s", id, p.cfg.Name), errors.WithAgentID(id))
	}

	info := registry.InfoFromConfig(a.Config(), a.Status())
	info.Metadata = map[string]string{"pool": p.cfg.Name}
	if err := p.registry.Register(info); err != nil {
		return errors.WrapWithCode(err, errors.ErrCodeUnavailable, "register agent", errors.WithAgentID(id))
	}

	// Listeners for two transitions can run on different goroutines at
	// once. The status is read and written under mirrorMu so the last write
	// always carries a status read after the last transition.
	var mirrorMu sync.Mutex
	a.OnStatusChange(func(agentID string, _, _ agent.Status) {
		mirrorMu.Lock()
		defer mirrorMu.Unlock()
		if err := p.registry.UpdateStatus(agentID, a.Status()); err != nil && err != registry.ErrClosed && err != registry.ErrNotFound {
			p.logger.Warn("registry status update failed", map[string]interface{}{
				"agent": agentID,
				"error": err.Error(),
			})
		}
	})

	p.agents[id] = a
	p.order = append(p.order, id)
	p.logger.Info("agent added", map[string]interface{}{
		"agent":        id,
		"capabilities": info.Capabilities,
	})
	return nil
}

// Get returns the agent with the given ID.
func (p *Pool) Get(id string) (*agent.Agent, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	a, ok := p.agents[id]
	return a, ok
}

// Agents returns every agent in the order they were added.
func (p *Pool) Agents() []*agent.Agent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*agent.Agent, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.agents[id])
	}
	return out
}

// Start initializes every agent that is not yet idle. Agents that fail
// stay in error status and their failures are returned joined; the rest
// are ready for work.
func (p *Pool) Start(ctx context.Context) error {
	var failures []error
	ready := 0
	for _, a := range p.Agents() {
		if err := a.Initialize(ctx); err != nil {
			failures = append(failures, err)
			continue
		}
		ready++
	}
	fields := map[string]interface{}{"ready": ready, "failed": len(failures)}
	if len(failures) > 0 {
		p.logger.Warn("pool started with failed agents", fields)
		return errors.Join(failures...)
	}
	p.logger.Info("pool started", fields)
	return nil
}

// Submit runs tc on an idle agent that has capability. An empty capability
// routes on the task type.
//
// Candidates are taken from the registry in registration order. A
// candidate that turns out to be busy or faulted when the task reaches it
// is skipped. When no candidate accepts the task it is left pending and a
// NO_CAPACITY error is returned. Otherwise the task is terminal on return,
// has been recorded in the journal and published on the bus, and the
// error is whatever the agent's ExecuteTask returned.
func (p *Pool) Submit(ctx context.Context, capability string, tc *task.Context) (*task.Context, error) {
	if tc == nil {
		return nil, errors.Contract(errors.ErrCodeInvalidTask, "task is nil")
	}
	if s := tc.Status(); s != task.StatusPending {
		return tc, errors.Contract(errors.ErrCodeTaskNotPending,
			fmt.Sprintf("task %s is %s", tc.ID(), s), errors.WithTaskID(tc.ID()))
	}
	if capability == "" {
		capability = tc.Type()
	}

	p.inflight.Add(1)
	defer p.inflight.Add(-1)
	if p.isClosed() {
		return tc, errors.Contract(errors.ErrCodePoolClosed, "pool is shutting down", errors.WithTaskID(tc.ID()))
	}

	candidates, err := p.registry.FindIdle(capability)
	if err != nil {
		return tc, errors.WrapWithCode(err, errors.ErrCodeUnavailable, "find idle agents", errors.WithTaskID(tc.ID()))
	}

	for _, info := range candidates {
		a, ok := p.Get(info.ID)
		if !ok || a.Status() != agent.StatusIdle {
			continue
		}
		done, err := a.ExecuteTask(ctx, tc)
		if err != nil && skippable(err) {
			continue
		}
		if done != nil && done.Status().IsTerminal() {
			p.sink(ctx, done)
		}
		return done, err
	}

	p.logger.Debug("no capacity", map[string]interface{}{
		"capability": capability,
		"task":       tc.ID(),
		"candidates": len(candidates),
	})
	return tc, errors.New(errors.ErrCodeNoCapacity,
		fmt.Sprintf("no idle agent with capability %q", capability), errors.WithTaskID(tc.ID()))
}

// skippable reports whether ExecuteTask rejected the task because the agent
// was lost to another caller between routing and execution.
func skippable(err error) bool {
	return errors.Is(err, errors.ErrCodeAgentBusy) ||
		errors.Is(err, errors.ErrCodeAgentFaulted) ||
		errors.Is(err, errors.ErrCodeAgentDisposed) ||
		errors.Is(err, errors.ErrCodeNotInitialized)
}

// sink records a terminal task. Failures are logged only and never change
// task or agent state.
func (p *Pool) sink(ctx context.Context, tc *task.Context) {
	if p.journal != nil {
		if err := p.journal.Record(ctx, tc); err != nil {
			p.logger.Warn("journal record failed", map[string]interface{}{
				"task":  tc.ID(),
				"error": err.Error(),
			})
		}
	}
	if p.bus != nil {
		data, err := tc.MarshalJSON()
		if err == nil {
			err = p.bus.Publish(DoneSubjectPrefix+tc.Type(), data)
		}
		if err != nil {
			p.logger.Warn("task publish failed", map[string]interface{}{
				"task":  tc.ID(),
				"error": err.Error(),
			})
		}
	}
}

// Recover re-initializes every agent in error status. It returns the
// number of agents brought back and the joined failures of the rest.
func (p *Pool) Recover(ctx context.Context) (int, error) {
	var failures []error
	recovered := 0
	for _, a := range p.Agents() {
		if a.Status() != agent.StatusError {
			continue
		}
		if err := a.Initialize(ctx); err != nil {
			failures = append(failures, err)
			continue
		}
		recovered++
		p.logger.Info("agent recovered", map[string]interface{}{"agent": a.ID()})
	}
	return recovered, errors.Join(failures...)
}

// Shutdown stops routing, waits until no agent is busy and no Submit is
// still recording, then cleans up every agent and deregisters it. If ctx
// ends first, agents still busy are left alone and a TIMEOUT error lists
// them. Shutdown can be called again to retry the stragglers.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	start := time.Now()
	agents := p.Agents()
	if err := p.drain(ctx, agents); err != nil {
		p.logger.Error("drain timed out", map[string]interface{}{"error": err.Error()})
		return err
	}

	var failures []error
	for _, a := range agents {
		if err := a.Cleanup(ctx); err != nil {
			failures = append(failures, err)
		}
		if err := p.registry.Deregister(a.ID()); err != nil && err != registry.ErrNotFound && err != registry.ErrClosed {
			failures = append(failures, err)
		}
	}
	if p.ownsRegistry {
		if err := p.registry.Close(); err != nil && err != registry.ErrClosed {
			failures = append(failures, err)
		}
	}

	p.logger.Info("pool shut down", map[string]interface{}{
		"agents":      len(agents),
		"failed":      len(failures),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return errors.Join(failures...)
}

func (p *Pool) drain(ctx context.Context, agents []*agent.Agent) error {
	ticker := time.NewTicker(p.cfg.DrainPoll)
	defer ticker.Stop()
	for {
		var busy []string
		for _, a := range agents {
			if a.Status() == agent.StatusBusy {
				busy = append(busy, a.ID())
			}
		}
		if len(busy) == 0 && p.inflight.Load() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.WrapWithCode(ctx.Err(), errors.ErrCodeTimeout,
				fmt.Sprintf("drain interrupted with %d busy agents %v", len(busy), busy))
		case <-ticker.C:
		}
	}
}

func (p *Pool) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// AgentSnapshot is a point-in-time view of one agent.
type AgentSnapshot struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Capabilities []string     `json:"capabilities"`
	Status       agent.Status `json:"status"`
	Failures     int          `json:"failures"`
	LastError    string       `json:"last_error,omitempty"`
}

// Snapshot is a point-in-time view of the pool.
type Snapshot struct {
	Name   string               `json:"name"`
	Closed bool                 `json:"closed"`
	Counts map[agent.Status]int `json:"counts"`
	Agents []AgentSnapshot      `json:"agents"`
}

// Snapshot reports every agent's status without blocking on any of them.
func (p *Pool) Snapshot() Snapshot {
	s := Snapshot{
		Name:   p.cfg.Name,
		Closed: p.isClosed(),
		Counts: make(map[agent.Status]int),
	}
	for _, a := range p.Agents() {
		cfg := a.Config()
		as := AgentSnapshot{
			ID:           cfg.ID,
			Name:         cfg.Name,
			Capabilities: cfg.Capabilities,
			Status:       a.Status(),
			Failures:     a.ConsecutiveFailures(),
		}
		if as.Status == agent.StatusError {
			if err := a.LastError(); err != nil {
				as.LastError = err.Error()
			}
		}
		s.Counts[as.Status]++
		s.Agents = append(s.Agents, as)
	}
	return s
}
