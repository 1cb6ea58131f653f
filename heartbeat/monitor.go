package heartbeat

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vinayprograms/agentcore/agent"
	"github.com/vinayprograms/agentcore/bus"
	"github.com/vinayprograms/agentcore/logging"
)

// Monitor consumes heartbeats from the bus and reports agents that go
// silent. Agents that report "disposed" are forgotten rather than reported.
type Monitor struct {
	bus           bus.MessageBus
	timeout       time.Duration
	checkInterval time.Duration
	logger        *logging.Logger
	now           func() time.Time

	mu       sync.RWMutex
	lastSeen map[string]*Heartbeat
	received map[string]time.Time
	reported map[string]bool
	deadCBs  []func(string)

	runMu  sync.Mutex
	sub    bus.Subscription
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewMonitor creates a heartbeat monitor.
func NewMonitor(cfg MonitorConfig) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultMonitorConfig().Timeout
	}
	checkInterval := cfg.CheckInterval
	if checkInterval <= 0 {
		checkInterval = DefaultMonitorConfig().CheckInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &Monitor{
		bus:           cfg.Bus,
		timeout:       timeout,
		checkInterval: checkInterval,
		logger:        logger.WithComponent("heartbeat_monitor"),
		now:           time.Now,
		lastSeen:      make(map[string]*Heartbeat),
		received:      make(map[string]time.Time),
		reported:      make(map[string]bool),
	}, nil
}

// Start subscribes to every heartbeat subject.
func (m *Monitor) Start() error {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.sub != nil {
		return ErrAlreadyStarted
	}

	sub, err := m.bus.Subscribe(SubjectPrefix + ">")
	if err != nil {
		return err
	}
	m.sub = sub
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})

	go m.run(sub, m.stopCh, m.doneCh)
	return nil
}

func (m *Monitor) run(sub bus.Subscription, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	checkTicker := time.NewTicker(m.checkInterval)
	defer checkTicker.Stop()

	for {
		select {
		case <-stop:
			return
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			m.process(msg)
		case <-checkTicker.C:
			m.checkDeadAgents()
		}
	}
}

func (m *Monitor) process(msg *bus.Message) {
	hb, err := Unmarshal(msg.Data)
	if err != nil {
		m.logger.Warn("malformed heartbeat", map[string]interface{}{
			"subject": msg.Subject,
			"error":   err.Error(),
		})
		return
	}
	if hb.AgentID == "" {
		hb.AgentID = strings.TrimPrefix(msg.Subject, SubjectPrefix)
	}
	m.Receive(hb)
}

// Receive records a heartbeat. Liveness is judged by when the heartbeat
// arrived, not by the sender's timestamp.
func (m *Monitor) Receive(hb *Heartbeat) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.reported, hb.AgentID)
	if hb.Status == agent.StatusDisposed.String() {
		delete(m.lastSeen, hb.AgentID)
		delete(m.received, hb.AgentID)
		return
	}
	m.lastSeen[hb.AgentID] = hb
	m.received[hb.AgentID] = m.now()
}

func (m *Monitor) checkDeadAgents() {
	now := m.now()
	var dead []string

	m.mu.Lock()
	for id, at := range m.received {
		if now.Sub(at) > m.timeout && !m.reported[id] {
			m.reported[id] = true
			dead = append(dead, id)
		}
	}
	callbacks := append([]func(string){}, m.deadCBs...)
	m.mu.Unlock()

	sort.Strings(dead)
	for _, id := range dead {
		m.logger.Warn("agent heartbeat lost", map[string]interface{}{
			"agent_id": id,
			"timeout":  m.timeout.String(),
		})
		for _, cb := range callbacks {
			cb(id)
		}
	}
}

// IsAlive reports whether a heartbeat from agentID arrived within the
// monitor timeout.
func (m *Monitor) IsAlive(agentID string) bool {
	m.mu.RLock()
	at, ok := m.received[agentID]
	m.mu.RUnlock()
	return ok && m.now().Sub(at) <= m.timeout
}

// LastHeartbeat returns a copy of the last heartbeat from an agent, or nil.
func (m *Monitor) LastHeartbeat(agentID string) *Heartbeat {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hb, ok := m.lastSeen[agentID]
	if !ok {
		return nil
	}
	out := *hb
	return &out
}

// Agents returns the IDs of every tracked agent, sorted.
func (m *Monitor) Agents() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.lastSeen))
	for id := range m.lastSeen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// OnDead registers a callback invoked once each time an agent goes silent.
func (m *Monitor) OnDead(callback func(agentID string)) {
	m.mu.Lock()
	m.deadCBs = append(m.deadCBs, callback)
	m.mu.Unlock()
}

// Stop unsubscribes and waits for the monitor loop to exit.
func (m *Monitor) Stop() error {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.sub == nil {
		return ErrNotStarted
	}
	close(m.stopCh)
	<-m.doneCh
	err := m.sub.Unsubscribe()
	m.sub = nil
	return err
}
