package heartbeat

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/vinayprograms/agentcore/agent"
	"github.com/vinayprograms/agentcore/bus"
	"github.com/vinayprograms/agentcore/logging"
)

// Common errors.
var (
	ErrAlreadyStarted = errors.New("heartbeat already started")
	ErrNotStarted     = errors.New("heartbeat not started")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// SubjectPrefix is the subject prefix for heartbeat messages.
const SubjectPrefix = "heartbeat."

// Heartbeat is one status beacon for one agent.
type Heartbeat struct {
	// AgentID identifies the agent.
	AgentID string `json:"agent_id"`

	// Pool names the pool the agent belongs to.
	Pool string `json:"pool,omitempty"`

	// Status is the agent status at Timestamp ("idle", "busy", ...).
	Status string `json:"status"`

	// Failures is the number of consecutive task failures.
	Failures int `json:"failures"`

	// LastError describes why the agent is in error status.
	LastError string `json:"last_error,omitempty"`

	// Timestamp when the heartbeat was generated.
	Timestamp time.Time `json:"timestamp"`
}

// FromAgent captures the current state of a.
func FromAgent(a *agent.Agent, now time.Time) Heartbeat {
	hb := Heartbeat{
		AgentID:   a.ID(),
		Status:    a.Status().String(),
		Failures:  a.ConsecutiveFailures(),
		Timestamp: now,
	}
	if err := a.LastError(); err != nil && a.Status() == agent.StatusError {
		hb.LastError = err.Error()
	}
	return hb
}

// Marshal serializes a heartbeat to JSON.
func (h *Heartbeat) Marshal() ([]byte, error) {
	return json.Marshal(h)
}

// Unmarshal deserializes a heartbeat from JSON.
func Unmarshal(data []byte) (*Heartbeat, error) {
	var h Heartbeat
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Subject returns the subject for this heartbeat.
func (h *Heartbeat) Subject() string {
	return SubjectPrefix + h.AgentID
}

// Source supplies the agents to report on. A pool is a Source.
type Source interface {
	Agents() []*agent.Agent
}

// SenderConfig configures a heartbeat sender.
type SenderConfig struct {
	// Bus is the message bus for publishing heartbeats.
	Bus bus.MessageBus

	// Source lists the agents to report on each tick.
	Source Source

	// Pool is copied into every heartbeat.
	Pool string

	// Interval between heartbeats.
	// Default: 5 seconds
	Interval time.Duration

	// Logger receives publish failures.
	Logger *logging.Logger
}

// Validate checks the configuration.
func (c *SenderConfig) Validate() error {
	if c.Bus == nil || c.Source == nil {
		return ErrInvalidConfig
	}
	return nil
}

// DefaultSenderConfig returns configuration with sensible defaults.
func DefaultSenderConfig() SenderConfig {
	return SenderConfig{
		Interval: 5 * time.Second,
	}
}

// MonitorConfig configures a heartbeat monitor.
type MonitorConfig struct {
	// Bus is the message bus for subscribing to heartbeats.
	Bus bus.MessageBus

	// Timeout for considering an agent dead.
	// Should be 2-3x the expected heartbeat interval.
	// Default: 15 seconds
	Timeout time.Duration

	// CheckInterval for the dead agent checker.
	// Default: 1 second
	CheckInterval time.Duration

	// Logger receives malformed heartbeats and deaths.
	Logger *logging.Logger
}

// Validate checks the configuration.
func (c *MonitorConfig) Validate() error {
	if c.Bus == nil {
		return ErrInvalidConfig
	}
	return nil
}

// DefaultMonitorConfig returns configuration with sensible defaults.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Timeout:       15 * time.Second,
		CheckInterval: 1 * time.Second,
	}
}
