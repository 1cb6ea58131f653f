package registry

import (
	"errors"
	"time"

	"github.com/vinayprograms/agentcore/agent"
)

// Common errors.
var (
	ErrNotFound  = errors.New("agent not found")
	ErrClosed    = errors.New("registry closed")
	ErrInvalidID = errors.New("invalid agent ID")
)

// AgentInfo is the registry's view of one agent.
type AgentInfo struct {
	// ID uniquely identifies the agent.
	ID string `json:"id"`

	// Name is a human-readable name for the agent.
	Name string `json:"name,omitempty"`

	// Type is the agent's free-form classification.
	Type string `json:"type,omitempty"`

	// Capabilities lists the declared tags and handled task types.
	Capabilities []string `json:"capabilities,omitempty"`

	// Status is the last reported agent status.
	Status agent.Status `json:"status"`

	// Metadata contains additional key-value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`

	// LastSeen is when the entry was last registered or updated.
	LastSeen time.Time `json:"last_seen"`
}

// InfoFromConfig builds an entry for an agent config.
func InfoFromConfig(cfg agent.Config, status agent.Status) AgentInfo {
	return AgentInfo{
		ID:           cfg.ID,
		Name:         cfg.Name,
		Type:         cfg.Type,
		Capabilities: append([]string(nil), cfg.Capabilities...),
		Status:       status,
	}
}

func (a AgentInfo) clone() AgentInfo {
	out := a
	out.Capabilities = append([]string(nil), a.Capabilities...)
	if a.Metadata != nil {
		out.Metadata = make(map[string]string, len(a.Metadata))
		for k, v := range a.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// Filter specifies criteria for listing agents.
type Filter struct {
	// Statuses keeps agents in any of these statuses. Empty means all.
	Statuses []agent.Status

	// Capability keeps agents advertising this capability.
	Capability string

	// Type keeps agents of this type.
	Type string
}

// EventType represents the type of registry event.
type EventType string

const (
	EventAdded   EventType = "added"
	EventUpdated EventType = "updated"
	EventRemoved EventType = "removed"
)

// Event represents a change in the registry.
type Event struct {
	// Type indicates what happened.
	Type EventType

	// Agent contains the agent information.
	// For removal events, this contains the last known state.
	Agent AgentInfo
}

// Registry tracks the agents of a pool and answers routing queries.
type Registry interface {
	// Register adds or replaces an agent entry. A replaced entry keeps its
	// position in registration order.
	Register(info AgentInfo) error

	// Deregister removes an agent. Returns ErrNotFound if it is unknown.
	Deregister(id string) error

	// UpdateStatus records a status change for a registered agent.
	UpdateStatus(id string, status agent.Status) error

	// Get retrieves an agent by ID.
	Get(id string) (*AgentInfo, error)

	// List returns the agents matching filter in registration order.
	// Pass nil for no filtering.
	List(filter *Filter) ([]AgentInfo, error)

	// FindIdle returns idle agents advertising capability, in registration
	// order. An empty capability matches every idle agent.
	FindIdle(capability string) ([]AgentInfo, error)

	// Watch returns a channel of registry events. The channel is closed when
	// the registry is closed. Slow watchers miss events.
	Watch() (<-chan Event, error)

	// Close shuts down the registry.
	Close() error
}

// ValidateAgentInfo checks if agent info is valid.
func ValidateAgentInfo(info AgentInfo) error {
	if info.ID == "" {
		return ErrInvalidID
	}
	return nil
}

// HasCapability checks if an agent has a specific capability.
func HasCapability(info AgentInfo, capability string) bool {
	for _, tag := range info.Capabilities {
		if tag == capability {
			return true
		}
	}
	return false
}

// MatchesFilter checks if an agent matches the filter criteria.
func MatchesFilter(info AgentInfo, filter *Filter) bool {
	if filter == nil {
		return true
	}

	if len(filter.Statuses) > 0 {
		ok := false
		for _, s := range filter.Statuses {
			if info.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}

	if filter.Capability != "" && !HasCapability(info, filter.Capability) {
		return false
	}

	if filter.Type != "" && info.Type != filter.Type {
		return false
	}

	return true
}
