package agent

import "fmt"

// Config is the static identity of an agent.
type Config struct {
	// ID uniquely identifies the agent within a pool.
	ID string `json:"id"`

	// Name is a human-readable label.
	Name string `json:"name,omitempty"`

	// Type is a free-form classification (e.g. "llm", "worker").
	Type string `json:"type,omitempty"`

	// Capabilities are opaque tags used for routing. The agent also
	// advertises every task type it has a handler for.
	Capabilities []string `json:"capabilities,omitempty"`
}

// Validate checks that the config is usable.
func (c Config) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("agent id is required")
	}
	seen := make(map[string]bool, len(c.Capabilities))
	for _, tag := range c.Capabilities {
		if tag == "" {
			return fmt.Errorf("agent %s: empty capability", c.ID)
		}
		if seen[tag] {
			return fmt.Errorf("agent %s: duplicate capability %q", c.ID, tag)
		}
		seen[tag] = true
	}
	return nil
}

// HasCapability reports whether the agent advertises capability.
func (c Config) HasCapability(capability string) bool {
	for _, tag := range c.Capabilities {
		if tag == capability {
			return true
		}
	}
	return false
}

func (c Config) clone() Config {
	out := c
	out.Capabilities = append([]string(nil), c.Capabilities...)
	return out
}
