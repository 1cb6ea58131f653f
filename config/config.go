// Package config loads pool and agent configuration from TOML.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vinayprograms/agentcore/agent"
)

// Config is the root of a pool configuration file.
type Config struct {
	Logging   LoggingConfig   `toml:"logging"`
	Pool      PoolConfig      `toml:"pool"`
	Journal   JournalConfig   `toml:"journal"`
	Bus       BusConfig       `toml:"bus"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	LLM       LLMConfig       `toml:"llm"`
	Agents    []AgentConfig   `toml:"agents"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
}

// PoolConfig controls the supervisor.
type PoolConfig struct {
	Name                   string        `toml:"name"`
	MaxConsecutiveFailures int           `toml:"max_consecutive_failures"`
	HeartbeatInterval      time.Duration `toml:"heartbeat_interval"`
	DrainTimeout           time.Duration `toml:"drain_timeout"`
	DrainPoll              time.Duration `toml:"drain_poll"`
}

// JournalConfig selects where terminal tasks are recorded.
type JournalConfig struct {
	// Backend is "memory" or "redis".
	Backend   string        `toml:"backend"`
	RedisURL  string        `toml:"redis_url"`
	KeyPrefix string        `toml:"key_prefix"`
	TTL       time.Duration `toml:"ttl"`
	Index     bool          `toml:"index"`
}

// BusConfig selects the message bus.
type BusConfig struct {
	// Backend is "memory" or "nats".
	Backend string `toml:"backend"`
	URL     string `toml:"url"`
	Name    string `toml:"name"`
}

// TelemetryConfig enables OTLP trace export. Disabled when Endpoint is empty.
type TelemetryConfig struct {
	Endpoint    string `toml:"endpoint"`
	Protocol    string `toml:"protocol"`
	Insecure    bool   `toml:"insecure"`
	ServiceName string `toml:"service_name"`
	Debug       bool   `toml:"debug"`
}

// LLMConfig configures the provider behind the llm.chat task type.
type LLMConfig struct {
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`
	BaseURL   string `toml:"base_url"`

	// APIKeyEnv names the environment variable holding the API key.
	// When empty the key is looked up in the credentials file, then in the
	// provider's conventional variable (ANTHROPIC_API_KEY, ...).
	APIKeyEnv string `toml:"api_key_env"`

	// CredentialsFile overrides the credentials search path.
	CredentialsFile string `toml:"credentials_file"`

	// RequestsPerMinute caps calls to the provider across the pool.
	// Zero disables the limiter.
	RequestsPerMinute int `toml:"requests_per_minute"`
}

// Enabled reports whether an LLM provider is configured.
func (c LLMConfig) Enabled() bool {
	return c.Provider != ""
}

// AgentConfig describes one agent in the pool.
type AgentConfig struct {
	ID           string   `toml:"id"`
	Name         string   `toml:"name"`
	Type         string   `toml:"type"`
	Capabilities []string `toml:"capabilities"`

	// LLM registers the llm.chat handler on this agent.
	LLM bool `toml:"llm"`
}

// ToAgent converts to the agent package config.
func (a AgentConfig) ToAgent() agent.Config {
	return agent.Config{
		ID:           a.ID,
		Name:         a.Name,
		Type:         a.Type,
		Capabilities: append([]string(nil), a.Capabilities...),
	}
}

// Load reads, defaults and validates a TOML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes, defaults and validates TOML text.
// Unknown keys are rejected so typos do not silently fall back to defaults.
func Parse(text string) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(text, &cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied and no agents.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Pool.Name == "" {
		c.Pool.Name = "agentcore"
	}
	if c.Pool.HeartbeatInterval == 0 {
		c.Pool.HeartbeatInterval = 5 * time.Second
	}
	if c.Pool.DrainTimeout == 0 {
		c.Pool.DrainTimeout = 30 * time.Second
	}
	if c.Pool.DrainPoll == 0 {
		c.Pool.DrainPoll = 10 * time.Millisecond
	}
	if c.Journal.Backend == "" {
		c.Journal.Backend = "memory"
	}
	if c.Journal.KeyPrefix == "" {
		c.Journal.KeyPrefix = "agentcore."
	}
	if c.Bus.Backend == "" {
		c.Bus.Backend = "memory"
	}
	if c.Telemetry.Protocol == "" {
		c.Telemetry.Protocol = "grpc"
	}
	if c.LLM.Enabled() && c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 1024
	}
	for i := range c.Agents {
		if c.Agents[i].Name == "" {
			c.Agents[i].Name = c.Agents[i].ID
		}
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var problems []string

	if c.Pool.MaxConsecutiveFailures < 0 {
		problems = append(problems, "pool.max_consecutive_failures must not be negative")
	}
	for name, d := range map[string]time.Duration{
		"pool.heartbeat_interval": c.Pool.HeartbeatInterval,
		"pool.drain_timeout":      c.Pool.DrainTimeout,
		"pool.drain_poll":         c.Pool.DrainPoll,
	} {
		if d <= 0 {
			problems = append(problems, name+" must be positive")
		}
	}
	if c.Journal.TTL < 0 {
		problems = append(problems, "journal.ttl must not be negative")
	}

	switch c.Journal.Backend {
	case "memory":
	case "redis":
		if c.Journal.RedisURL == "" {
			problems = append(problems, "journal.redis_url is required for the redis backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown journal.backend %q", c.Journal.Backend))
	}

	switch c.Bus.Backend {
	case "memory":
	case "nats":
		if c.Bus.URL == "" {
			problems = append(problems, "bus.url is required for the nats backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown bus.backend %q", c.Bus.Backend))
	}

	switch c.Telemetry.Protocol {
	case "grpc", "http":
	default:
		problems = append(problems, fmt.Sprintf("unknown telemetry.protocol %q", c.Telemetry.Protocol))
	}

	if c.LLM.Enabled() {
		switch c.LLM.Provider {
		case "anthropic", "openai", "google":
		default:
			problems = append(problems, fmt.Sprintf("unknown llm.provider %q", c.LLM.Provider))
		}
		if c.LLM.Model == "" {
			problems = append(problems, "llm.model is required")
		}
		if c.LLM.MaxTokens < 0 {
			problems = append(problems, "llm.max_tokens must not be negative")
		}
		if c.LLM.RequestsPerMinute < 0 {
			problems = append(problems, "llm.requests_per_minute must not be negative")
		}
	}

	seen := make(map[string]bool, len(c.Agents))
	for i, a := range c.Agents {
		if a.ID == "" {
			problems = append(problems, fmt.Sprintf("agents[%d].id is required", i))
			continue
		}
		if seen[a.ID] {
			problems = append(problems, fmt.Sprintf("duplicate agent id %q", a.ID))
		}
		seen[a.ID] = true
		if err := a.ToAgent().Validate(); err != nil {
			problems = append(problems, err.Error())
		}
		if a.LLM && !c.LLM.Enabled() {
			problems = append(problems, fmt.Sprintf("agent %q has llm = true but no [llm] provider is configured", a.ID))
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
