package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrInsecurePermissions is returned when a credentials file is readable by
// group or others.
var ErrInsecurePermissions = fmt.Errorf("credentials file has insecure permissions")

// Credentials holds provider API keys loaded from credentials.toml:
//
//	[anthropic]
//	api_key = "sk-ant-..."
//
//	[llm]
//	api_key = "fallback for any provider"
type Credentials struct {
	generic   string
	providers map[string]string
}

// CredentialPaths returns the credential file locations in priority order.
func CredentialPaths() []string {
	paths := []string{"credentials.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "agentcore", "credentials.toml"))
	}
	return paths
}

// LoadCredentials loads the first credentials file that exists. A missing
// file is not an error; the returned Credentials is then nil and lookups
// fall through to the environment.
func LoadCredentials(path string) (*Credentials, error) {
	candidates := CredentialPaths()
	if path != "" {
		candidates = []string{path}
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return loadCredentialsFile(p)
		}
	}
	if path != "" {
		return nil, fmt.Errorf("credentials file %s not found", path)
	}
	return nil, nil
}

func loadCredentialsFile(path string) (*Credentials, error) {
	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if mode := info.Mode().Perm(); mode&0o077 != 0 {
			return nil, fmt.Errorf("%w: %s has mode %04o (must not be group or world accessible)",
				ErrInsecurePermissions, path, mode)
		}
	}

	var raw map[string]map[string]interface{}
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	creds := &Credentials{providers: make(map[string]string)}
	for section, values := range raw {
		key, _ := values["api_key"].(string)
		if key == "" {
			continue
		}
		if section == "llm" {
			creds.generic = key
			continue
		}
		creds.providers[normalizeProvider(section)] = key
	}
	return creds, nil
}

// APIKey resolves the key for provider. Priority: the variable named by
// envName, the [provider] section, the [llm] section, then the provider's
// conventional environment variable.
func (c *Credentials) APIKey(provider, envName string) string {
	if envName != "" {
		if v := os.Getenv(envName); v != "" {
			return v
		}
	}
	if c != nil {
		if key := c.providers[normalizeProvider(provider)]; key != "" {
			return key
		}
		if c.generic != "" {
			return c.generic
		}
	}
	return os.Getenv(envVarForProvider(provider))
}

func normalizeProvider(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "-", ""))
}

// envVarForProvider returns the conventional variable for a provider.
func envVarForProvider(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	default:
		return strings.ToUpper(strings.ReplaceAll(provider, "-", "_")) + "_API_KEY"
	}
}
