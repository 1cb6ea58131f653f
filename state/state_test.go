package state

import (
	"strings"
	"testing"
	"time"
)

// ============================================================================
// ValidateKey tests
// ============================================================================

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"valid simple key", "mykey", nil},
		{"valid dotted key", "tasks.abc-123", nil},
		{"valid long key", strings.Repeat("a", 1024), nil},
		{"empty key", "", ErrInvalidKey},
		{"key with space", "key with space", ErrInvalidKey},
		{"key with tab", "key\tx", ErrInvalidKey},
		{"leading dot", ".key", ErrInvalidKey},
		{"trailing dot", "key.", ErrInvalidKey},
		{"too long key", strings.Repeat("a", 1025), ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateKey(tt.key); err != tt.wantErr {
				t.Errorf("ValidateKey(%q) = %v, want %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestValidateTTL(t *testing.T) {
	if err := ValidateTTL(0); err != nil {
		t.Errorf("ValidateTTL(0) = %v", err)
	}
	if err := ValidateTTL(time.Second); err != nil {
		t.Errorf("ValidateTTL(1s) = %v", err)
	}
	if err := ValidateTTL(-time.Second); err != ErrInvalidTTL {
		t.Errorf("ValidateTTL(-1s) = %v, want ErrInvalidTTL", err)
	}
}

// ============================================================================
// MatchPattern tests
// ============================================================================

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"*", "anything", true},
		{"", "anything", true},
		{"tasks.*", "tasks.1", true},
		{"tasks.*", "tasks.", true},
		{"tasks.*", "task.1", false},
		{"tasks.1", "tasks.1", true},
		{"tasks.1", "tasks.10", false},
	}

	for _, tt := range tests {
		if got := MatchPattern(tt.pattern, tt.key); got != tt.want {
			t.Errorf("MatchPattern(%q, %q) = %v, want %v", tt.pattern, tt.key, got, tt.want)
		}
	}
}

func TestRedisGlob(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"", "*"},
		{"*", "*"},
		{"tasks.*", "tasks.*"},
		{"tasks.1", "tasks.1"},
		{"a?b*", `a\?b*`},
		{"x[1]", `x\[1\]`},
	}

	for _, tt := range tests {
		if got := redisGlob(tt.pattern); got != tt.want {
			t.Errorf("redisGlob(%q) = %q, want %q", tt.pattern, got, tt.want)
		}
	}
}
