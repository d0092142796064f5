package util

import (
	"testing"
)

func TestGetEnvWithDefault(t *testing.T) {
	t.Setenv("TEST_STRING", "test-value")
	if got := GetEnvWithDefault("TEST_STRING", "default"); got != "test-value" {
		t.Errorf("Expected GetEnvWithDefault to return 'test-value', got '%s'", got)
	}

	if got := GetEnvWithDefault("DDLKIT_MISSING_VAR", "default"); got != "default" {
		t.Errorf("Expected GetEnvWithDefault to return 'default', got '%s'", got)
	}

	// Empty values fall back to the default
	t.Setenv("EMPTY_VAR", "")
	if got := GetEnvWithDefault("EMPTY_VAR", "default"); got != "default" {
		t.Errorf("Expected GetEnvWithDefault to return 'default' for empty var, got '%s'", got)
	}
}

func TestDatabaseURLFromEnv(t *testing.T) {
	tests := []struct {
		name   string
		ddlkit string
		plain  string
		want   string
	}{
		{"none", "", "", ""},
		{"plain", "", "postgres://plain", "postgres://plain"},
		{"prefixed wins", "postgres://prefixed", "postgres://plain", "postgres://prefixed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DDLKIT_DATABASE_URL", tt.ddlkit)
			t.Setenv("DATABASE_URL", tt.plain)
			if got := DatabaseURLFromEnv(); got != tt.want {
				t.Errorf("DatabaseURLFromEnv() = %q, want %q", got, tt.want)
			}
		})
	}
}
