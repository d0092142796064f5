package util

import (
	"os"
)

// GetEnvWithDefault returns the value of an environment variable or a default value if not set
func GetEnvWithDefault(envVar, defaultValue string) string {
	if value := os.Getenv(envVar); value != "" {
		return value
	}
	return defaultValue
}

// DatabaseURLFromEnv returns DDLKIT_DATABASE_URL, falling back to DATABASE_URL.
func DatabaseURLFromEnv() string {
	return GetEnvWithDefault("DDLKIT_DATABASE_URL", os.Getenv("DATABASE_URL"))
}
