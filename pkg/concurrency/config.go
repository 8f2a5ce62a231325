package concurrency

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// OrderingMode defines how parallel map results are yielded
type OrderingMode string

const (
	OrderingModeInput      OrderingMode = "input"
	OrderingModeCompletion OrderingMode = "completion"
)

// ConfigSource indicates where the configuration came from
type ConfigSource string

const (
	ConfigSourceEnvVar  ConfigSource = "environment_variable"
	ConfigSourceDefault ConfigSource = "default"
)

// Config holds suite-wide concurrency parameters for the task adapter
type Config struct {
	MaxConcurrent int
	AwaitTimeout  time.Duration
	OrderingMode  OrderingMode
	Source        ConfigSource
	EffectiveCPUs int
}

// LoadConfig loads concurrency configuration with priority: env vars > defaults
func LoadConfig() *Config {
	config := &Config{}

	// Effective CPUs respects GOMAXPROCS overrides
	config.EffectiveCPUs = runtime.GOMAXPROCS(0)
	config.Source = ConfigSourceDefault

	if maxConcurrent := getEnvInt("DAEDALUS_MAX_CONCURRENT", 0); maxConcurrent > 0 {
		config.MaxConcurrent = maxConcurrent
		config.Source = ConfigSourceEnvVar
	} else {
		config.MaxConcurrent = config.EffectiveCPUs
	}
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = 1
	}

	if timeoutMs := getEnvInt("DAEDALUS_AWAIT_TIMEOUT_MS", 0); timeoutMs > 0 {
		config.AwaitTimeout = time.Duration(timeoutMs) * time.Millisecond
		config.Source = ConfigSourceEnvVar
	} else {
		config.AwaitTimeout = 5 * time.Second
	}

	if mode := getEnv("DAEDALUS_ORDERING_MODE", ""); mode != "" {
		config.OrderingMode = OrderingMode(strings.ToLower(mode))
		config.Source = ConfigSourceEnvVar
	} else {
		// Input order is more predictable for test assertions
		config.OrderingMode = OrderingModeInput
	}
	if config.OrderingMode != OrderingModeInput && config.OrderingMode != OrderingModeCompletion {
		config.OrderingMode = OrderingModeInput
	}

	return config
}

// getEnvInt retrieves an integer from environment variable with default fallback
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnv retrieves a string from environment variable with default fallback
func getEnv(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// String returns a formatted string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{MaxConcurrent: %d, AwaitTimeout: %s, OrderingMode: %s, CPUs: %d, Source: %s}",
		c.MaxConcurrent,
		c.AwaitTimeout,
		c.OrderingMode,
		c.EffectiveCPUs,
		c.Source,
	)
}
