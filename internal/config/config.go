package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds infrastructure-level configuration
// Per-conversation state (identities, sessions, pending requests) lives in the stores
type Config struct {
	// WalletConnect relay
	RelayURL       string
	ProjectID      string
	AppName        string
	AppURL         string
	AppDescription string

	// Database (optional; sessions and pending requests survive restarts when set)
	PostgresDSN string

	// Approval
	PendingRequestTTL time.Duration

	// Pairing rate limit (per conversation)
	PairingRatePerMinute int
	PairingBurst         int

	// Per-chain RPC URL overrides, keyed by chain ID (RPC_URL_<chainID> env vars)
	RPCOverrides map[int64]string

	// Metrics listener, 0 disables the endpoint
	MetricsPort int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		RelayURL:             getEnv("WALLETCONNECT_RELAY_URL", "wss://relay.walletconnect.com"),
		ProjectID:            getEnv("WALLETCONNECT_PROJECT_ID", ""),
		AppName:              getEnv("APP_NAME", "Chat Web3 Wallet"),
		AppURL:               getEnv("APP_URL", "https://example.com"),
		AppDescription:       getEnv("APP_DESCRIPTION", "A chat bot wallet for Web3 interactions"),
		PostgresDSN:          getEnv("POSTGRES_DSN", ""),
		PendingRequestTTL:    getEnvDuration("PENDING_REQUEST_TTL", 5*time.Minute),
		PairingRatePerMinute: getEnvInt("PAIRING_RATE_PER_MINUTE", 6),
		PairingBurst:         getEnvInt("PAIRING_BURST", 3),
		RPCOverrides:         loadRPCOverrides(),
		MetricsPort:          getEnvInt("METRICS_PORT", 0),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("WALLETCONNECT_PROJECT_ID is required")
	}

	if !strings.HasPrefix(c.RelayURL, "ws://") && !strings.HasPrefix(c.RelayURL, "wss://") {
		return fmt.Errorf("WALLETCONNECT_RELAY_URL must be a ws:// or wss:// URL, got: %s", c.RelayURL)
	}

	if c.PendingRequestTTL <= 0 {
		return fmt.Errorf("PENDING_REQUEST_TTL must be positive, got: %s", c.PendingRequestTTL)
	}

	if c.PairingRatePerMinute <= 0 || c.PairingBurst <= 0 {
		return fmt.Errorf("pairing rate limit values must be positive")
	}

	return nil
}

// loadRPCOverrides collects RPC_URL_<chainID> environment variables
func loadRPCOverrides() map[int64]string {
	overrides := make(map[int64]string)
	for _, entry := range os.Environ() {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || value == "" {
			continue
		}
		idStr, found := strings.CutPrefix(key, "RPC_URL_")
		if !found {
			continue
		}
		chainID, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}
		overrides[chainID] = value
	}
	return overrides
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
