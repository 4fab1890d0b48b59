package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// FeeSpec holds the platform monetization parameters applied to every
// outbound swap request. Read once at startup, immutable afterwards.
type FeeSpec struct {
	// Recipient receives the platform's share of the swap fee.
	Recipient string

	// Bps is the platform fee in basis points.
	Bps int

	// SurplusRecipient receives positive slippage, when configured.
	// Unlike Recipient it takes a single address: a caller-supplied
	// value is never overwritten or appended to.
	SurplusRecipient string
}

// Config holds the core runtime configuration for the gateway.
// Values are sourced from environment variables, with sensible
// defaults where appropriate. See .env.example.
type Config struct {
	ListenAddr string

	DatabaseURL string
	RedisURL    string

	// AlchemyAPIKey authenticates JSON-RPC pass-through calls.
	AlchemyAPIKey string

	// ZeroxAPIKey authenticates swap price/quote calls.
	ZeroxAPIKey string

	// ZeroxBaseURL is the swap aggregator's base URL. Overridable for
	// staging environments.
	ZeroxBaseURL string

	Fees FeeSpec

	// UpstreamTimeout is the hard per-call timeout for provider requests.
	UpstreamTimeout time.Duration

	// BootstrapPrincipal/BootstrapToken seed a first principal and
	// credential on a fresh deployment. If BootstrapToken is empty no
	// credential is seeded and the first key must be issued some other way.
	BootstrapPrincipal string
	BootstrapToken     string
}

// Load reads configuration from environment variables. Missing provider
// credentials or fee parameters are startup-fatal: the gateway refuses to
// come up rather than fail every swap or RPC request individually.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:         getenv("APP_LISTEN_ADDR", ":8080"),
		DatabaseURL:        os.Getenv("APP_DATABASE_URL"),
		RedisURL:           getenv("APP_REDIS_URL", "redis://localhost:6379"),
		AlchemyAPIKey:      os.Getenv("APP_ALCHEMY_API_KEY"),
		ZeroxAPIKey:        os.Getenv("APP_ZEROX_API_KEY"),
		ZeroxBaseURL:       getenv("APP_ZEROX_BASE_URL", "https://api.0x.org"),
		UpstreamTimeout:    30 * time.Second,
		BootstrapPrincipal: getenv("APP_BOOTSTRAP_PRINCIPAL", "atlas"),
		BootstrapToken:     os.Getenv("APP_BOOTSTRAP_TOKEN"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("APP_DATABASE_URL is required (PostgreSQL URL)")
	}
	if cfg.AlchemyAPIKey == "" {
		return nil, errors.New("APP_ALCHEMY_API_KEY is required for RPC pass-through")
	}
	if cfg.ZeroxAPIKey == "" {
		return nil, errors.New("APP_ZEROX_API_KEY is required for swap proxying")
	}

	cfg.Fees.Recipient = os.Getenv("APP_SWAP_FEE_RECIPIENT")
	if cfg.Fees.Recipient == "" {
		return nil, errors.New("APP_SWAP_FEE_RECIPIENT is required")
	}
	bpsRaw := os.Getenv("APP_SWAP_FEE_BPS")
	if bpsRaw == "" {
		return nil, errors.New("APP_SWAP_FEE_BPS is required")
	}
	bps, err := strconv.Atoi(bpsRaw)
	if err != nil || bps < 0 || bps > 10000 {
		return nil, fmt.Errorf("APP_SWAP_FEE_BPS must be an integer in [0,10000], got %q", bpsRaw)
	}
	cfg.Fees.Bps = bps
	cfg.Fees.SurplusRecipient = os.Getenv("APP_SURPLUS_RECIPIENT")

	if v := os.Getenv("APP_UPSTREAM_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.UpstreamTimeout = time.Duration(secs) * time.Second
		}
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
