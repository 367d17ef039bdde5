package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/Simplici0/cotizador/internal/pricing"
)

const (
	defaultAppEnv         = "development"
	defaultDBPath         = "./dev.db"
	defaultPort           = "8080"
	defaultLogFormat      = "json"
	defaultLogLevel       = "info"
	defaultRecalcDebounce = 400 * time.Millisecond
	defaultPersistRetry   = 5
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	AppEnv          string
	DBPath          string
	Port            string
	RedisAddr       string
	LogFormat       string
	LogLevel        string
	RecalcDebounce  time.Duration
	PersistMaxRetry int

	policy pricing.Policy
}

// policyKeys maps environment keys to the policy field they override.
var policyKeys = []struct {
	key   string
	field func(*pricing.Policy) *float64
}{
	{"PRICING_SHIPPING_RATE_PER_KG", func(p *pricing.Policy) *float64 { return &p.ShippingRatePerKg }},
	{"PRICING_MINIMUM_SHIPPING", func(p *pricing.Policy) *float64 { return &p.MinimumShippingCost }},
	{"PRICING_PROCESSING_FEE", func(p *pricing.Policy) *float64 { return &p.ProcessingFee }},
	{"PRICING_HANDLING_FEE", func(p *pricing.Policy) *float64 { return &p.HandlingFee }},
	{"PRICING_SALES_TAX_PERCENT", func(p *pricing.Policy) *float64 { return &p.SalesTaxPercentage }},
	{"PRICING_IMPORT_TAX_PERCENT", func(p *pricing.Policy) *float64 { return &p.ImportTaxPercentage }},
	{"PRICING_IMPORT_TAX_THRESHOLD", func(p *pricing.Policy) *float64 { return &p.ImportTaxThreshold }},
	{"PRICING_MARGIN_PERCENT", func(p *pricing.Policy) *float64 { return &p.DefaultMarginPercentage }},
	{"PRICING_MARGIN_PEN", func(p *pricing.Policy) *float64 { return &p.DefaultMarginPEN }},
	{"PRICING_MARGIN_THRESHOLD", func(p *pricing.Policy) *float64 { return &p.PercentageMarginThreshold }},
	{"PRICING_EXCHANGE_RATE", func(p *pricing.Policy) *float64 { return &p.DefaultExchangeRate }},
}

// Load reads environment variables, plus a local .env file when present, and returns a populated Config.
func Load() (*Config, error) {
	// Missing .env is fine; production injects real environment variables.
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:          valueOrDefault(k.String("APP_ENV"), defaultAppEnv),
		DBPath:          valueOrDefault(k.String("DB_PATH"), defaultDBPath),
		Port:            valueOrDefault(k.String("PORT"), defaultPort),
		RedisAddr:       strings.TrimSpace(k.String("REDIS_ADDR")),
		LogFormat:       valueOrDefault(k.String("LOG_FORMAT"), defaultLogFormat),
		LogLevel:        valueOrDefault(k.String("LOG_LEVEL"), defaultLogLevel),
		RecalcDebounce:  defaultRecalcDebounce,
		PersistMaxRetry: defaultPersistRetry,
		policy:          pricing.DefaultPolicy(),
	}

	if raw := strings.TrimSpace(k.String("RECALC_DEBOUNCE")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("RECALC_DEBOUNCE must be a non-negative duration, got %q", raw)
		}
		cfg.RecalcDebounce = d
	}
	if raw := strings.TrimSpace(k.String("PERSIST_MAX_RETRY")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("PERSIST_MAX_RETRY must be a non-negative integer, got %q", raw)
		}
		cfg.PersistMaxRetry = n
	}

	for _, pk := range policyKeys {
		raw := strings.TrimSpace(k.String(pk.key))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be numeric, got %q", pk.key, raw)
		}
		*pk.field(&cfg.policy) = v
	}
	if err := cfg.policy.Validate(); err != nil {
		return nil, fmt.Errorf("pricing policy from environment: %w", err)
	}

	return cfg, nil
}

// Policy returns the pricing policy seeded from the environment.
func (c *Config) Policy() pricing.Policy {
	return c.policy
}

// IsDev reports whether the app runs in a development environment.
func (c *Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "development", "dev", "local":
		return true
	default:
		return false
	}
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func valueOrDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
