// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq scheduler and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// MatchRule is the per-request-type eligibility and ranking configuration.
type MatchRule struct {
	// TopN bounds the number of candidates dispatched per request.
	TopN int `yaml:"topN"`
	// MinRating is the eligibility floor on candidate rating (0 disables).
	MinRating float64 `yaml:"minRating"`
	// MinVolume is the eligibility floor on the type's volume counter (0 disables).
	MinVolume int64 `yaml:"minVolume"`
	// RequireSpecialization enables category-to-specialization matching.
	RequireSpecialization bool `yaml:"requireSpecialization"`
}

// MatchingConfig provides matching rule sets per request type.
type MatchingConfig interface {
	GetMatchRule(requestType string) MatchRule
	GetRegionWildcard() string
}

// CommissionConfig provides commission rates.
type CommissionConfig interface {
	GetStandardRateBps() int
	GetIntroducerSplitBps() int
	GetMaxOverrideMultiple() int
}

// PaymentConfig provides settings for the payment collaborator.
type PaymentConfig interface {
	GetPaymentAPIURL() string
	GetPaymentAPIKey() string
	IsPaymentEnabled() bool
}

// =============================================================================
// Config
// =============================================================================

// rulesFile is the shape of the optional YAML overrides file.
type rulesFile struct {
	RegionWildcard     string               `yaml:"regionWildcard"`
	StandardRateBps    *int                 `yaml:"standardRateBps"`
	IntroducerSplitBps *int                 `yaml:"introducerSplitBps"`
	Rules              map[string]MatchRule `yaml:"rules"`
}

// Config holds all application configuration loaded from the environment,
// with matching rules and commission rates optionally overridden from a
// YAML file (MATCH_RULES_FILE).
type Config struct {
	Env      string
	HTTPAddr string

	DatabaseURL string

	JWTAccessSecret string

	CORSAllowAll   bool
	CORSOrigins    []string
	CORSAllowCreds bool

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	RegionWildcard     string
	MatchRules         map[string]MatchRule
	StandardRateBps    int
	IntroducerSplitBps int
	// MaxOverrideMultiple caps a caller-supplied fee override at this
	// multiple of the standard fee. Overrides are never trusted verbatim.
	MaxOverrideMultiple int

	PaymentAPIURL string
	PaymentAPIKey string
}

// defaultMatchRules mirrors the dispatch bounds used across request types:
// broad fan-out for property leads, a short list for valuations and bookings,
// exactly one designated target for referrals. Valuations additionally carry
// experience and rating floors.
func defaultMatchRules() map[string]MatchRule {
	return map[string]MatchRule{
		"property_submission": {TopN: 10, RequireSpecialization: true},
		"valuation":           {TopN: 5, MinRating: 4.0, MinVolume: 5},
		"booking":             {TopN: 5},
		"referral":            {TopN: 1, RequireSpecialization: true},
	}
}

// Load reads configuration from the environment (and .env if present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTAccessSecret: os.Getenv("JWT_ACCESS_SECRET"),

		CORSAllowAll:   getBool("CORS_ALLOW_ALL", false),
		CORSOrigins:    splitCSV(os.Getenv("CORS_ORIGINS")),
		CORSAllowCreds: getBool("CORS_ALLOW_CREDENTIALS", true),

		RedisURL:         os.Getenv("REDIS_URL"),
		RedisTLSInsecure: getBool("REDIS_TLS_INSECURE", false),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: getInt("ASYNQ_CONCURRENCY", 10),

		RegionWildcard:      getEnv("REGION_WILDCARD", "nationwide"),
		MatchRules:          defaultMatchRules(),
		StandardRateBps:     getInt("COMMISSION_STANDARD_RATE_BPS", 500),
		IntroducerSplitBps:  getInt("COMMISSION_INTRODUCER_SPLIT_BPS", 2000),
		MaxOverrideMultiple: getInt("COMMISSION_MAX_OVERRIDE_MULTIPLE", 3),

		PaymentAPIURL: os.Getenv("PAYMENT_API_URL"),
		PaymentAPIKey: os.Getenv("PAYMENT_API_KEY"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.StandardRateBps < 0 || cfg.StandardRateBps > 10000 {
		return nil, fmt.Errorf("COMMISSION_STANDARD_RATE_BPS out of range: %d", cfg.StandardRateBps)
	}
	if cfg.IntroducerSplitBps < 0 || cfg.IntroducerSplitBps > 10000 {
		return nil, fmt.Errorf("COMMISSION_INTRODUCER_SPLIT_BPS out of range: %d", cfg.IntroducerSplitBps)
	}

	if path := os.Getenv("MATCH_RULES_FILE"); path != "" {
		if err := cfg.applyRulesFile(path); err != nil {
			return nil, fmt.Errorf("load match rules file: %w", err)
		}
	}

	return cfg, nil
}

func (c *Config) applyRulesFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var overrides rulesFile
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return err
	}

	if overrides.RegionWildcard != "" {
		c.RegionWildcard = overrides.RegionWildcard
	}
	if overrides.StandardRateBps != nil {
		c.StandardRateBps = *overrides.StandardRateBps
	}
	if overrides.IntroducerSplitBps != nil {
		c.IntroducerSplitBps = *overrides.IntroducerSplitBps
	}
	for requestType, rule := range overrides.Rules {
		c.MatchRules[requestType] = rule
	}

	return nil
}

// Interface implementations.

func (c *Config) GetDatabaseURL() string     { return c.DatabaseURL }
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// GetMatchRule returns the rule set for a request type. Unknown types fall
// back to a conservative single-candidate dispatch.
func (c *Config) GetMatchRule(requestType string) MatchRule {
	if rule, ok := c.MatchRules[requestType]; ok {
		return rule
	}
	return MatchRule{TopN: 1}
}

func (c *Config) GetRegionWildcard() string { return c.RegionWildcard }

func (c *Config) GetStandardRateBps() int     { return c.StandardRateBps }
func (c *Config) GetIntroducerSplitBps() int  { return c.IntroducerSplitBps }
func (c *Config) GetMaxOverrideMultiple() int { return c.MaxOverrideMultiple }

func (c *Config) GetPaymentAPIURL() string { return c.PaymentAPIURL }
func (c *Config) GetPaymentAPIKey() string { return c.PaymentAPIKey }
func (c *Config) IsPaymentEnabled() bool   { return c.PaymentAPIURL != "" }

// Helpers.

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
