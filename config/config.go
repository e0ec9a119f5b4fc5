// Package config loads the orchestrator's settings using the teacher's
// three-layer priority: defaults, then environment variable overrides,
// then functional options (grounded on core/config.go's Config/LoadFromEnv/
// Option pattern).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable of the orchestrator process.
type Config struct {
	Port int `yaml:"port"`

	AgentsFile string `yaml:"agents_file"`
	RulesFile  string `yaml:"rules_file"`

	GatewayBaseURL string `yaml:"gateway_base_url"`
	GatewayAPIKey  string `yaml:"-"` // never sourced from YAML, env-only
	GatewayModel   string `yaml:"gateway_model"`

	ReasoningStrategy string `yaml:"reasoning_strategy"` // rule | ai | hybrid

	MaxRetries     int           `yaml:"max_retries"`
	DefaultTimeout time.Duration `yaml:"default_timeout"`
	PipelineDeadline time.Duration `yaml:"pipeline_deadline"`

	ValidationThreshold float64 `yaml:"validation_threshold"`
	EnableAIValidation  bool    `yaml:"enable_ai_validation"`

	CacheEnabled bool          `yaml:"cache_enabled"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`

	SessionIdleTTL time.Duration `yaml:"session_idle_ttl"`
	SessionRedisURL string       `yaml:"-"` // never sourced from YAML, env-only
	QueryLogDir    string        `yaml:"query_log_dir"`

	DrainGracePeriod time.Duration `yaml:"drain_grace_period"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the baseline configuration before env/option overrides,
// matching the floors and defaults named throughout spec.md.
func Default() *Config {
	return &Config{
		Port:                8080,
		AgentsFile:          "agents.yaml",
		RulesFile:           "rules.yaml",
		GatewayModel:        "claude-3-5-sonnet-20241022",
		ReasoningStrategy:   "hybrid",
		MaxRetries:          2,
		DefaultTimeout:      30 * time.Second,
		PipelineDeadline:    120 * time.Second,
		ValidationThreshold: 0.70,
		CacheEnabled:        false,
		CacheTTL:            5 * time.Minute,
		SessionIdleTTL:      24 * time.Hour,
		QueryLogDir:         "./querylogs",
		DrainGracePeriod:    30 * time.Second,
		LogLevel:            "info",
	}
}

// Option mutates a Config. Options are applied last and therefore win
// over both defaults and environment variables.
type Option func(*Config)

func WithPort(p int) Option                { return func(c *Config) { c.Port = p } }
func WithAgentsFile(path string) Option    { return func(c *Config) { c.AgentsFile = path } }
func WithRulesFile(path string) Option     { return func(c *Config) { c.RulesFile = path } }
func WithReasoningStrategy(s string) Option { return func(c *Config) { c.ReasoningStrategy = s } }
func WithQueryLogDir(dir string) Option    { return func(c *Config) { c.QueryLogDir = dir } }

// New builds a Config from defaults, environment variables, then opts, in
// that priority order.
func New(opts ...Option) (*Config, error) {
	c := Default()
	c.LoadFromEnv()
	for _, opt := range opts {
		opt(c)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFromEnv overrides Config fields from AGENTFLOW_* environment
// variables, grounded field-for-field on core/config.go's LoadFromEnv.
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("AGENTFLOW_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("AGENTFLOW_AGENTS_FILE"); v != "" {
		c.AgentsFile = v
	}
	if v := os.Getenv("AGENTFLOW_RULES_FILE"); v != "" {
		c.RulesFile = v
	}
	if v := os.Getenv("AGENTFLOW_GATEWAY_BASE_URL"); v != "" {
		c.GatewayBaseURL = v
	}
	if v := os.Getenv("AGENTFLOW_GATEWAY_API_KEY"); v != "" {
		c.GatewayAPIKey = v
	}
	if v := os.Getenv("AGENTFLOW_GATEWAY_MODEL"); v != "" {
		c.GatewayModel = v
	}
	if v := os.Getenv("AGENTFLOW_REASONING_STRATEGY"); v != "" {
		c.ReasoningStrategy = v
	}
	if v := os.Getenv("AGENTFLOW_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRetries = n
		}
	}
	if v := os.Getenv("AGENTFLOW_DEFAULT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.DefaultTimeout = d
		}
	}
	if v := os.Getenv("AGENTFLOW_PIPELINE_DEADLINE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.PipelineDeadline = d
		}
	}
	if v := os.Getenv("AGENTFLOW_VALIDATION_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.ValidationThreshold = f
		}
	}
	if v := os.Getenv("AGENTFLOW_ENABLE_AI_VALIDATION"); v != "" {
		c.EnableAIValidation = v == "true" || v == "1"
	}
	if v := os.Getenv("AGENTFLOW_CACHE_ENABLED"); v != "" {
		c.CacheEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("AGENTFLOW_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.CacheTTL = d
		}
	}
	if v := os.Getenv("AGENTFLOW_SESSION_IDLE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.SessionIdleTTL = d
		}
	}
	if v := os.Getenv("AGENTFLOW_SESSION_REDIS_URL"); v != "" {
		c.SessionRedisURL = v
	}
	if v := os.Getenv("AGENTFLOW_QUERY_LOG_DIR"); v != "" {
		c.QueryLogDir = v
	}
	if v := os.Getenv("AGENTFLOW_DRAIN_GRACE_PERIOD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.DrainGracePeriod = d
		}
	}
	if v := os.Getenv("AGENTFLOW_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate rejects configurations that would make the pipeline's
// invariants unsatisfiable.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("config: max_retries must be >= 0")
	}
	if c.ValidationThreshold < 0 || c.ValidationThreshold > 1 {
		return fmt.Errorf("config: validation_threshold must be in [0,1]")
	}
	switch c.ReasoningStrategy {
	case "rule", "ai", "hybrid":
	default:
		return fmt.Errorf("config: unknown reasoning_strategy %q", c.ReasoningStrategy)
	}
	return nil
}
