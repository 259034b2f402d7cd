// Package roundsconfig loads the round engine's startup configuration: the
// round-level defaults a CreateRound falls back to, and the process-wide
// tunables (store mode, LLM pacing, price cache TTL, log level) the teacher's
// pkg/llm.Config loads for model routing.
package roundsconfig

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"roundforge-api/internal/confkit"
	"roundforge-api/pkg/round"
)

const (
	defaultExecutionInterval    = 30 * time.Second
	defaultMaxPositionFraction  = 0.3
	defaultTradingFeeRate       = 0.001
	defaultMinParticipants      = 1
	defaultMaxParticipants      = 10
	defaultStartingBalance      = 10000.0
	defaultDurationSeconds      = int64(24 * time.Hour / time.Second)
	defaultAutoStartDelay       = 5 * time.Second
	defaultMaxFanOutConcurrency = 10

	defaultStoreMode   = "memory"
	defaultPriceTTL    = 30 * time.Second
	defaultLogLevel    = "info"
	defaultLLMMinDelay = 0 * time.Second

	envStoreMode = "ROUNDFORGE_STORE_MODE"
	envRedisAddr = "ROUNDFORGE_REDIS_ADDR"
	envLogLevel  = "ROUNDFORGE_LOG_LEVEL"
)

// RoundDefaults mirrors round.Defaults with yaml tags; LoadConfig converts it
// into a round.Defaults so the rest of the engine never depends on this
// package's wire format.
type RoundDefaults struct {
	ExecutionInterval    string  `yaml:"execution_interval"`
	MaxPositionFraction  float64 `yaml:"max_position_fraction"`
	TradingFeeRate       float64 `yaml:"trading_fee_rate"`
	MinParticipants      int     `yaml:"min_participants"`
	MaxParticipants      int     `yaml:"max_participants"`
	StartingBalance      float64 `yaml:"starting_balance"`
	DurationSeconds      int64   `yaml:"duration_seconds"`
	AutoStartDelay       string  `yaml:"auto_start_delay"`
	MaxFanOutConcurrency int     `yaml:"max_fan_out_concurrency"`
}

// EngineSettings are the tunables that apply across every round rather than
// to any one round's defaults.
type EngineSettings struct {
	StoreMode        string `yaml:"store_mode"`
	RedisAddr        string `yaml:"redis_addr"`
	PriceCacheTTL    string `yaml:"price_cache_ttl"`
	LLMMinDelay      string `yaml:"llm_min_delay"`
	LogLevel         string `yaml:"log_level"`
}

// Config is the top-level shape of etc/roundforge.yaml.
type Config struct {
	Round  RoundDefaults  `yaml:"round"`
	Engine EngineSettings `yaml:"engine"`

	executionIntervalDur time.Duration
	autoStartDelayDur    time.Duration
	priceCacheTTLDur     time.Duration
	llmMinDelayDur       time.Duration
}

// LoadConfig reads the engine configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roundsconfig: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// MustLoad reads configuration from the default project location and panics
// on failure, matching the teacher's pkg/llm.MustLoad convention.
func MustLoad() *Config {
	path := confkit.MustProjectPath("etc/roundforge.yaml")
	cfg, err := LoadConfig(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadConfigFromReader constructs a Config from a reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	confkit.LoadDotenvOnce()
	var cfg Config

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read roundsconfig: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal roundsconfig: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	if err := cfg.parseDurations(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Round.MaxPositionFraction <= 0 {
		c.Round.MaxPositionFraction = defaultMaxPositionFraction
	}
	if c.Round.TradingFeeRate <= 0 {
		c.Round.TradingFeeRate = defaultTradingFeeRate
	}
	if c.Round.MinParticipants <= 0 {
		c.Round.MinParticipants = defaultMinParticipants
	}
	if c.Round.MaxParticipants <= 0 {
		c.Round.MaxParticipants = defaultMaxParticipants
	}
	if c.Round.StartingBalance <= 0 {
		c.Round.StartingBalance = defaultStartingBalance
	}
	if c.Round.DurationSeconds <= 0 {
		c.Round.DurationSeconds = defaultDurationSeconds
	}
	if c.Round.MaxFanOutConcurrency <= 0 {
		c.Round.MaxFanOutConcurrency = defaultMaxFanOutConcurrency
	}

	if strings.TrimSpace(c.Engine.StoreMode) == "" {
		c.Engine.StoreMode = defaultStoreMode
	}
	if strings.TrimSpace(c.Engine.LogLevel) == "" {
		c.Engine.LogLevel = defaultLogLevel
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(envStoreMode); v != "" {
		c.Engine.StoreMode = v
	}
	if v := os.Getenv(envRedisAddr); v != "" {
		c.Engine.RedisAddr = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		c.Engine.LogLevel = v
	}
}

func (c *Config) parseDurations() error {
	var err error
	c.executionIntervalDur, err = parseDurationOrDefault(c.Round.ExecutionInterval, defaultExecutionInterval, "round.execution_interval")
	if err != nil {
		return err
	}
	c.autoStartDelayDur, err = parseDurationOrDefault(c.Round.AutoStartDelay, defaultAutoStartDelay, "round.auto_start_delay")
	if err != nil {
		return err
	}
	c.priceCacheTTLDur, err = parseDurationOrDefault(c.Engine.PriceCacheTTL, defaultPriceTTL, "engine.price_cache_ttl")
	if err != nil {
		return err
	}
	c.llmMinDelayDur, err = parseDurationOrDefault(c.Engine.LLMMinDelay, defaultLLMMinDelay, "engine.llm_min_delay")
	if err != nil {
		return err
	}
	return nil
}

func parseDurationOrDefault(raw string, def time.Duration, field string) (time.Duration, error) {
	raw = strings.TrimSpace(os.ExpandEnv(raw))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("roundsconfig: invalid %s %q: %w", field, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("roundsconfig: %s must be positive, got %s", field, d)
	}
	return d, nil
}

// Validate checks that every loaded setting is within sane bounds.
func (c *Config) Validate() error {
	if c.Round.MaxPositionFraction <= 0 || c.Round.MaxPositionFraction > 1 {
		return errors.New("roundsconfig: round.max_position_fraction must be in (0, 1]")
	}
	if c.Round.TradingFeeRate < 0 || c.Round.TradingFeeRate >= 1 {
		return errors.New("roundsconfig: round.trading_fee_rate must be in [0, 1)")
	}
	if c.Round.MinParticipants > c.Round.MaxParticipants {
		return errors.New("roundsconfig: round.min_participants cannot exceed max_participants")
	}
	if c.Round.StartingBalance <= 0 {
		return errors.New("roundsconfig: round.starting_balance must be positive")
	}
	switch c.Engine.StoreMode {
	case "memory", "redis":
	default:
		return fmt.Errorf("roundsconfig: engine.store_mode must be memory or redis, got %q", c.Engine.StoreMode)
	}
	if c.Engine.StoreMode == "redis" && strings.TrimSpace(c.Engine.RedisAddr) == "" {
		return errors.New("roundsconfig: engine.redis_addr is required when store_mode is redis")
	}
	return nil
}

// RoundDefaults converts the loaded configuration into round.Defaults.
func (c *Config) RoundDefaults() round.Defaults {
	return round.Defaults{
		ExecutionInterval:    c.executionIntervalDur,
		MaxPositionFraction:  c.Round.MaxPositionFraction,
		TradingFeeRate:       c.Round.TradingFeeRate,
		MinParticipants:      c.Round.MinParticipants,
		MaxParticipants:      c.Round.MaxParticipants,
		StartingBalance:      c.Round.StartingBalance,
		DurationSeconds:      c.Round.DurationSeconds,
		AutoStartDelay:       c.autoStartDelayDur,
		MaxFanOutConcurrency: c.Round.MaxFanOutConcurrency,
	}
}

// PriceCacheTTL is the market feed's cache TTL.
func (c *Config) PriceCacheTTL() time.Duration { return c.priceCacheTTLDur }

// LLMMinDelay is the minimum spacing between consecutive LLM calls, the
// engine-wide pacing knob referenced by SPEC_FULL §4.9.
func (c *Config) LLMMinDelay() time.Duration { return c.llmMinDelayDur }

// StoreMode reports which kvstore.Store backend to wire: "memory" or "redis".
func (c *Config) StoreMode() string { return c.Engine.StoreMode }

// LogLevel returns the configured go-zero logx level string.
func (c *Config) LogLevel() string { return c.Engine.LogLevel }
