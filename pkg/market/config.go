package market

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"roundforge-api/internal/confkit"
)

const (
	defaultCacheTTL          = 30 * time.Second
	defaultChain             = "base"
	defaultMinLiquidityUSD   = 5000.0
	defaultDexAggregatorURL  = "https://api.dexscreener.com/latest/dex"
	defaultSpotFallbackURL   = "https://api.coinbase.com/v2/prices"
	defaultHTTPTimeout       = 5 * time.Second

	envDexAggregatorURL = "MARKET_DEX_AGGREGATOR_URL"
	envSpotFallbackURL  = "MARKET_SPOT_FALLBACK_URL"
	envChain            = "MARKET_CHAIN"
)

// Config holds the price feed's whitelist and endpoint settings, loaded the way the
// teacher's pkg/llm.Config loads model routing: a typed struct, a yaml.v3 file, and a
// small set of env-var overrides applied after defaults.
type Config struct {
	Chain             string                     `yaml:"chain"`
	CacheTTL          time.Duration              `yaml:"-"`
	MinLiquidityUSD   float64                    `yaml:"min_liquidity_usd"`
	DexAggregatorURL  string                     `yaml:"dex_aggregator_url"`
	SpotFallbackURL   string                     `yaml:"spot_fallback_url"`
	HTTPTimeout       time.Duration              `yaml:"-"`
	Whitelist         map[string]WhitelistEntry  `yaml:"whitelist"`

	cacheTTLRaw    string `yaml:"cache_ttl"`
	httpTimeoutRaw string `yaml:"http_timeout"`
}

// LoadConfig reads the price feed configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open market config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from a reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	confkit.LoadDotenvOnce()
	var raw struct {
		Chain            string                    `yaml:"chain"`
		CacheTTL         string                    `yaml:"cache_ttl"`
		MinLiquidityUSD  float64                   `yaml:"min_liquidity_usd"`
		DexAggregatorURL string                    `yaml:"dex_aggregator_url"`
		SpotFallbackURL  string                    `yaml:"spot_fallback_url"`
		HTTPTimeout      string                    `yaml:"http_timeout"`
		Whitelist        map[string]WhitelistEntry `yaml:"whitelist"`
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read market config: %w", err)
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal market config: %w", err)
	}

	cfg := &Config{
		Chain:            raw.Chain,
		MinLiquidityUSD:  raw.MinLiquidityUSD,
		DexAggregatorURL: raw.DexAggregatorURL,
		SpotFallbackURL:  raw.SpotFallbackURL,
		Whitelist:        raw.Whitelist,
		cacheTTLRaw:      raw.CacheTTL,
		httpTimeoutRaw:   raw.HTTPTimeout,
	}

	for symbol, entry := range cfg.Whitelist {
		entry.Symbol = strings.ToUpper(symbol)
		cfg.Whitelist[symbol] = entry
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	if err := cfg.parseDurations(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Chain) == "" {
		c.Chain = defaultChain
	}
	if c.MinLiquidityUSD <= 0 {
		c.MinLiquidityUSD = defaultMinLiquidityUSD
	}
	if strings.TrimSpace(c.DexAggregatorURL) == "" {
		c.DexAggregatorURL = defaultDexAggregatorURL
	}
	if strings.TrimSpace(c.SpotFallbackURL) == "" {
		c.SpotFallbackURL = defaultSpotFallbackURL
	}
	if c.Whitelist == nil {
		c.Whitelist = make(map[string]WhitelistEntry)
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(envChain); v != "" {
		c.Chain = v
	}
	if v := os.Getenv(envDexAggregatorURL); v != "" {
		c.DexAggregatorURL = v
	}
	if v := os.Getenv(envSpotFallbackURL); v != "" {
		c.SpotFallbackURL = v
	}
}

func (c *Config) parseDurations() error {
	if strings.TrimSpace(c.cacheTTLRaw) == "" {
		c.CacheTTL = defaultCacheTTL
	} else {
		d, err := time.ParseDuration(c.cacheTTLRaw)
		if err != nil {
			return fmt.Errorf("market config: invalid cache_ttl %q: %w", c.cacheTTLRaw, err)
		}
		c.CacheTTL = d
	}

	if strings.TrimSpace(c.httpTimeoutRaw) == "" {
		c.HTTPTimeout = defaultHTTPTimeout
	} else {
		d, err := time.ParseDuration(c.httpTimeoutRaw)
		if err != nil {
			return fmt.Errorf("market config: invalid http_timeout %q: %w", c.httpTimeoutRaw, err)
		}
		c.HTTPTimeout = d
	}
	return nil
}

// Validate checks that the feed has at least one whitelisted symbol and sane
// endpoint/TTL settings.
func (c *Config) Validate() error {
	if len(c.Whitelist) == 0 {
		return errors.New("market config: whitelist must not be empty")
	}
	if c.CacheTTL <= 0 {
		return errors.New("market config: cache_ttl must be positive")
	}
	if c.MinLiquidityUSD < 0 {
		return errors.New("market config: min_liquidity_usd cannot be negative")
	}
	for symbol, entry := range c.Whitelist {
		if entry.ReferencePrice <= 0 {
			return fmt.Errorf("market config: whitelist[%s].reference_price must be positive", symbol)
		}
	}
	return nil
}
