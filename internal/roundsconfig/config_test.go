package roundsconfig

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromReaderAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader(""))
	require.NoError(t, err)

	def := cfg.RoundDefaults()
	assert.Equal(t, defaultExecutionInterval, def.ExecutionInterval)
	assert.Equal(t, defaultMaxPositionFraction, def.MaxPositionFraction)
	assert.Equal(t, defaultMinParticipants, def.MinParticipants)
	assert.Equal(t, defaultMaxParticipants, def.MaxParticipants)
	assert.Equal(t, "memory", cfg.StoreMode())
	assert.Equal(t, 30*time.Second, cfg.PriceCacheTTL())
}

func TestLoadConfigFromReaderParsesOverrides(t *testing.T) {
	raw := `
round:
  execution_interval: 1m
  max_position_fraction: 0.5
  trading_fee_rate: 0.002
  min_participants: 2
  max_participants: 8
  starting_balance: 5000
  duration_seconds: 3600
  auto_start_delay: 10s
  max_fan_out_concurrency: 4
engine:
  store_mode: redis
  redis_addr: localhost:6379
  price_cache_ttl: 15s
  log_level: debug
`
	cfg, err := LoadConfigFromReader(strings.NewReader(raw))
	require.NoError(t, err)

	def := cfg.RoundDefaults()
	assert.Equal(t, time.Minute, def.ExecutionInterval)
	assert.Equal(t, 0.5, def.MaxPositionFraction)
	assert.Equal(t, 2, def.MinParticipants)
	assert.Equal(t, 8, def.MaxParticipants)
	assert.Equal(t, 5000.0, def.StartingBalance)
	assert.Equal(t, 10*time.Second, def.AutoStartDelay)
	assert.Equal(t, "redis", cfg.StoreMode())
	assert.Equal(t, 15*time.Second, cfg.PriceCacheTTL())
	assert.Equal(t, "debug", cfg.LogLevel())
}

func TestValidateRejectsRedisModeWithoutAddr(t *testing.T) {
	raw := `
engine:
  store_mode: redis
`
	_, err := LoadConfigFromReader(strings.NewReader(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis_addr is required")
}

func TestValidateRejectsMinGreaterThanMax(t *testing.T) {
	raw := `
round:
  min_participants: 5
  max_participants: 2
`
	_, err := LoadConfigFromReader(strings.NewReader(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_participants cannot exceed")
}
