// Package strategy implements the Strategy Registry (spec §4.4): registration,
// licensing, ranking and stat-tracking for natural-language trading strategies,
// persisted through the engine's kvstore.Store the same way the teacher's
// pkg/repo/trader_config_repo.go persists trader configs through sqlx — one typed
// record, one set of cursor-scanned keys, one counter for ids.
package strategy

import (
	"time"

	"roundforge-api/pkg/llm"
)

// Stats are a strategy's aggregate performance numbers, recomputed on every
// UpdateStats call (spec §4.4).
type Stats struct {
	TotalUses        int64   `json:"total_uses"`
	TotalEarnings    float64 `json:"total_earnings"`
	TotalTrades      int64   `json:"total_trades"`
	SuccessfulTrades int64   `json:"successful_trades"`
	WinRate          float64 `json:"win_rate"`
	BestPerformance  float64 `json:"best_performance"`
	AverageReturn    float64 `json:"average_return"`
}

// Strategy is a registered strategy record (spec §3).
type Strategy struct {
	ID          int64              `json:"id"`
	Owner       string             `json:"owner"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Text        string             `json:"text"`
	Parsed      llm.ParsedStrategy `json:"parsed"`
	RoyaltyPct  float64            `json:"royalty_pct"`
	Stats       Stats              `json:"stats"`
	Active      bool               `json:"active"`
	Verified    bool               `json:"verified"`
	Tags        []string           `json:"tags"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// License captures one (licensee, round) license against a strategy (spec §3).
type License struct {
	Licensee        string    `json:"licensee"`
	StrategyID      int64     `json:"strategy_id"`
	RoundID         string    `json:"round_id"`
	StrategyOwner   string    `json:"strategy_owner"`
	RoyaltyPct      float64   `json:"royalty_pct"`
	ProfitShared    float64   `json:"profit_shared"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
}

// Outcome is one trade's result, fed into UpdateStats.
type Outcome struct {
	Won          bool
	ReturnPct    float64
	EarningsUSD  float64
}

const (
	strategyTTL = 365 * 24 * time.Hour
	licenseTTL  = 30 * 24 * time.Hour

	minRoyaltyPct = 5
	maxRoyaltyPct = 50

	listTopPageSize = 100
)
