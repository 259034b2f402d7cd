// Package round implements the Round Manager (spec §4.6): the lifecycle state
// machine, join protocol, periodic per-round execution scheduler, and leaderboard
// rebuild that together orchestrate a trading-simulation round. It is the
// composition root for the KV Store, Price Feed, LLM Client, Strategy Registry,
// Portfolio Engine and Event Bus — the same role the teacher's pkg/manager.Manager
// plays over traders, positions and the executor.
package round

import (
	"time"

	"roundforge-api/pkg/llm"
	"roundforge-api/pkg/portfolio"
)

// Status is a round's lifecycle state (spec §4.6).
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusFinished  Status = "finished"
	StatusCancelled Status = "cancelled"
)

// Settings are the per-round tunables captured at creation time (spec §3).
type Settings struct {
	ExecutionInterval    time.Duration `json:"execution_interval"`
	MaxPositionFraction  float64       `json:"max_position_fraction"`
	TradingFeeRate       float64       `json:"trading_fee_rate"`
	AllowedSymbols       []string      `json:"allowed_symbols"`
	AutoStart            bool          `json:"auto_start"`
	ExpectedProfitPct    float64       `json:"expected_profit_pct"`
}

// Stats are round-level aggregates maintained by the manager as participants join
// and the round progresses.
type Stats struct {
	TotalParticipants int `json:"total_participants"`
	TotalTrades       int `json:"total_trades"`
}

// Round is a time-boxed, multi-participant simulated-trading session (spec §3).
type Round struct {
	ID              string    `json:"id"`
	Number          int64     `json:"number"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	DurationMs      int64     `json:"duration_ms"`
	StartingBalance float64   `json:"starting_balance"`
	MinParticipants int       `json:"min_participants"`
	MaxParticipants int       `json:"max_participants"`
	Settings        Settings  `json:"settings"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	StartAt         time.Time `json:"start_at"`
	EndAt           time.Time `json:"end_at"`
	Stats           Stats     `json:"stats"`

	// AutoStartArmed is set once totalParticipants first reaches MaxParticipants,
	// so the 5s auto-start timer fires at most once per round (spec §4.6 invariant).
	AutoStartArmed bool `json:"auto_start_armed"`
}

// BindingKind tags which of the three StrategyBinding variants a participant holds
// (spec §9 "mixed-ownership strategy binding").
type BindingKind string

const (
	BindingInline   BindingKind = "inline"
	BindingOwned    BindingKind = "owned"
	BindingLicensed BindingKind = "licensed"
)

// StrategyBinding is a tagged variant: exactly one of Inline/Owned/Licensed is
// meaningful, selected by Kind. The Licensed variant captures RoyaltyPct at bind
// time so a later royalty change on the source strategy never retroactively alters
// a closed license (spec §9).
type StrategyBinding struct {
	Kind BindingKind `json:"kind"`

	// Inline: set only when Kind == BindingInline.
	InlineText string `json:"inline_text,omitempty"`

	// Owned/Licensed: the strategy id this binding resolves to.
	StrategyID int64 `json:"strategy_id,omitempty"`

	// Licensed only.
	LicensorWallet string  `json:"licensor_wallet,omitempty"`
	RoyaltyPct     float64 `json:"royalty_pct,omitempty"`

	// Parsed is the resolved ParsedStrategy driving signal generation for this
	// participant, regardless of which variant produced it.
	Parsed llm.ParsedStrategy `json:"parsed"`
}

// Participant is one joined wallet's state within a round (spec §3).
type Participant struct {
	RoundID     string               `json:"round_id"`
	Wallet      string               `json:"wallet"`
	Username    string               `json:"username"`
	Binding     StrategyBinding      `json:"binding"`
	Portfolio   *portfolio.Portfolio `json:"portfolio"`
	JoinedAt    time.Time            `json:"joined_at"`
	Active      bool                 `json:"active"`
}

// TradeLogEntry is one append-only record under round:{id}:logs:{wallet} (spec §6).
type TradeLogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Symbol     string    `json:"symbol"`
	Action     string    `json:"action"`
	Price      float64   `json:"price"`
	Confidence int       `json:"confidence"`
	Reason     string    `json:"reason"`
	Executed   bool      `json:"executed"`
}

// JoinRequest carries exactly one of {Strategy, StrategyID, LicenseStrategyID} (spec
// §4.6 join protocol, §6 command surface join-round).
type JoinRequest struct {
	Wallet             string
	Username           string
	Strategy           string
	StrategyID         int64
	LicenseStrategyID  int64
	RoyaltyPercent     float64
}

// LeaderboardEntry is one ranked row (spec §3/§6).
type LeaderboardEntry struct {
	Rank          int     `json:"rank"`
	Wallet        string  `json:"wallet"`
	Username      string  `json:"username"`
	Pnl           float64 `json:"pnl"`
	PnlPercentage float64 `json:"pnl_percentage"`
	TotalValue    float64 `json:"total_value"`
	Trades        int     `json:"trades"`
	WinRate       float64 `json:"win_rate"`
}

// EnhancedLeaderboardEntry adds profit-score and grade to a LeaderboardEntry (spec
// §6 get-enhanced-leaderboard).
type EnhancedLeaderboardEntry struct {
	LeaderboardEntry
	ProfitScore float64 `json:"profit_score"`
	Grade       string  `json:"grade"`
}

// leaderboardUpdateTopN bounds the snapshot carried on a leaderboard_update event
// (spec §4.6 step 5 / §6 push events).
const leaderboardUpdateTopN = 10

// LeaderboardUpdate is the payload published on TopicLeaderboardUpdate.
type LeaderboardUpdate struct {
	RoundID string             `json:"round_id"`
	Top     []LeaderboardEntry `json:"top"`
}

// CreateRoundConfig is the input to CreateRound (spec §6 create-round).
type CreateRoundConfig struct {
	Title               string
	Description         string
	DurationSeconds      int64
	StartingBalance      float64
	MaxParticipants      int
	MinParticipants      int
	ExecutionIntervalSec int64
	AllowedTokens        []string
	AutoStart            bool
	ExpectedProfitPct    float64
}
