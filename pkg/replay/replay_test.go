package replay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roundforge-api/pkg/journal"
	"roundforge-api/pkg/llm"
	"roundforge-api/pkg/market"
	"roundforge-api/pkg/portfolio"
)

func TestRunReplaysBuyThenSell(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []journal.CycleRecord{
		{
			Wallet:    "0x1",
			Symbol:    "ETH",
			Timestamp: base,
			Snapshot:  market.Snapshot{Symbol: "ETH", Price: 1000},
			Signal:    llm.Signal{Action: "BUY", Confidence: 8},
			Success:   true,
		},
		{
			Wallet:    "0x1",
			Symbol:    "ETH",
			Timestamp: base.Add(time.Hour),
			Snapshot:  market.Snapshot{Symbol: "ETH", Price: 1200},
			Signal:    llm.Signal{Action: "SELL"},
			Success:   true,
		},
	}

	results := Run(records, 10000, portfolio.Policy{MaxPositionFraction: 0.3, TradingFeeRate: 0.001})
	require.Len(t, results, 1)
	assert.Equal(t, "0x1", results[0].Wallet)
	assert.Empty(t, results[0].Portfolio.Positions, "the sell should have closed the position")
	assert.Greater(t, results[0].Portfolio.RealizedPnl, 0.0, "buying at 1000 and selling at 1200 is a profit")
	assert.Equal(t, 2, results[0].Trades)
}

func TestRunSkipsUnsuccessfulCycles(t *testing.T) {
	records := []journal.CycleRecord{
		{
			Wallet:    "0x1",
			Symbol:    "ETH",
			Timestamp: time.Now(),
			Snapshot:  market.Snapshot{Symbol: "ETH", Price: 1000},
			Signal:    llm.Signal{Action: "BUY", Confidence: 8},
			Success:   false,
			Error:     "signal generation failed",
		},
	}

	results := Run(records, 10000, portfolio.Policy{MaxPositionFraction: 0.3, TradingFeeRate: 0.001})
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Portfolio.Positions, "a recorded failure must never be replayed as a trade")
	assert.Equal(t, 0, results[0].Trades)
}

func TestLeaderboardRanksByPercentPnl(t *testing.T) {
	results := []Result{
		{Wallet: "loser", Portfolio: &portfolio.Portfolio{PercentPnl: -5, TotalValue: 9500}},
		{Wallet: "winner", Portfolio: &portfolio.Portfolio{PercentPnl: 20, TotalValue: 12000}},
	}
	board := Leaderboard(results)
	require.Len(t, board, 2)
	assert.Equal(t, "winner", board[0].Wallet)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, "loser", board[1].Wallet)
	assert.Equal(t, 2, board[1].Rank)
}
