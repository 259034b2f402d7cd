package repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roundforge-api/pkg/llm"
	"roundforge-api/pkg/portfolio"
	"roundforge-api/pkg/round"
)

func TestRoundRowRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	original := &round.Round{
		ID:              "round-1",
		Number:          7,
		Title:           "Weekend Run",
		Description:     "degen hours",
		DurationMs:      int64(time.Hour / time.Millisecond),
		StartingBalance: 10000,
		MinParticipants: 1,
		MaxParticipants: 10,
		Settings: round.Settings{
			ExecutionInterval:   30 * time.Second,
			MaxPositionFraction: 0.3,
			TradingFeeRate:      0.001,
			AllowedSymbols:      []string{"ETH", "SOL"},
			AutoStart:           true,
			ExpectedProfitPct:   5,
		},
		Status:         round.StatusActive,
		CreatedAt:      now,
		StartAt:        now,
		EndAt:          now.Add(time.Hour),
		Stats:          round.Stats{TotalParticipants: 2, TotalTrades: 4},
		AutoStartArmed: true,
	}

	row, err := toRoundsRow(original)
	require.NoError(t, err)
	assert.Equal(t, original.ID, row.RoundId)

	restored, err := fromRoundsRow(row)
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}

func TestParticipantRowRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	pf := portfolio.New(10000)
	original := &round.Participant{
		RoundID: "round-1",
		Wallet:  "0xabc",
		Username: "degen",
		Binding: round.StrategyBinding{
			Kind:       round.BindingInline,
			InlineText: "buy dips",
			Parsed:     llm.ParsedStrategy{StrategyType: "momentum", ClarityScore: 7, Actionable: true},
		},
		Portfolio: pf,
		JoinedAt:  now,
		Active:    true,
	}

	row, err := toParticipantsRow(original)
	require.NoError(t, err)
	assert.Equal(t, original.Wallet, row.Wallet)

	restored, err := fromParticipantsRow(row)
	require.NoError(t, err)
	assert.Equal(t, original.RoundID, restored.RoundID)
	assert.Equal(t, original.Wallet, restored.Wallet)
	assert.Equal(t, original.Binding, restored.Binding)
	assert.Equal(t, original.Portfolio.Cash, restored.Portfolio.Cash)
	assert.Equal(t, original.Portfolio.StartingBalance, restored.Portfolio.StartingBalance)
}
