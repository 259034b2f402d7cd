package round

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"roundforge-api/pkg/llm"
)

func TestCandidateSymbolsPrefersSuggestedOverSymbolsCappedAtThree(t *testing.T) {
	mgr, _ := newTestManager(t, llm.ParsedStrategy{}, llm.Signal{Action: "HOLD"})
	r := &Round{Settings: Settings{}}
	parsed := llm.ParsedStrategy{
		Symbols:          []string{"DOGE"},
		SuggestedSymbols: []string{"ETH", "SOL", "BTC", "AVAX"},
	}

	got := mgr.candidateSymbols(parsed, r)
	assert.Equal(t, []string{"ETH"}, got, "AVAX falls past the cap of three; only ETH is whitelisted in testFeed, so SOL/BTC are filtered out")
}

func TestCandidateSymbolsFallsBackToSymbolsWhenNoSuggestions(t *testing.T) {
	mgr, _ := newTestManager(t, llm.ParsedStrategy{}, llm.Signal{Action: "HOLD"})
	r := &Round{Settings: Settings{}}
	parsed := llm.ParsedStrategy{Symbols: []string{"ETH", "DOGE"}}

	got := mgr.candidateSymbols(parsed, r)
	assert.Equal(t, []string{"ETH"}, got)
}

func TestCandidateSymbolsFallsBackToRoundAllowList(t *testing.T) {
	mgr, _ := newTestManager(t, llm.ParsedStrategy{}, llm.Signal{Action: "HOLD"})
	r := &Round{Settings: Settings{AllowedSymbols: []string{"ETH"}}}
	parsed := llm.ParsedStrategy{Symbols: []string{"DOGE"}}

	got := mgr.candidateSymbols(parsed, r)
	assert.Equal(t, []string{"ETH"}, got)
}

func TestCandidateSymbolsFallsBackToFeedWhitelist(t *testing.T) {
	mgr, _ := newTestManager(t, llm.ParsedStrategy{}, llm.Signal{Action: "HOLD"})
	r := &Round{Settings: Settings{}}
	parsed := llm.ParsedStrategy{}

	got := mgr.candidateSymbols(parsed, r)
	assert.Equal(t, mgr.feed.ListAllowed(), got)
}
