// Package replay reproduces a round's leaderboard from its recorded decision
// cycles, without calling the LLM or the price feed. It is grounded in the
// teacher's cmd/journalreplay + pkg/backtest/journal_replay.go pattern — read
// recorded cycles, feed them through the accounting engine in timestamp
// order, compare against what actually happened — adapted from the teacher's
// exchange-order accounting to the Portfolio Engine's buy/sell accounting.
package replay

import (
	"context"
	"sort"

	"roundforge-api/pkg/journal"
	"roundforge-api/pkg/portfolio"
	"roundforge-api/pkg/round"
)

// Result is one wallet's replayed outcome.
type Result struct {
	Wallet    string
	Portfolio *portfolio.Portfolio
	Trades    int
}

// Source supplies the recorded cycles for a round. journal.PostgresRecorder
// satisfies it directly; records loaded some other way, e.g. through
// journal.Reader, can be passed to Run as a plain slice. Source keeps this
// package from depending on Postgres directly.
type Source interface {
	ListByRound(ctx context.Context, roundID string) ([]journal.CycleRecord, error)
}

// Run replays records in timestamp order, applying each recorded signal to a
// fresh per-wallet portfolio seeded at startingBalance. It never calls
// GetPrice or GenerateSignal — every price and signal comes from the record.
func Run(records []journal.CycleRecord, startingBalance float64, policy portfolio.Policy) []Result {
	ordered := make([]journal.CycleRecord, len(records))
	copy(ordered, records)
	sortByTimestamp(ordered)

	portfolios := make(map[string]*portfolio.Portfolio)
	trades := make(map[string]int)
	order := make([]string, 0)

	for _, rec := range ordered {
		pf, ok := portfolios[rec.Wallet]
		if !ok {
			pf = portfolio.New(startingBalance)
			portfolios[rec.Wallet] = pf
			order = append(order, rec.Wallet)
		}

		if rec.Success {
			switch rec.Signal.Action {
			case "BUY":
				if portfolio.ApplyBuy(pf, rec.Symbol, rec.Snapshot.Price, rec.Signal.Confidence, policy) {
					trades[rec.Wallet]++
				}
			case "SELL":
				if portfolio.ApplySell(pf, rec.Symbol, rec.Snapshot.Price) {
					trades[rec.Wallet]++
				}
			}
		}

		symbol, price := rec.Symbol, rec.Snapshot.Price
		portfolio.Revalue(pf, func(s string) (float64, bool) {
			if s == symbol {
				return price, true
			}
			return 0, false
		})
	}

	results := make([]Result, 0, len(order))
	for _, wallet := range order {
		results = append(results, Result{Wallet: wallet, Portfolio: portfolios[wallet], Trades: trades[wallet]})
	}
	return results
}

// RunForRound loads every recorded cycle for roundID from src and replays it.
func RunForRound(ctx context.Context, src Source, roundID string, startingBalance float64, policy portfolio.Policy) ([]Result, error) {
	records, err := src.ListByRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	return Run(records, startingBalance, policy), nil
}

// Leaderboard ranks replayed results the same way round.Manager ranks a live
// round: by PercentPnl, descending.
func Leaderboard(results []Result) []round.LeaderboardEntry {
	entries := make([]round.LeaderboardEntry, 0, len(results))
	for _, res := range results {
		entries = append(entries, round.LeaderboardEntry{
			Wallet:        res.Wallet,
			Pnl:           res.Portfolio.RealizedPnl + unrealizedTotal(res.Portfolio),
			PnlPercentage: res.Portfolio.PercentPnl,
			TotalValue:    res.Portfolio.TotalValue,
			Trades:        res.Trades,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].PnlPercentage > entries[j].PnlPercentage })
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

func unrealizedTotal(pf *portfolio.Portfolio) float64 {
	total := 0.0
	for _, pos := range pf.Positions {
		total += pos.UnrealizedPnl
	}
	return total
}

func sortByTimestamp(records []journal.CycleRecord) {
	for i := 1; i < len(records); i++ {
		for j := i; j > 0 && records[j-1].Timestamp.After(records[j].Timestamp); j-- {
			records[j-1], records[j] = records[j], records[j-1]
		}
	}
}
