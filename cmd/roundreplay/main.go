// Command roundreplay reproduces a round's leaderboard from its recorded
// decision cycles, without calling the LLM or the price feed — grounded in
// cmd/journalreplay's flag-driven replay CLI, adapted from trader decisions to
// round participant signals.
package main

import (
	"flag"
	"fmt"
	"log"

	"roundforge-api/pkg/journal"
	"roundforge-api/pkg/portfolio"
	"roundforge-api/pkg/replay"
)

func main() {
	var (
		journalDir      = flag.String("journal-dir", "journal", "directory of recorded cycle_*.json files")
		limit           = flag.Int("limit", 0, "replay only the most recent N cycles (0 = all)")
		startingBalance = flag.Float64("starting-balance", 10000, "starting balance for each replayed wallet")
		maxPosFraction  = flag.Float64("max-position-fraction", 0.3, "MaxPositionFraction used when replaying BUY signals")
		feeRate         = flag.Float64("trading-fee-rate", 0.001, "TradingFeeRate used when replaying BUY signals")
	)
	flag.Parse()

	reader := journal.NewReader(*journalDir)
	records, err := reader.Latest(*limit)
	if err != nil {
		log.Fatalf("load journal: %v", err)
	}
	if len(records) == 0 {
		log.Println("no recorded cycles found")
		return
	}

	policy := portfolio.Policy{MaxPositionFraction: *maxPosFraction, TradingFeeRate: *feeRate}
	results := replay.Run(toValues(records), *startingBalance, policy)
	board := replay.Leaderboard(results)

	fmt.Printf("replayed %d cycles across %d wallets\n", len(records), len(results))
	for _, entry := range board {
		fmt.Printf("#%d %s pnl=%.2f (%.2f%%) value=%.2f trades=%d\n",
			entry.Rank, entry.Wallet, entry.Pnl, entry.PnlPercentage, entry.TotalValue, entry.Trades)
	}
}

func toValues(records []*journal.CycleRecord) []journal.CycleRecord {
	out := make([]journal.CycleRecord, 0, len(records))
	for _, r := range records {
		out = append(out, *r)
	}
	return out
}
