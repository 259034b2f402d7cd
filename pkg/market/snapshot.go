// Package market implements the round engine's price feed: a whitelisted set of
// tradable symbols, a short-TTL snapshot cache, and a DEX-aggregator-then-generic-
// endpoint-then-mock fallback chain, grounded in the teacher's pkg/llm.Config loader
// style for the whitelist and in gopher-lab-kalshi-go's pkg/rest.Client for the plain
// net/http request shape (typed APIError, JSON body, single timeout-bound client).
package market

import "time"

// Source identifies where a Snapshot's data came from.
type Source string

const (
	SourceDEX  Source = "dex"
	SourceSpot Source = "spot"
	SourceMock Source = "mock"
)

// Snapshot is a point-in-time market read for one symbol.
type Snapshot struct {
	Symbol       string
	Price        float64
	Change24h    float64 // fraction, e.g. 0.012 == +1.2%
	Volume24h    float64
	Liquidity    float64
	MarketCapUSD float64
	Source       Source
	Timestamp    time.Time
}

// WhitelistEntry describes one symbol the feed is willing to quote.
type WhitelistEntry struct {
	Symbol       string  `yaml:"symbol"`
	Address      string  `yaml:"address"`
	Chain        string  `yaml:"chain"`
	ReferencePrice float64 `yaml:"reference_price"`
}
