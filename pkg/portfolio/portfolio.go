// Package portfolio implements the Portfolio Engine (spec §4.5): pure accounting
// operations over a virtual USD portfolio, with no I/O and no dependency on the
// round engine's store or transport — every invariant in spec §3/§8 is enforced
// purely by arithmetic, the same "no side effects, caller persists" shape the
// teacher uses for its positionDetail accounting helpers in
// internal/persistence/engine/persistence.go.
package portfolio

import "time"

// Position is one held symbol (spec §3). Amount == 0 positions must never be stored
// — ApplySell deletes the map entry instead of zeroing it.
type Position struct {
	Symbol        string
	Amount        float64
	AvgEntryPrice float64
	TotalInvested float64
	CurrentValue  float64
	UnrealizedPnl float64
}

// Portfolio is a participant's virtual trading account (spec §3).
type Portfolio struct {
	Cash             float64
	Positions        map[string]*Position
	StartingBalance  float64
	TotalValue       float64
	RealizedPnl      float64
	PercentPnl       float64
	Trades           int
	Wins             int
	Losses           int
	WinRate          float64
	LastUpdated      time.Time
}

// New returns a freshly funded Portfolio with no open positions.
func New(startingBalance float64) *Portfolio {
	return &Portfolio{
		Cash:            startingBalance,
		Positions:       make(map[string]*Position),
		StartingBalance: startingBalance,
		TotalValue:      startingBalance,
	}
}

// Policy carries the round-level knobs ApplyBuy/ApplySell need (spec §4.5):
// MaxPositionFraction bounds how much cash a single buy can commit, TradingFeeRate is
// the fee applied on a buy. ApplySell does not take a Policy and charges
// defaultSellFeeRate instead.
type Policy struct {
	MaxPositionFraction float64
	TradingFeeRate      float64
}

const minSizingFraction = 0.05

// ApplyBuy opens or adds to a position in symbol at price, sized by confidence
// (1-10) under policy. Returns false (no mutation at all) when the sizing rule or
// the cash check fails — per spec §4.5 and §8 property 5.
func ApplyBuy(pf *Portfolio, symbol string, price float64, confidence int, policy Policy) bool {
	if pf == nil || price <= 0 {
		return false
	}

	maxPositionValue := pf.Cash * policy.MaxPositionFraction
	confidenceFraction := float64(confidence) / 10
	if confidenceFraction > 1 {
		confidenceFraction = 1
	}
	positionValue := maxPositionValue * confidenceFraction

	if positionValue < pf.Cash*minSizingFraction {
		return false
	}

	fee := positionValue * policy.TradingFeeRate
	if positionValue+fee > pf.Cash {
		return false
	}

	amount := positionValue / price
	pf.Cash -= positionValue + fee

	pos, exists := pf.Positions[symbol]
	if !exists {
		pos = &Position{Symbol: symbol}
		pf.Positions[symbol] = pos
	}
	newAmount := pos.Amount + amount
	newInvested := pos.TotalInvested + positionValue
	pos.Amount = newAmount
	pos.TotalInvested = newInvested
	pos.AvgEntryPrice = newInvested / newAmount

	pf.Trades++
	pf.LastUpdated = time.Now()
	return true
}

// defaultSellFeeRate is the fee ApplySell charges on every sell — spec §4.5 fixes
// this at 0.001 regardless of the round's configured trading fee, unlike ApplyBuy
// which uses the round's policy rate.
const defaultSellFeeRate = 0.001

// ApplySell closes the entire position in symbol at price (no partial sells, per
// spec §4.5's numeric semantics). Returns false without mutation if there is no open
// position.
func ApplySell(pf *Portfolio, symbol string, price float64) bool {
	if pf == nil {
		return false
	}
	pos, ok := pf.Positions[symbol]
	if !ok || pos.Amount <= 0 {
		return false
	}

	sellValue := pos.Amount * price
	fee := sellValue * defaultSellFeeRate
	netProceeds := sellValue - fee
	pf.Cash += netProceeds

	realizedPnl := netProceeds - pos.TotalInvested
	pf.RealizedPnl += realizedPnl
	if realizedPnl >= 0 {
		pf.Wins++
	} else {
		pf.Losses++
	}

	delete(pf.Positions, symbol)
	pf.Trades++
	pf.LastUpdated = time.Now()
	return true
}

// PriceLookup resolves the current price for a symbol, used by Revalue. Returning
// ok=false leaves that position's CurrentValue/UnrealizedPnl untouched for this pass
// (a stale snapshot degrades gracefully rather than corrupting totals).
type PriceLookup func(symbol string) (price float64, ok bool)

// Revalue recomputes every held position's CurrentValue/UnrealizedPnl from prices,
// then TotalValue, PercentPnl, and WinRate from the portfolio as a whole (spec §4.5,
// §8 property 3).
func Revalue(pf *Portfolio, prices PriceLookup) {
	if pf == nil {
		return
	}

	var heldValue float64
	for _, pos := range pf.Positions {
		price, ok := prices(pos.Symbol)
		if !ok {
			heldValue += pos.CurrentValue
			continue
		}
		pos.CurrentValue = pos.Amount * price
		pos.UnrealizedPnl = pos.CurrentValue - pos.TotalInvested
		heldValue += pos.CurrentValue
	}

	pf.TotalValue = pf.Cash + heldValue
	if pf.StartingBalance > 0 {
		pf.PercentPnl = (pf.TotalValue - pf.StartingBalance) / pf.StartingBalance * 100
	}
	if pf.Trades > 0 {
		pf.WinRate = float64(pf.Wins) / float64(pf.Trades) * 100
	}
	pf.LastUpdated = time.Now()
}
