package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepairSignalDefaultsUnknownAction(t *testing.T) {
	raw := rawSignal{Action: "MAYBE", EntryPrice: 100.0}
	sig := repairSignal(raw, 100)
	assert.Equal(t, "HOLD", sig.Action)
}

func TestRepairSignalEnforcesBuyOrdering(t *testing.T) {
	raw := rawSignal{
		Action:     "buy",
		EntryPrice: 100.0,
		StopLoss:   110.0, // invalid: above entry for a BUY
		TakeProfit: 90.0,  // invalid: below entry for a BUY
		Confidence: 7.0,
	}
	sig := repairSignal(raw, 100)
	assert.Equal(t, "BUY", sig.Action)
	assert.Less(t, sig.StopLoss, sig.EntryPrice)
	assert.Greater(t, sig.TakeProfit, sig.EntryPrice)
}

func TestRepairSignalEnforcesSellOrdering(t *testing.T) {
	raw := rawSignal{
		Action:     "sell",
		EntryPrice: 100.0,
		StopLoss:   90.0,  // invalid: below entry for a SELL
		TakeProfit: 110.0, // invalid: above entry for a SELL
		Confidence: 6.0,
	}
	sig := repairSignal(raw, 100)
	assert.Equal(t, "SELL", sig.Action)
	assert.Greater(t, sig.StopLoss, sig.EntryPrice)
	assert.Less(t, sig.TakeProfit, sig.EntryPrice)
}

func TestRepairSignalResolvesArithmeticExpressions(t *testing.T) {
	raw := rawSignal{
		Action:     "BUY",
		EntryPrice: "price",
		StopLoss:   "price*0.9",
		TakeProfit: "price+50",
		Confidence: "9",
	}
	sig := repairSignal(raw, 200)
	assert.Equal(t, 200.0, sig.EntryPrice)
	assert.Equal(t, 180.0, sig.StopLoss)
	assert.Equal(t, 250.0, sig.TakeProfit)
	assert.Equal(t, 9, sig.Confidence)
}

func TestRepairSignalClampsConfidence(t *testing.T) {
	raw := rawSignal{Action: "HOLD", Confidence: 99.0}
	sig := repairSignal(raw, 100)
	assert.Equal(t, 10, sig.Confidence)

	raw2 := rawSignal{Action: "HOLD", Confidence: -4.0}
	sig2 := repairSignal(raw2, 100)
	assert.Equal(t, 1, sig2.Confidence)
}

func TestDefaultSignalSatisfiesInvariants(t *testing.T) {
	sig := defaultSignal(3000)
	assert.Equal(t, "HOLD", sig.Action)
	assert.Greater(t, sig.EntryPrice, 0.0)
	assert.Greater(t, sig.StopLoss, 0.0)
	assert.Greater(t, sig.TakeProfit, 0.0)
	assert.GreaterOrEqual(t, sig.Confidence, 1)
	assert.LessOrEqual(t, sig.Confidence, 10)
}
