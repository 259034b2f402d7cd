package llm

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"roundforge-api/pkg/market"
)

const (
	signalModel       = "llama-3.1-8b-instant"
	signalTemperature = 0.3
	signalMaxTokens   = 400

	signalSystemPromptFmt = `You are a trading signal generator. Given the current market snapshot and a
parsed strategy, respond with a single JSON object, no commentary, matching:
{"action":"BUY|SELL|HOLD","confidence":1-10,"reason":"...","entry_price":%v,
"stop_loss":%v,"take_profit":%v,"risk_reward":2.0}
Current price for %s is %v.`
)

// Signal is the LLM's BUY/SELL/HOLD recommendation for one symbol (spec §3). After
// schema repair no value is symbolic: BUY implies stop_loss < entry_price <
// take_profit, SELL the inverse, and every price field is a positive number.
type Signal struct {
	Action     string  `json:"action"`
	Confidence int     `json:"confidence"`
	Reason     string  `json:"reason"`
	EntryPrice float64 `json:"entry_price"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	RiskReward float64 `json:"risk_reward"`
}

var validActions = map[string]bool{"BUY": true, "SELL": true, "HOLD": true}

// rawSignal decodes LLM JSON before repair: price fields may arrive as arithmetic
// expression strings ("entry*0.95") rather than plain numbers, so they are decoded
// into json.RawMessage-compatible interfaces and resolved in repairSignal.
type rawSignal struct {
	Action     string      `json:"action"`
	Confidence interface{} `json:"confidence"`
	Reason     string      `json:"reason"`
	EntryPrice interface{} `json:"entry_price"`
	StopLoss   interface{} `json:"stop_loss"`
	TakeProfit interface{} `json:"take_profit"`
	RiskReward interface{} `json:"risk_reward"`
}

// defaultSignal is the schema-keyed fallback for total extraction failure, or for an
// LLMUpstream error (spec §4.3 / §4.7): HOLD, mid-range confidence, prices anchored
// to the current snapshot price so every invariant holds trivially.
func defaultSignal(price float64) Signal {
	return Signal{
		Action:     "HOLD",
		Confidence: 5,
		Reason:     "fallback: upstream signal unavailable",
		EntryPrice: price,
		StopLoss:   price * 0.95,
		TakeProfit: price * 1.10,
		RiskReward: 2.0,
	}
}

// resolveNumeric coerces an arithmetic-expression-or-number field into a float,
// falling back to fallback when the value is empty, zero, or unparsable. Expressions
// are limited to "<ref>*<factor>" and "<ref>+<delta>"/"<ref>-<delta>", where <ref> is
// substituted with price — the only symbolic forms the spec calls out.
func resolveNumeric(v interface{}, price, fallback float64) float64 {
	switch val := v.(type) {
	case float64:
		if val > 0 {
			return val
		}
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			break
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
			return f
		}
		s = strings.ReplaceAll(s, "price", strconv.FormatFloat(price, 'f', -1, 64))
		if f := evalSimpleExpr(s, price); f > 0 {
			return f
		}
	}
	return fallback
}

// evalSimpleExpr evaluates "<price>*<factor>", "<price>+<delta>" and
// "<price>-<delta>" forms. Anything else returns 0, signalling "use the fallback".
func evalSimpleExpr(expr string, price float64) float64 {
	for _, op := range []byte{'*', '+', '-'} {
		idx := strings.IndexByte(expr, op)
		if idx <= 0 {
			continue
		}
		left := strings.TrimSpace(expr[:idx])
		right := strings.TrimSpace(expr[idx+1:])
		lv, lerr := strconv.ParseFloat(left, 64)
		rv, rerr := strconv.ParseFloat(right, 64)
		if lerr != nil {
			lv = price
			lerr = nil
		}
		if rerr != nil {
			continue
		}
		switch op {
		case '*':
			return lv * rv
		case '+':
			return lv + rv
		case '-':
			return lv - rv
		}
	}
	return 0
}

func resolveConfidence(v interface{}) int {
	switch val := v.(type) {
	case float64:
		return clampConfidence(int(val))
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return clampConfidence(int(f))
		}
	}
	return 5
}

func clampConfidence(c int) int {
	if c < 1 {
		return 1
	}
	if c > 10 {
		return 10
	}
	return c
}

// repairSignal coerces a decoded rawSignal into a fully-invariant Signal, per spec
// §4.3/§9: numeric expressions resolved against price, action defaulted to HOLD,
// confidence clamped, zero/empty prices replaced by price, and BUY/SELL price
// ordering enforced.
func repairSignal(raw rawSignal, price float64) Signal {
	action := strings.ToUpper(strings.TrimSpace(raw.Action))
	if !validActions[action] {
		action = "HOLD"
	}

	entry := resolveNumeric(raw.EntryPrice, price, price)
	stopLoss := resolveNumeric(raw.StopLoss, price, price*0.95)
	takeProfit := resolveNumeric(raw.TakeProfit, price, price*1.10)
	riskReward := resolveNumeric(raw.RiskReward, price, 2.0)
	if riskReward <= 0 {
		riskReward = 2.0
	}

	switch action {
	case "BUY":
		if stopLoss >= entry {
			stopLoss = entry * 0.95
		}
		if takeProfit <= entry {
			takeProfit = entry * 1.10
		}
	case "SELL":
		if stopLoss <= entry {
			stopLoss = entry * 1.05
		}
		if takeProfit >= entry {
			takeProfit = entry * 0.90
		}
	}

	reason := strings.TrimSpace(raw.Reason)
	if reason == "" {
		reason = "no reasoning provided"
	}

	return Signal{
		Action:     action,
		Confidence: resolveConfidence(raw.Confidence),
		Reason:     reason,
		EntryPrice: entry,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		RiskReward: riskReward,
	}
}

// GenerateSignal asks the LLM for a BUY/SELL/HOLD recommendation on snap given an
// already-parsed strategy, routed through the engine's single pacing queue. Every
// failure mode — upstream error, malformed JSON, nonsensical field values — degrades
// to a schema-repaired Signal rather than propagating (spec §4.3, §8 property 8).
func (c *openaiClient) GenerateSignal(ctx context.Context, snap market.Snapshot, parsed ParsedStrategy) (Signal, error) {
	sys := fmt.Sprintf(signalSystemPromptFmt, snap.Price, snap.Price*0.95, snap.Price*1.10, snap.Symbol, snap.Price)
	if tpl := signalSystemPromptTemplate(); tpl != nil {
		data := struct {
			Price      float64
			StopLoss   float64
			TakeProfit float64
			Symbol     string
		}{Price: snap.Price, StopLoss: snap.Price * 0.95, TakeProfit: snap.Price * 1.10, Symbol: snap.Symbol}
		if rendered, err := tpl.Render(data); err == nil {
			sys = rendered
		}
	}
	userContent := fmt.Sprintf(
		"Strategy type: %s\nEntry condition: %s\nExit condition: %s\nRisk management: %s\nSymbol: %s\nCurrent price: %v\n24h change: %v",
		parsed.StrategyType, parsed.EntryCondition, parsed.ExitCondition, parsed.RiskManagement, snap.Symbol, snap.Price, snap.Change24h,
	)

	req := &ChatRequest{
		Model:       signalModel,
		Temperature: signalTemperature,
		MaxTokens:   signalMaxTokens,
		Messages: []Message{
			{Role: "system", Content: sys},
			{Role: "user", Content: userContent},
		},
	}

	var raw rawSignal
	_, err := c.ChatStructured(ctx, req, &raw)
	if err != nil {
		return defaultSignal(snap.Price), nil
	}
	return repairSignal(raw, snap.Price), nil
}

// SignalGenerator is the narrow interface the Round Manager depends on.
type SignalGenerator interface {
	GenerateSignal(ctx context.Context, snap market.Snapshot, parsed ParsedStrategy) (Signal, error)
}

var _ SignalGenerator = (*openaiClient)(nil)
