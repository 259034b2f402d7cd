package llm

import (
	"context"
	"strings"
)

const (
	strategyModel       = "llama-3.1-8b-instant"
	strategyTemperature = 0.2
	strategyMaxTokens   = 600

	strategySystemPrompt = `You are a trading strategy analyst. Read the user's freeform trading strategy
description and respond with a single JSON object, no commentary, matching:
{"strategy_type":"technical|fundamental|sentiment|mixed","indicators":["..."],
"entry_condition":"...","exit_condition":"...","risk_management":"...","timeframe":"...",
"symbols":["..."],"target_ecosystem":true|false,"clarity_score":1-10,"actionable":true|false,
"suggested_symbols":["..."]}`
)

// ParsedStrategy is the structured form of a freeform strategy description (spec
// §3). Every field is guaranteed present after schema repair.
type ParsedStrategy struct {
	StrategyType     string   `json:"strategy_type"`
	Indicators       []string `json:"indicators"`
	EntryCondition   string   `json:"entry_condition"`
	ExitCondition    string   `json:"exit_condition"`
	RiskManagement   string   `json:"risk_management"`
	Timeframe        string   `json:"timeframe"`
	Symbols          []string `json:"symbols"`
	TargetEcosystem  bool     `json:"target_ecosystem"`
	ClarityScore     int      `json:"clarity_score"`
	Actionable       bool     `json:"actionable"`
	SuggestedSymbols []string `json:"suggested_symbols"`
}

var validStrategyTypes = map[string]bool{
	"technical":   true,
	"fundamental": true,
	"sentiment":   true,
	"mixed":       true,
}

// defaultParsedStrategy is the schema-keyed fallback used when extraction fails
// outright (spec §4.3) — conservative, low-clarity, not actionable, so downstream
// consumers don't accidentally trade on it.
func defaultParsedStrategy(text string) ParsedStrategy {
	return ParsedStrategy{
		StrategyType:     "mixed",
		Indicators:       []string{},
		EntryCondition:   "unclear",
		ExitCondition:    "unclear",
		RiskManagement:   "none specified",
		Timeframe:        "unspecified",
		Symbols:          []string{},
		TargetEcosystem:  false,
		ClarityScore:     1,
		Actionable:       false,
		SuggestedSymbols: []string{},
	}
}

// repairParsedStrategy enforces every ParsedStrategy invariant from spec §3: a valid
// strategy_type, a clarity score clamped to [1,10], and non-nil slices.
func repairParsedStrategy(p ParsedStrategy, text string) ParsedStrategy {
	if !validStrategyTypes[strings.ToLower(p.StrategyType)] {
		p.StrategyType = "mixed"
	} else {
		p.StrategyType = strings.ToLower(p.StrategyType)
	}
	if p.Indicators == nil {
		p.Indicators = []string{}
	}
	if p.Symbols == nil {
		p.Symbols = []string{}
	}
	if p.SuggestedSymbols == nil {
		p.SuggestedSymbols = []string{}
	}
	if strings.TrimSpace(p.EntryCondition) == "" {
		p.EntryCondition = "unclear"
	}
	if strings.TrimSpace(p.ExitCondition) == "" {
		p.ExitCondition = "unclear"
	}
	if strings.TrimSpace(p.RiskManagement) == "" {
		p.RiskManagement = "none specified"
	}
	if strings.TrimSpace(p.Timeframe) == "" {
		p.Timeframe = "unspecified"
	}
	if p.ClarityScore < 1 {
		p.ClarityScore = 1
	}
	if p.ClarityScore > 10 {
		p.ClarityScore = 10
	}
	return p
}

// ParseStrategy turns a freeform strategy description into a ParsedStrategy, routed
// through the engine's single pacing queue (spec §4.3). Upstream failures and
// malformed JSON never propagate: both degrade to the schema-repaired fallback.
func (c *openaiClient) ParseStrategy(ctx context.Context, text string) (ParsedStrategy, error) {
	sys := strategySystemPrompt
	if tpl := strategySystemPromptTemplate(); tpl != nil {
		if rendered, err := tpl.Render(nil); err == nil {
			sys = rendered
		}
	}

	req := &ChatRequest{
		Model:       strategyModel,
		Temperature: strategyTemperature,
		MaxTokens:   strategyMaxTokens,
		Messages: []Message{
			{Role: "system", Content: sys},
			{Role: "user", Content: text},
		},
	}

	var parsed ParsedStrategy
	_, err := c.ChatStructured(ctx, req, &parsed)
	if err != nil {
		return repairParsedStrategy(defaultParsedStrategy(text), text), nil
	}
	return repairParsedStrategy(parsed, text), nil
}

// StrategyParser is the narrow interface the Strategy Registry depends on, so it can
// be faked in tests without constructing a full Client.
type StrategyParser interface {
	ParseStrategy(ctx context.Context, text string) (ParsedStrategy, error)
}

var _ StrategyParser = (*openaiClient)(nil)
