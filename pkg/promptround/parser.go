// Package promptround implements the Prompt-to-Round Parser (spec §4.8):
// translate a natural-language round request into a round.CreateRoundConfig,
// via the same tolerant-JSON-extraction-then-repair shape as
// pkg/llm.ParseStrategy and pkg/llm.GenerateSignal.
package promptround

import (
	"context"
	"strconv"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"roundforge-api/pkg/llm"
	"roundforge-api/pkg/round"
)

const (
	parseModel       = "llama-3.1-8b-instant"
	parseTemperature = 0.2
	parseMaxTokens   = 500

	parseSystemPrompt = `You are a trading round configuration assistant. Read the user's freeform
request for a trading round and respond with a single JSON object, no commentary, matching:
{"title":"...","description":"...","tokens":["..."],"duration":300,"startingBalance":10000,
"investmentAmount":0,"targetProfitPercent":5,"strategy":"...","gameType":"...","riskLevel":"...",
"timeframe":"..."}`
)

const (
	defaultDurationSeconds   = 300
	defaultStartingBalance   = 10000.0
	defaultTargetProfitPct   = 5.0
)

var defaultTokens = []string{"ETH", "TOSHI", "DEGEN"}

// rawRoundRequest decodes the LLM's JSON before repair. duration and the two
// dollar figures may arrive as numbers or numeric strings, mirroring
// llm.rawSignal's tolerance for either shape.
type rawRoundRequest struct {
	Title                string      `json:"title"`
	Description          string      `json:"description"`
	Tokens               []string    `json:"tokens"`
	Duration             interface{} `json:"duration"`
	StartingBalance      interface{} `json:"startingBalance"`
	InvestmentAmount     interface{} `json:"investmentAmount"`
	TargetProfitPercent  interface{} `json:"targetProfitPercent"`
	Strategy             string      `json:"strategy"`
	GameType             string      `json:"gameType"`
	RiskLevel            string      `json:"riskLevel"`
	Timeframe            string      `json:"timeframe"`
}

func resolveNumber(v interface{}, fallback float64) float64 {
	switch val := v.(type) {
	case float64:
		if val > 0 {
			return val
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil && f > 0 {
			return f
		}
	}
	return fallback
}

// repairRoundRequest fills every spec-mandated default (duration 300s,
// startingBalance 10000, tokens ETH/TOSHI/DEGEN, targetProfitPercent 5) and
// folds the descriptive fields the Round type has no dedicated slot for
// (strategy, gameType, riskLevel, timeframe) into Description, so intent
// carried by those fields is not silently dropped.
func repairRoundRequest(raw rawRoundRequest, original string) round.CreateRoundConfig {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		title = "Untitled Round"
	}

	tokens := raw.Tokens
	if len(tokens) == 0 {
		tokens = append([]string{}, defaultTokens...)
	}

	duration := int64(resolveNumber(raw.Duration, defaultDurationSeconds))
	if duration <= 0 {
		duration = defaultDurationSeconds
	}

	startingBalance := resolveNumber(raw.StartingBalance, 0)
	if startingBalance <= 0 {
		startingBalance = resolveNumber(raw.InvestmentAmount, defaultStartingBalance)
	}

	targetProfitPct := resolveNumber(raw.TargetProfitPercent, defaultTargetProfitPct)

	description := strings.TrimSpace(raw.Description)
	description = appendContext(description, "strategy", raw.Strategy)
	description = appendContext(description, "game type", raw.GameType)
	description = appendContext(description, "risk level", raw.RiskLevel)
	description = appendContext(description, "timeframe", raw.Timeframe)

	return round.CreateRoundConfig{
		Title:             title,
		Description:       description,
		DurationSeconds:   duration,
		StartingBalance:   startingBalance,
		AllowedTokens:      tokens,
		ExpectedProfitPct: targetProfitPct,
	}
}

func appendContext(description, label, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return description
	}
	note := label + ": " + value
	if description == "" {
		return note
	}
	return description + " (" + note + ")"
}

// Parser asks the LLM to translate a freeform round request into a
// round.CreateRoundConfig, routed through the same Client the Strategy
// Registry and Round Manager use, so it shares their pacing queue and budget.
type Parser struct {
	client    llm.Client
	validator *SchemaValidator
}

// NewParser wraps client.
func NewParser(client llm.Client) *Parser {
	return &Parser{client: client}
}

// SetSchemaValidator attaches an optional JSON-schema validator used to log a
// warning when the LLM's raw response deviates from the fixed shape spec §4.8
// asks for. It never blocks repair/defaulting — validation is diagnostic only.
func (p *Parser) SetSchemaValidator(v *SchemaValidator) {
	p.validator = v
}

// ParseRoundRequest is the Prompt-to-Round Parser's single operation (spec
// §4.8). Upstream failure or malformed JSON never propagates: both degrade to
// the spec's reference defaults, with request treated as the round's title.
func (p *Parser) ParseRoundRequest(ctx context.Context, request string) (round.CreateRoundConfig, error) {
	req := &llm.ChatRequest{
		Model:       parseModel,
		Temperature: parseTemperature,
		MaxTokens:   parseMaxTokens,
		Messages: []llm.Message{
			{Role: "system", Content: parseSystemPrompt},
			{Role: "user", Content: request},
		},
	}

	var raw rawRoundRequest
	resp, err := p.client.ChatStructured(ctx, req, &raw)
	if err != nil {
		raw = rawRoundRequest{Title: request}
	} else if p.validator != nil && len(resp.Choices) > 0 {
		if verr := p.validator.ValidateBytes([]byte(resp.Choices[0].Message.Content)); verr != nil {
			logx.WithContext(ctx).Infof("promptround: response did not match schema: %v", verr)
		}
	}
	return repairRoundRequest(raw, request), nil
}

// RoundRequestParser is the narrow interface callers depend on, so it can be
// faked in tests without constructing a full Client.
type RoundRequestParser interface {
	ParseRoundRequest(ctx context.Context, request string) (round.CreateRoundConfig, error)
}

var _ RoundRequestParser = (*Parser)(nil)
