package llm

import (
	"strings"
	"testing"
)

func TestStrategySystemPromptTemplateLoadsAndRenders(t *testing.T) {
	tpl := strategySystemPromptTemplate()
	if tpl == nil {
		t.Fatal("expected etc/prompts/strategy_system.tmpl to load")
	}
	rendered, err := tpl.Render(nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(rendered, "strategy_type") {
		t.Fatalf("rendered strategy prompt missing expected content: %s", rendered)
	}
	if strings.Contains(rendered, "Version:") {
		t.Fatalf("rendered prompt should not leak its version comment: %s", rendered)
	}
}

func TestSignalSystemPromptTemplateRendersDynamicFields(t *testing.T) {
	tpl := signalSystemPromptTemplate()
	if tpl == nil {
		t.Fatal("expected etc/prompts/signal_system.tmpl to load")
	}
	data := struct {
		Price      float64
		StopLoss   float64
		TakeProfit float64
		Symbol     string
	}{Price: 100, StopLoss: 95, TakeProfit: 110, Symbol: "ETH"}
	rendered, err := tpl.Render(data)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(rendered, "ETH") || !strings.Contains(rendered, "95") {
		t.Fatalf("rendered signal prompt missing substituted fields: %s", rendered)
	}
}

func TestVerboseLoggingToggle(t *testing.T) {
	SetVerboseLogging(true)
	if !isVerboseLoggingEnabled() {
		t.Fatal("expected verbose logging enabled")
	}
	SetVerboseLogging(false)
	if isVerboseLoggingEnabled() {
		t.Fatal("expected verbose logging disabled")
	}
}
