package llm

import (
	"sync"

	"github.com/zeromicro/go-zero/core/logx"

	"roundforge-api/internal/confkit"
)

// promptTemplateVersion is the {{/* Version: ... */}} header every file under
// etc/prompts/ must declare, enforced via TemplateVersionGuard before the file
// is parsed as a text/template.
const promptTemplateVersion = "1.0.0"

var (
	strategyPromptOnce sync.Once
	strategyPromptTpl  *PromptTemplate

	signalPromptOnce sync.Once
	signalPromptTpl  *PromptTemplate
)

// strategySystemPromptTemplate lazily loads etc/prompts/strategy_system.tmpl,
// guarded the way the teacher's NewPromptRenderer guards its manager prompt
// (pkg/manager/prompt.go). A missing or mismatched file falls back to the
// built-in strategySystemPrompt constant rather than failing ParseStrategy.
func strategySystemPromptTemplate() *PromptTemplate {
	strategyPromptOnce.Do(func() {
		strategyPromptTpl = loadGuardedPrompt("llm.strategy", confkit.ProjectPath("etc/prompts/strategy_system.tmpl"))
	})
	return strategyPromptTpl
}

// signalSystemPromptTemplate is the signal-prompt counterpart of
// strategySystemPromptTemplate.
func signalSystemPromptTemplate() *PromptTemplate {
	signalPromptOnce.Do(func() {
		signalPromptTpl = loadGuardedPrompt("llm.signal", confkit.ProjectPath("etc/prompts/signal_system.tmpl"))
	})
	return signalPromptTpl
}

func loadGuardedPrompt(component, path string) *PromptTemplate {
	guard := TemplateVersionGuard{
		Component:            component,
		ExpectedVersion:      promptTemplateVersion,
		RequireVersionHeader: true,
		StrictMode:           true,
	}
	if _, err := guard.Enforce(path); err != nil {
		logx.Infof("llm: %s prompt template unavailable, using built-in default: %v", component, err)
		return nil
	}
	tpl, err := NewPromptTemplate(path, nil)
	if err != nil {
		logx.Infof("llm: %s prompt template failed to parse, using built-in default: %v", component, err)
		return nil
	}
	return tpl
}
