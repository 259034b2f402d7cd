package llm

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"text/template"
)

// PromptTemplate wraps a parsed text/template with a content digest, so callers can
// record exactly which prompt version produced a given LLM call (see
// TemplateVersionGuard, which enforces the {{/* Version: ... */}} header this digest
// complements).
type PromptTemplate struct {
	path   string
	tpl    *template.Template
	digest string
}

// NewPromptTemplate parses the template file at path. funcs is merged into the
// template's function map before parsing; nil is fine for templates with no custom
// functions.
func NewPromptTemplate(path string, funcs template.FuncMap) (*PromptTemplate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("llm: read prompt template %q: %w", path, err)
	}

	tpl := template.New(path)
	if funcs != nil {
		tpl = tpl.Funcs(funcs)
	}
	tpl, err = tpl.Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("llm: parse prompt template %q: %w", path, err)
	}

	sum := sha256.Sum256(raw)
	return &PromptTemplate{path: path, tpl: tpl, digest: hex.EncodeToString(sum[:])}, nil
}

// Render executes the template against data.
func (t *PromptTemplate) Render(data interface{}) (string, error) {
	if t == nil || t.tpl == nil {
		return "", fmt.Errorf("llm: prompt template not initialized")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("llm: render prompt template %q: %w", t.path, err)
	}
	return buf.String(), nil
}

// Digest returns the sha256 hex digest of the template's source bytes, stable across
// renders and usable as a cache key / journal field.
func (t *PromptTemplate) Digest() string {
	if t == nil {
		return ""
	}
	return t.digest
}

// Path returns the filesystem path the template was loaded from.
func (t *PromptTemplate) Path() string {
	if t == nil {
		return ""
	}
	return t.path
}
