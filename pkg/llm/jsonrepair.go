package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"roundforge-api/internal/engineerr"
)

func wrapUpstream(err error) error {
	return engineerr.Wrap(engineerr.KindLLMUpstream, "llm upstream call failed", err)
}

var (
	codeFenceRe   = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
)

// extractJSON applies the tolerant-extraction pipeline from spec §4.3: strip code
// fences, slice from the first '{' to the last '}', then normalize trailing commas.
// It never errors — a raw string with no braces at all comes back unchanged, and the
// caller's json.Unmarshal simply fails, triggering the schema-keyed fallback.
func extractJSON(raw string) string {
	s := raw
	if m := codeFenceRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end >= start {
		s = s[start : end+1]
	}
	s = trailingComma.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

// ParseStructured decodes the first JSON object found in raw into target, tolerating
// code fences, surrounding prose, and trailing commas. Returns an error only when no
// JSON object can be recovered at all — callers are expected to fall back to a
// schema-keyed default in that case, per spec §4.3.
func ParseStructured(raw string, target interface{}) error {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return fmt.Errorf("llm: no JSON object found in response")
	}
	if err := json.Unmarshal([]byte(cleaned), target); err != nil {
		return fmt.Errorf("llm: decode structured response: %w", err)
	}
	return nil
}
