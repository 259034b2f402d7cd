package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONStripsCodeFences(t *testing.T) {
	raw := "```json\n{\"action\":\"BUY\",\"confidence\":8}\n```"
	got := extractJSON(raw)
	assert.Equal(t, `{"action":"BUY","confidence":8}`, got)
}

func TestExtractJSONSlicesSurroundingProse(t *testing.T) {
	raw := "Sure, here you go: {\"action\":\"HOLD\"} -- hope that helps!"
	got := extractJSON(raw)
	assert.Equal(t, `{"action":"HOLD"}`, got)
}

func TestExtractJSONNormalizesTrailingCommas(t *testing.T) {
	raw := `{"a":1,"b":[1,2,],}`
	got := extractJSON(raw)
	assert.Equal(t, `{"a":1,"b":[1,2]}`, got)
}

func TestParseStructuredGibberishErrors(t *testing.T) {
	var out map[string]interface{}
	err := ParseStructured("not json at all, sorry", &out)
	require.Error(t, err)
}

func TestParseStructuredRecoversFromNoisyResponse(t *testing.T) {
	var out struct {
		Action string `json:"action"`
	}
	err := ParseStructured("Here's my answer:\n```json\n{\"action\": \"SELL\",}\n```\nLet me know if you need more.", &out)
	require.NoError(t, err)
	assert.Equal(t, "SELL", out.Action)
}
