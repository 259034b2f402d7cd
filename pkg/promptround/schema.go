package promptround

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// SchemaValidator validates a raw round-request JSON payload against a fixed
// schema before it is decoded into rawRoundRequest, catching malformed shapes
// earlier than repairRoundRequest's best-effort field-by-field tolerance
// would. Grounded in the teacher's pkg/executor JSON-schema validator.
type SchemaValidator struct {
	schema *gojsonschema.Schema
}

// NewSchemaValidatorFromBytes compiles a JSON schema document.
func NewSchemaValidatorFromBytes(raw []byte) (*SchemaValidator, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, fmt.Errorf("promptround: schema document cannot be empty")
	}
	loader := gojsonschema.NewBytesLoader(raw)
	compiled, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return nil, fmt.Errorf("promptround: parse schema: %w", err)
	}
	return &SchemaValidator{schema: compiled}, nil
}

// ValidateBytes reports the first schema violation found in raw, or nil if it
// conforms (or if v is nil/unconfigured — validation is optional).
func (v *SchemaValidator) ValidateBytes(raw []byte) error {
	if v == nil || v.schema == nil || len(raw) == 0 {
		return nil
	}
	loader := gojsonschema.NewBytesLoader(raw)
	result, err := v.schema.Validate(loader)
	if err != nil {
		return fmt.Errorf("promptround: schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	if len(result.Errors()) == 0 {
		return fmt.Errorf("promptround: schema validation failed")
	}
	return fmt.Errorf("promptround: schema validation failed: %s", result.Errors()[0])
}

// RoundRequestSchema is the fixed JSON shape spec §4.8 asks the LLM for.
const RoundRequestSchema = `{
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "description": {"type": "string"},
    "tokens": {"type": "array", "items": {"type": "string"}},
    "duration": {},
    "startingBalance": {},
    "investmentAmount": {},
    "targetProfitPercent": {},
    "strategy": {"type": "string"},
    "gameType": {"type": "string"},
    "riskLevel": {"type": "string"},
    "timeframe": {"type": "string"}
  }
}`
