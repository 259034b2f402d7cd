package promptround

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaValidatorAcceptsConformingPayload(t *testing.T) {
	v, err := NewSchemaValidatorFromBytes([]byte(RoundRequestSchema))
	require.NoError(t, err)

	err = v.ValidateBytes([]byte(`{"title":"Weekend Run","tokens":["ETH"],"duration":600}`))
	assert.NoError(t, err)
}

func TestSchemaValidatorRejectsWrongType(t *testing.T) {
	v, err := NewSchemaValidatorFromBytes([]byte(RoundRequestSchema))
	require.NoError(t, err)

	err = v.ValidateBytes([]byte(`{"tokens":"ETH"}`))
	assert.Error(t, err)
}

func TestNilValidatorIsANoop(t *testing.T) {
	var v *SchemaValidator
	assert.NoError(t, v.ValidateBytes([]byte(`{"anything":true}`)))
}
