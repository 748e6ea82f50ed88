package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewID(t *testing.T) {
	a := NewID()
	b := NewID()
	assert.NotEqual(t, a, b)
	assert.True(t, ValidateID(a))
	assert.True(t, ValidateID(b))
}

func TestValidateID(t *testing.T) {
	assert.True(t, ValidateID("a3bb189e-8bf9-3888-9912-ace4e6543002"))
	assert.False(t, ValidateID("not-a-uuid"))
	assert.False(t, ValidateID(""))
}

func TestSanitizeIdentifier(t *testing.T) {
	assert.Equal(t, "purchase-agreement-tx-001", SanitizeIdentifier("purchase agreement/tx:001"))
	assert.Equal(t, "plain", SanitizeIdentifier("plain"))
}

func TestGetMapFieldHelpers(t *testing.T) {
	bag := map[string]any{
		"name":   "Jane",
		"empty":  "",
		"budget": 450000.0,
		"count":  3,
		"nested": map[string]any{"k": "v"},
	}

	name, err := GetStringField(bag, "name")
	assert.NoError(t, err)
	assert.Equal(t, "Jane", name)

	_, err = GetStringField(bag, "empty")
	assert.Error(t, err)

	_, err = GetStringField(bag, "missing")
	assert.Error(t, err)

	budget, err := GetNumberField(bag, "budget")
	assert.NoError(t, err)
	assert.Equal(t, 450000.0, budget)

	count, err := GetNumberField(bag, "count")
	assert.NoError(t, err)
	assert.Equal(t, 3.0, count)

	_, err = GetNumberField(bag, "name")
	assert.Error(t, err)

	nested, err := GetStringMapField(bag, "nested")
	assert.NoError(t, err)
	assert.Equal(t, "v", nested["k"])

	absent, err := GetStringMapField(bag, "missing")
	assert.NoError(t, err)
	assert.Empty(t, absent)

	assert.Equal(t, "fallback", GetMapFieldOr(bag, "missing", "fallback"))
	assert.Equal(t, "Jane", GetMapFieldOr(bag, "name", "fallback"))
}
