package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func querySchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"text"},
		"properties": map[string]interface{}{
			"text":           map[string]interface{}{"type": "string", "minLength": 1},
			"conversationId": map[string]interface{}{"type": "string"},
			"options": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"limit"},
				"properties": map[string]interface{}{
					"limit": map[string]interface{}{"type": "integer", "minimum": 1},
				},
			},
		},
	}
}

// ==========================
// Validate
// ==========================

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		data      map[string]interface{}
		wantValid bool
		wantField string
		wantCode  string
	}{
		{
			name:      "valid",
			data:      map[string]interface{}{"text": "Who invested in Acme?", "conversationId": "c-1"},
			wantValid: true,
		},
		{
			name:      "missing required",
			data:      map[string]interface{}{"conversationId": "c-1"},
			wantField: "text",
			wantCode:  "REQUIRED",
		},
		{
			name:      "wrong type",
			data:      map[string]interface{}{"text": 42},
			wantField: "text",
			wantCode:  "INVALID_TYPE",
		},
		{
			name:      "empty string",
			data:      map[string]interface{}{"text": ""},
			wantField: "text",
			wantCode:  "STRING_GTE",
		},
		{
			name:      "nested required",
			data:      map[string]interface{}{"text": "q", "options": map[string]interface{}{}},
			wantField: "options.limit",
			wantCode:  "REQUIRED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Validate(querySchema(), tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, res.Valid)
			if tt.wantValid {
				assert.Empty(t, res.Errors)
				return
			}
			require.Len(t, res.Errors, 1)
			assert.Equal(t, tt.wantField, res.Errors[0].Field)
			assert.Equal(t, tt.wantCode, res.Errors[0].Code)
			assert.Contains(t, res.String(), tt.wantField+": ")
		})
	}
}

func TestValidate_BadSchema(t *testing.T) {
	_, err := Validate(map[string]interface{}{"type": 12}, map[string]interface{}{})
	assert.Error(t, err)
}

// ==========================
// ValidateJSON
// ==========================

func TestValidateJSON(t *testing.T) {
	res, err := ValidateJSON(querySchema(), `{"text":"Show me Acme's portfolio"}`)
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = ValidateJSON(querySchema(), "")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"text: text is required"}, res.Messages())

	res, err = ValidateJSON(querySchema(), `{"text":`)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "INVALID_JSON", res.Errors[0].Code)
}
