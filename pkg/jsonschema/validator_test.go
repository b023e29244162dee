package jsonschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "name": {"type": "string"},
    "count": {"type": "integer", "minimum": 1}
  },
  "required": ["name"]
}`

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile("bad.json", `{"type": 12}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schema")
}

func TestValidator_ValidateJSON(t *testing.T) {
	v := MustCompile("test.json", testSchema)

	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{name: "valid", doc: `{"name": "a", "count": 2}`},
		{name: "missing required", doc: `{"count": 2}`, wantErr: true},
		{name: "below minimum", doc: `{"name": "a", "count": 0}`, wantErr: true},
		{name: "unknown property", doc: `{"name": "a", "extra": true}`, wantErr: true},
		{name: "not json", doc: `{`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.ValidateJSON([]byte(tt.doc))
			if tt.wantErr {
				assert.NotEmpty(t, errs)
				assert.NotEmpty(t, errs.Error())
			} else {
				assert.Empty(t, errs)
			}
		})
	}
}

func TestValidator_ValidateValue(t *testing.T) {
	v := MustCompile("test.json", testSchema)

	assert.Empty(t, v.ValidateValue(map[string]interface{}{"name": "x", "count": 3}))
	assert.NotEmpty(t, v.ValidateValue(map[string]interface{}{"name": 5}))
}

func TestValidationErrors_Error(t *testing.T) {
	assert.Equal(t, "", ValidationErrors{}.Error())
	assert.Equal(t, "a; b", ValidationErrors{errString("a"), errString("b")}.Error())
}

type errString string

func (e errString) Error() string { return string(e) }
