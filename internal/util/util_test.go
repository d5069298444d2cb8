package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verdict struct {
	Reason string `json:"reason"`
	Answer bool   `json:"answer"`
}

type report struct {
	Summary string  `json:"summary"`
	Verdict verdict `json:"verdict"`
	Note    string  `json:"note,omitempty"`
}

func TestSchemaFor(t *testing.T) {
	schema, err := SchemaFor[report]()
	require.NoError(t, err)

	assert.NotContains(t, schema, "$schema")
	assert.NotContains(t, schema, "$id")
	assert.NotContains(t, schema, "$defs")
	assert.ElementsMatch(t, []any{"summary", "verdict"}, schema["required"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	nested, ok := props["verdict"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "object", nested["type"])
}

func TestValidator(t *testing.T) {
	schema, err := SchemaFor[report]()
	require.NoError(t, err)
	v, err := NewValidator("report", schema)
	require.NoError(t, err)

	assert.NoError(t, v.ValidateJSON([]byte(`{"summary": "ok", "verdict": {"reason": "r", "answer": true}}`)))

	tests := []struct {
		name string
		doc  string
	}{
		{name: "not json", doc: `summary: ok`},
		{name: "missing field", doc: `{"summary": "ok"}`},
		{name: "wrong type", doc: `{"summary": "ok", "verdict": {"reason": "r", "answer": "yes"}}`},
		{name: "extra field", doc: `{"summary": "ok", "verdict": {"reason": "r", "answer": true}, "x": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateJSON([]byte(tt.doc))
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "report", verr.Schema)
		})
	}
}

func TestTemplate(t *testing.T) {
	tmpl, err := ParseTemplate("greeting", `{{upper .Name}} / {{join ", " .Items}} / {{default "none" .Empty}}`)
	require.NoError(t, err)

	out, err := Execute(tmpl, map[string]any{"Name": "team", "Items": []string{"a", "b"}, "Empty": ""})
	require.NoError(t, err)
	assert.Equal(t, "TEAM / a, b / none", out)

	_, err = Execute(tmpl, map[string]any{"Name": "team"})
	assert.Error(t, err)

	_, err = ParseTemplate("broken", "{{.Name")
	assert.Error(t, err)
}
