package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

// lessonShape mirrors the structured lesson output: a title, ordered
// sections and optional key dates.
func lessonShape() *Schema {
	return &Schema{
		Name:        "lesson",
		Description: "A structured history lesson",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{"type": "string"},
				"sections": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"heading": map[string]any{"type": "string"},
							"body":    map[string]any{"type": "string"},
						},
						"required": []any{"heading", "body"},
					},
				},
				"tier": map[string]any{"type": "string", "enum": []any{"PS", "JS", "HSS", "HSL", "UNI"}},
			},
			"required": []any{"title", "sections"},
		},
	}
}

func TestValidateResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid", `{"title":"الحملة الفرنسية","sections":[{"heading":"البداية","body":"وصل نابليون عام 1798"}],"tier":"JS"}`, false},
		{"optional omitted", `{"title":"الأهرامات","sections":[]}`, false},
		{"missing required", `{"title":"الأهرامات"}`, true},
		{"wrong type", `{"title":"الأهرامات","sections":"نص"}`, true},
		{"nested missing field", `{"title":"x","sections":[{"heading":"h"}]}`, true},
		{"invalid enum", `{"title":"x","sections":[],"tier":"KG"}`, true},
		{"malformed", `{not json}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateResponse(lessonShape(), json.RawMessage(tt.raw))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var invErr *ErrInvalidResponse
			assert.ErrorAs(t, err, &invErr)
		})
	}
}

func TestValidateResponse_Empty(t *testing.T) {
	assert.Error(t, validateResponse(lessonShape(), json.RawMessage(``)))
}

func TestValidateResponse_NilSchema(t *testing.T) {
	assert.NoError(t, validateResponse(nil, json.RawMessage(`{"anything":"goes"}`)))
}
