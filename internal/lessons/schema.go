package lessons

import "github.com/abhisek/dalil/internal/llm"

// LessonSchema defines the JSON schema for topic lesson generation.
var LessonSchema = &llm.Schema{
	Name:        "topic-lesson",
	Description: "A markdown history lesson rewritten from textbook content",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"markdown": map[string]any{
				"type":        "string",
				"description": "The full lesson in markdown, starting with a ## summary section",
			},
			"key_terms": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Key terms and dates highlighted in the lesson",
			},
		},
		"required":             []any{"markdown", "key_terms"},
		"additionalProperties": false,
	},
}
