package corpus

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const (
	contentSchema     = "content-item"
	eventSchema       = "event-item"
	personalitySchema = "personality-item"
)

var recordSchemas = map[string]map[string]any{
	contentSchema: {
		"type":     "object",
		"required": []any{"educational_stage"},
		"properties": map[string]any{
			"content":           map[string]any{"type": "string"},
			"topic":             map[string]any{"type": "string"},
			"educational_stage": map[string]any{"type": "string", "minLength": 1},
			"historical_era":    map[string]any{"type": "string"},
			"level":             map[string]any{"type": "integer", "minimum": 0},
			"embedding":         map[string]any{"type": "array", "items": map[string]any{"type": "number"}},
		},
	},
	eventSchema: {
		"type":     "object",
		"required": []any{"date", "content", "educational_stage"},
		"properties": map[string]any{
			"id":                map[string]any{"type": "integer", "minimum": 0},
			"date":              map[string]any{"type": "string", "pattern": `^\d{1,4}(/\d{1,2}){0,2}(-\d{1,4}(/\d{1,2}){0,2})?$`},
			"content":           map[string]any{"type": "string", "minLength": 1},
			"educational_stage": map[string]any{"type": "string", "minLength": 1},
			"embedding":         map[string]any{"type": "array", "items": map[string]any{"type": "number"}},
		},
	},
	personalitySchema: {
		"type":     "object",
		"required": []any{"name", "content", "educational_stage"},
		"properties": map[string]any{
			"id":                map[string]any{"type": "integer", "minimum": 0},
			"name":              map[string]any{"type": "string", "minLength": 1},
			"content":           map[string]any{"type": "string", "minLength": 1},
			"image_link":        map[string]any{"type": "string"},
			"educational_stage": map[string]any{"type": "string", "minLength": 1},
		},
	},
}

var compiled sync.Map // map[string]*jsonschema.Schema

func validateRecord(name string, raw json.RawMessage) error {
	sch, err := schemaFor(name)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

func schemaFor(name string) (*jsonschema.Schema, error) {
	if s, ok := compiled.Load(name); ok {
		return s.(*jsonschema.Schema), nil
	}
	def, ok := recordSchemas[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}

	// Round-trip through JSON so the compiler sees plain decoded values.
	b, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("marshal schema definition: %w", err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse schema definition: %w", err)
	}

	c := jsonschema.NewCompiler()
	url := fmt.Sprintf("schema://%s.json", name)
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	compiled.Store(name, s)
	return s, nil
}
