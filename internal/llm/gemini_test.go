package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiModelMapping(t *testing.T) {
	assert.Equal(t, "gemini-2.0-flash", resolveModel("gemini-flash", geminiModels))
	assert.Equal(t, "gemini-2.0-pro", resolveModel("gemini-pro", geminiModels))
	assert.Equal(t, "gemini-2.5-flash", resolveModel("gemini-2.5-flash", geminiModels))
}

func TestBuildGeminiSchema_Lesson(t *testing.T) {
	schema := buildGeminiSchema(lessonShape().Definition)

	assert.EqualValues(t, "OBJECT", schema.Type)
	require.Len(t, schema.Properties, 3)
	assert.EqualValues(t, "STRING", schema.Properties["title"].Type)
	assert.Equal(t, []string{"PS", "JS", "HSS", "HSL", "UNI"}, schema.Properties["tier"].Enum)
	assert.Equal(t, []string{"title", "sections"}, schema.Required)

	sections := schema.Properties["sections"]
	assert.EqualValues(t, "ARRAY", sections.Type)
	require.NotNil(t, sections.Items)
	assert.EqualValues(t, "OBJECT", sections.Items.Type)
	assert.EqualValues(t, "STRING", sections.Items.Properties["body"].Type)
	assert.Equal(t, []string{"heading", "body"}, sections.Items.Required)
}
