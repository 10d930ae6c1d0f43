package corpus

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/dalil/internal/embedding"
)

const contentJSONL = `{"content":"The Umayyad caliphate ruled from Damascus.","topic":"Umayyads","educational_stage":"JS1","historical_era":"Islamic","level":1}
{"content":"","topic":"Empty","educational_stage":"JS1","level":1}
{"content":"Pharaohs built pyramids at Giza.","topic":"Pharaohs","educational_stage":"JS1","historical_era":"Ancient","level":2}
{"content":"The Abbasids founded Baghdad.","topic":"Umayyads","educational_stage":"JS1","historical_era":"Islamic","level":1}
{"content":"The French campaign reached Egypt in 1798.","topic":"Modern Egypt","educational_stage":"HSS1","historical_era":"Modern","level":1}
`

func TestReadContent_JSONL(t *testing.T) {
	c, err := ReadContent(strings.NewReader(contentJSONL), true)
	require.NoError(t, err)
	assert.Equal(t, 5, c.Len())
	assert.Equal(t, CurrentVersion, c.Manifest.Version)

	assert.Len(t, c.ByStage("JS1"), 3, "empty content is skipped")
	assert.Len(t, c.ByStageLevel("JS1", 1), 2)
	assert.Len(t, c.ByStageEra("JS1", "Ancient"), 1)
	assert.Empty(t, c.ByStage("UNI"))
	assert.Equal(t, []string{"JS1", "HSS1"}, c.Stages())
}

func TestContent_Topics(t *testing.T) {
	c, err := ReadContent(strings.NewReader(contentJSONL), true)
	require.NoError(t, err)

	topics := c.Topics("JS1")
	require.Len(t, topics, 3)
	assert.Equal(t, Topic{ID: "1", Title: "Umayyads"}, topics[0])
	assert.Equal(t, Topic{ID: "2", Title: "Empty"}, topics[1])
	assert.Equal(t, "3", topics[2].ID)

	it, ok := c.FindTopic("JS1", "Pharaohs")
	require.True(t, ok)
	assert.Contains(t, it.Content, "Giza")

	_, ok = c.FindTopic("HSS1", "Pharaohs")
	assert.False(t, ok)
}

func TestReadContent_Envelope(t *testing.T) {
	doc := `{"version":"1.2.0","embedding_model":"hash-8","items":[
		{"content":"a","educational_stage":"PS1","embedding":[1,0]}
	]}`
	c, err := ReadContent(strings.NewReader(doc), false)
	require.NoError(t, err)
	assert.Equal(t, "v1.2.0", c.Manifest.Version)
	assert.Equal(t, "hash-8", c.Manifest.EmbeddingModel)
	assert.Equal(t, []float32{1, 0}, c.Items[0].Embedding)
}

func TestReadContent_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"future major", `{"version":"v2.0.0","items":[]}`},
		{"bad version", `{"version":"one","items":[]}`},
		{"missing stage", `[{"content":"x"}]`},
		{"negative level", `[{"content":"x","educational_stage":"JS1","level":-1}]`},
		{"string embedding", `[{"content":"x","educational_stage":"JS1","embedding":"abc"}]`},
		{"not json", `hello`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadContent(strings.NewReader(tt.doc), false)
			assert.Error(t, err)
		})
	}
}

func TestReadEvents(t *testing.T) {
	doc := `[
		{"date":"1952/07/23","content":"July revolution","educational_stage":"JS3"},
		{"id":10,"date":"1954/11/01-1962/07/05","content":"Algerian war","educational_stage":"JS3"},
		{"date":"1517","content":"Ottoman conquest of Egypt","educational_stage":"HSS1"}
	]`
	e, err := ReadEvents(strings.NewReader(doc), false)
	require.NoError(t, err)

	it, ok := e.Get(1)
	require.True(t, ok)
	assert.Equal(t, "July revolution", it.Content)

	it, ok = e.Get(10)
	require.True(t, ok)
	assert.Equal(t, "Algerian war", it.Content)

	_, ok = e.Get(2)
	assert.False(t, ok)

	assert.Len(t, e.ByStage("JS3"), 2)
}

func TestReadEvents_RejectsBadDate(t *testing.T) {
	_, err := ReadEvents(strings.NewReader(`[{"date":"July 1952","content":"x","educational_stage":"JS3"}]`), false)
	assert.Error(t, err)
}

func TestReadPersonalities(t *testing.T) {
	doc := `{"version":"1.0.0","items":[
		{"name":"Saladin","content":"Founder of the Ayyubid state","educational_stage":"JS2","image_link":"saladin.png"},
		{"id":7,"name":"Muhammad Ali","content":"Founder of modern Egypt","educational_stage":"JS2"},
		{"name":"Urabi","content":"Led the Urabi revolt","educational_stage":"HSS1"}
	]}`
	p, err := ReadPersonalities(strings.NewReader(doc), false)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Len())
	assert.Equal(t, "v1.0.0", p.Manifest.Version)

	it, ok := p.Get(1)
	require.True(t, ok)
	assert.Equal(t, "saladin.png", it.ImageLink)

	it, ok = p.Get(7)
	require.True(t, ok)
	assert.Equal(t, "Muhammad Ali", it.Name)

	assert.Len(t, p.ByStage("JS2"), 2)

	_, err = ReadPersonalities(strings.NewReader(`[{"content":"no name","educational_stage":"JS2"}]`), false)
	assert.Error(t, err)
}

func TestEnsureEmbeddings(t *testing.T) {
	c := NewContent([]ContentItem{
		{Content: "one", EducationalStage: "JS1"},
		{Content: "two", EducationalStage: "JS1", Embedding: []float32{9, 9, 9, 9, 9, 9, 9, 9}},
	})
	emb := embedding.NewHashEmbedder(8)

	n, err := c.EnsureEmbeddings(context.Background(), emb)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only missing vectors computed")
	assert.Equal(t, "hash-8", c.Manifest.EmbeddingModel)

	c.Manifest.EmbeddingModel = "other-model"
	n, err = c.EnsureEmbeddings(context.Background(), emb)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "model change recomputes everything")
}

func TestEnsureEmbeddings_DimensionMismatch(t *testing.T) {
	c := NewContent([]ContentItem{
		{Content: "one", EducationalStage: "JS1", Embedding: []float32{1, 2}},
		{Content: "two", EducationalStage: "JS1"},
	})
	_, err := c.EnsureEmbeddings(context.Background(), embedding.NewHashEmbedder(8))
	assert.Error(t, err)
}

func TestWriteThenLoadFile(t *testing.T) {
	c, err := ReadContent(strings.NewReader(contentJSONL), true)
	require.NoError(t, err)
	_, err = c.EnsureEmbeddings(context.Background(), embedding.NewHashEmbedder(16))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteContent(&buf, c))

	path := filepath.Join(t.TempDir(), "content.json")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	loaded, err := LoadContent(path)
	require.NoError(t, err)
	assert.Equal(t, "hash-16", loaded.Manifest.EmbeddingModel)
	assert.Len(t, loaded.Items[0].Embedding, 16)
}
