package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/dalil/internal/chat"
	"github.com/abhisek/dalil/internal/config"
	"github.com/abhisek/dalil/internal/corpus"
	"github.com/abhisek/dalil/internal/embedding"
	"github.com/abhisek/dalil/internal/llm"
	"github.com/abhisek/dalil/internal/quiz"
)

func memDSN(t *testing.T) string {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
}

func testEngine(t *testing.T, mock *llm.MockProvider) *Engine {
	t.Helper()
	cfg := config.Default()
	e, err := New(context.Background(), &cfg, Options{
		DSN:      memDSN(t),
		Provider: mock,
		Embedder: embedding.NewHashEmbedder(64),
		Content: corpus.NewContent([]corpus.ContentItem{
			{Content: "قاد نابليون الحملة الفرنسية على مصر", Topic: "الحملة الفرنسية", EducationalStage: "JS1", Level: 1},
		}),
		Events: corpus.NewEvents([]corpus.EventItem{
			{ID: 1, Date: "1798", Content: "الحملة الفرنسية على مصر", EducationalStage: "JS1"},
		}),
	})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestNew_WiresServices(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage("جواب")})
	e := testEngine(t, mock)

	assert.NotEmpty(t, e.Content.Items[0].Embedding, "corpus is embedded on load")
	assert.NotEmpty(t, e.Events.Items[0].Embedding)
	assert.Zero(t, e.Personalities.Len(), "personality corpus is optional")

	res, err := e.Chat.Ask(context.Background(), chat.AskInput{UserID: "u", Question: "الحملة الفرنسية", Stage: "JS1"})
	require.NoError(t, err)
	assert.Equal(t, "جواب", res.Answer)

	sessions, err := e.Sessions.List(context.Background(), "u")
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestNew_QuizUsesConfiguredRetries(t *testing.T) {
	mock := llm.NewMockProvider()
	e := testEngine(t, mock)

	// Every call fails to produce options, so the quiz comes back empty
	// after (1+parse retries) option calls per attempt.
	for range 40 {
		mock.AddResponse(llm.MockResponse{Content: json.RawMessage("1. سؤال")})
	}
	res, err := e.Quiz.GenerateForUser(context.Background(), quiz.GenerateRequest{UserID: "u", Stage: "JS1", Level: 1})
	require.NoError(t, err)
	assert.Empty(t, res.Quiz)

	cfg := e.Config.Quiz
	perAttempt := 1 + 1 + cfg.ParseRetries
	assert.Equal(t, perAttempt*(1+cfg.RegenerateRetries), mock.CallCount())
}

func TestNew_RequiresCorpus(t *testing.T) {
	cfg := config.Default()
	_, err := New(context.Background(), &cfg, Options{
		DSN:      memDSN(t),
		Provider: llm.NewMockProvider(),
		Embedder: embedding.NewHashEmbedder(8),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no content corpus")
}

func TestNew_RequiresLLMCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.Provider = "anthropic"
	cfg.LLM.Anthropic.APIKey = ""
	_, err := New(context.Background(), &cfg, Options{
		DSN:     memDSN(t),
		Content: corpus.NewContent(nil),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm config")
}

func TestNewEmbedder(t *testing.T) {
	e, err := NewEmbedder(context.Background(), config.EmbeddingConfig{Provider: "hash", Dim: 16})
	require.NoError(t, err)
	assert.Equal(t, "hash-16", e.Model())

	e, err = NewEmbedder(context.Background(), config.EmbeddingConfig{Provider: "ollama"})
	require.NoError(t, err)
	assert.Equal(t, defaultOllamaModel, e.Model())

	_, err = NewEmbedder(context.Background(), config.EmbeddingConfig{Provider: "openai"})
	assert.Error(t, err, "openai needs a key")

	_, err = NewEmbedder(context.Background(), config.EmbeddingConfig{Provider: "word2vec"})
	assert.Error(t, err)
}

func TestNew_SkipGeneration(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.Provider = "anthropic"
	cfg.LLM.Anthropic.APIKey = ""
	e, err := New(context.Background(), &cfg, Options{
		DSN:            memDSN(t),
		SkipGeneration: true,
		Events: corpus.NewEvents([]corpus.EventItem{
			{ID: 1, Date: "1798", Content: "الحملة الفرنسية على مصر", EducationalStage: "JS1"},
		}),
		Personalities: corpus.NewPersonalities([]corpus.PersonalityItem{
			{Name: "نابليون بونابرت", Content: "قائد الحملة الفرنسية على مصر", EducationalStage: "JS1"},
		}),
	})
	require.NoError(t, err)
	defer e.Close()

	assert.Nil(t, e.Provider)
	assert.Nil(t, e.Chat)
	assert.Nil(t, e.Lessons)
	assert.Zero(t, e.Content.Len())

	_, err = e.Quiz.GenerateForUser(context.Background(), quiz.GenerateRequest{UserID: "u", Stage: "JS1", Level: 1})
	assert.ErrorIs(t, err, quiz.ErrNoGenerator)

	view, err := e.EventsQuiz.Progress(context.Background(), "u", "JS1")
	require.NoError(t, err)
	assert.Equal(t, 1, view.TotalEvents)

	figures, err := e.PersonalityQuiz.Generate(context.Background(), "u", "JS1", 0)
	require.NoError(t, err)
	require.Len(t, figures.Personalities, 1)
	assert.Equal(t, 1, figures.Descriptions[0].ID)
}
