package chat

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/dalil/internal/cache"
	"github.com/abhisek/dalil/internal/corpus"
	"github.com/abhisek/dalil/internal/embedding"
	"github.com/abhisek/dalil/internal/llm"
	"github.com/abhisek/dalil/internal/retrieval"
	"github.com/abhisek/dalil/internal/session"
	"github.com/abhisek/dalil/internal/store/storetest"
)

type fixture struct {
	svc       *Service
	mock      *llm.MockProvider
	sessions  *session.Manager
	responses *cache.MemoryText
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	emb := embedding.NewHashEmbedder(128)
	content := corpus.NewContent([]corpus.ContentItem{
		{Content: "قاد نابليون الحملة الفرنسية على مصر", Topic: "الحملة الفرنسية", EducationalStage: "JS2", HistoricalEra: "modern"},
		{Content: "بنى الفراعنة الأهرامات في الجيزة", Topic: "الأهرامات", EducationalStage: "JS2", HistoricalEra: "ancient"},
	})
	_, err := content.EnsureEmbeddings(context.Background(), emb)
	require.NoError(t, err)

	s := storetest.Open(t)
	mock := llm.NewMockProvider()
	sessions := session.NewManager(s.SessionRepo(), nil)
	responses := cache.NewMemoryText(10)
	retriever := retrieval.New(content, emb, retrieval.Options{})
	svc := NewService(mock, retriever, content, sessions, Options{
		Responses: responses,
		Config:    DefaultConfig(),
	})
	return &fixture{svc: svc, mock: mock, sessions: sessions, responses: responses}
}

func answer(s string) llm.MockResponse {
	return llm.MockResponse{Content: json.RawMessage(s)}
}

func TestAsk_NewSessionAndPrompt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mock.AddResponse(answer("الجواب الأول"))

	res, err := f.svc.Ask(ctx, AskInput{UserID: "u", Question: "من قاد الحملة الفرنسية على مصر", Stage: "JS2"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.SessionToken)
	assert.Equal(t, "الجواب الأول", res.Answer)
	assert.False(t, res.Cached)

	require.Equal(t, 1, f.mock.CallCount())
	req := f.mock.Calls[0]
	assert.Equal(t, 0.5, req.Temperature)
	assert.Equal(t, 0.9, req.TopP)
	assert.Contains(t, req.System, "Use moderate vocabulary with clear explanations.")
	assert.Contains(t, req.System, "tailored for JS2 level students")
	assert.Contains(t, req.Messages[0].Content, "Relevant Context:\nقاد نابليون الحملة الفرنسية على مصر")
	assert.Contains(t, req.Messages[0].Content, "History of Q&A:\n\n\nCurrent Question: من قاد الحملة الفرنسية على مصر\nAnswer:")

	sess, err := f.sessions.Get(ctx, "u", res.SessionToken)
	require.NoError(t, err)
	require.Len(t, sess.Turns, 1)
	assert.Equal(t, "الجواب الأول", sess.Turns[0].Answer)
}

func TestAsk_ContinuesSessionWithHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mock.AddResponse(answer("A1"))
	f.mock.AddResponse(answer("A2"))

	first, err := f.svc.Ask(ctx, AskInput{UserID: "u", Question: "Q1", Stage: "JS2", SessionToken: "None"})
	require.NoError(t, err)

	second, err := f.svc.Ask(ctx, AskInput{UserID: "u", Question: "Q2", Stage: "JS2", SessionToken: first.SessionToken})
	require.NoError(t, err)
	assert.Equal(t, first.SessionToken, second.SessionToken)
	assert.Contains(t, f.mock.Calls[1].Messages[0].Content, "History of Q&A:\nQ: Q1\nA: A1\n\nCurrent Question: Q2")

	sess, err := f.sessions.Get(ctx, "u", first.SessionToken)
	require.NoError(t, err)
	assert.Len(t, sess.Turns, 2)
}

func TestAsk_UnknownSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Ask(context.Background(), AskInput{UserID: "u", Question: "Q", SessionToken: "missing"})
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.Zero(t, f.mock.CallCount())
}

func TestAsk_MissingFields(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Ask(context.Background(), AskInput{UserID: "u", Question: "  "})
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestAsk_CachedAnswerStillRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mock.AddResponse(answer("A"))

	first, err := f.svc.Ask(ctx, AskInput{UserID: "u", Question: "Q", Stage: "JS2"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.responses.Len())

	second, err := f.svc.Ask(ctx, AskInput{UserID: "u", Question: "Q", Stage: "JS2", SessionToken: first.SessionToken})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, "A", second.Answer)
	assert.Equal(t, 1, f.mock.CallCount())

	sess, err := f.sessions.Get(ctx, "u", first.SessionToken)
	require.NoError(t, err)
	assert.Len(t, sess.Turns, 2)

	// A different stage is a different cache entry.
	f.mock.AddResponse(answer("B"))
	other, err := f.svc.Ask(ctx, AskInput{UserID: "u", Question: "Q", Stage: "HSS1"})
	require.NoError(t, err)
	assert.False(t, other.Cached)
}

func TestAsk_TopicBypassesRetrieval(t *testing.T) {
	f := newFixture(t)
	f.mock.AddResponse(answer("A"))

	_, err := f.svc.Ask(context.Background(), AskInput{UserID: "u", Question: "حدثني عن هذا", Stage: "JS2", Topic: "الأهرامات"})
	require.NoError(t, err)
	assert.Contains(t, f.mock.Calls[0].Messages[0].Content, "Relevant Context:\nبنى الفراعنة الأهرامات في الجيزة\n\n")
}

func TestAsk_NoRelevantContext(t *testing.T) {
	f := newFixture(t)
	f.mock.AddResponse(answer("A"))

	_, err := f.svc.Ask(context.Background(), AskInput{UserID: "u", Question: "الحملة الفرنسية", Stage: "UNI9"})
	require.NoError(t, err)
	assert.Contains(t, f.mock.Calls[0].Messages[0].Content, "Relevant Context:\n\n\nHistory of Q&A:")
}

func TestAsk_ProviderError(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")
	f.mock.AddResponse(llm.MockResponse{Err: boom})

	_, err := f.svc.Ask(context.Background(), AskInput{UserID: "u", Question: "Q", Stage: "JS2"})
	require.ErrorIs(t, err, boom)
	assert.Zero(t, f.responses.Len(), "failures are not cached")
}

func TestAsk_FailedFirstQuestionLeavesNoSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mock.AddResponse(llm.MockResponse{Err: errors.New("boom")})

	_, err := f.svc.Ask(ctx, AskInput{UserID: "u", Question: "Q", Stage: "JS2"})
	require.Error(t, err)

	sessions, err := f.sessions.List(ctx, "u")
	require.NoError(t, err)
	assert.Empty(t, sessions)

	f.mock.AddResponse(answer("A"))
	res, err := f.svc.Ask(ctx, AskInput{UserID: "u", Question: "Q", Stage: "JS2"})
	require.NoError(t, err)

	sessions, err = f.sessions.List(ctx, "u")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, res.SessionToken, sessions[0].Token)
	assert.Equal(t, "Q", sessions[0].FirstQuestion)
}
