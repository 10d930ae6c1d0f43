package lessons

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/dalil/internal/corpus"
	"github.com/abhisek/dalil/internal/llm"
	"github.com/abhisek/dalil/internal/store/storetest"
)

func validLessonJSON() json.RawMessage {
	return json.RawMessage(`{
		"markdown": "Here is your lesson:\n# الحملة الفرنسية\n\n\n\n- ** 1798 ** وصول نابليون\n-غادر الفرنسيون 1801\nNote: generated.",
		"key_terms": ["نابليون", "1798"]
	}`)
}

func testContent() *corpus.Content {
	return corpus.NewContent([]corpus.ContentItem{
		{Content: "وصل نابليون إلى الإسكندرية عام 1798", Topic: "الحملة الفرنسية", EducationalStage: "JS2"},
		{Content: "تولى محمد علي حكم مصر عام 1805", Topic: "محمد علي", EducationalStage: "JS2"},
		{Content: "نص آخر عن الحملة", Topic: "الحملة الفرنسية", EducationalStage: "JS2"},
	})
}

func newTestService(t *testing.T, mock *llm.MockProvider) *Service {
	t.Helper()
	s := storetest.Open(t)
	return NewService(mock, testContent(), s.CacheRepo("topic"), DefaultConfig(), nil)
}

func TestService_GeneratesAndCachesLesson(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: validLessonJSON()})
	svc := newTestService(t, mock)
	ctx := context.Background()

	lesson, err := svc.TopicContent(ctx, "JS2", "الحملة الفرنسية")
	require.NoError(t, err)
	assert.True(t, lesson.Enhanced)
	assert.False(t, lesson.Cached)
	assert.Equal(t, "## الحملة الفرنسية\n\n- **1798** وصول نابليون\n- غادر الفرنسيون 1801", lesson.Content)

	require.Equal(t, 1, mock.CallCount())
	req := mock.Calls[0]
	assert.Equal(t, LessonSchema, req.Schema)
	assert.Contains(t, req.System, "Educational level: JS2")
	assert.Contains(t, req.System, "Present content clearly with moderate complexity.")
	assert.Contains(t, req.Messages[0].Content, "Topic: الحملة الفرنسية\nContent: وصل نابليون")

	again, err := svc.TopicContent(ctx, "JS2", "الحملة الفرنسية")
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, lesson.Content, again.Content)
	assert.Equal(t, 1, mock.CallCount(), "second request is served from the cache")
}

func TestService_FallsBackToRawContent(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: errors.New("backend down")})
	svc := newTestService(t, mock)

	lesson, err := svc.TopicContent(context.Background(), "JS2", "محمد علي")
	require.NoError(t, err)
	assert.False(t, lesson.Enhanced)
	assert.Equal(t, "تولى محمد علي حكم مصر عام 1805", lesson.Content)

	// Failures are not cached.
	mock.AddResponse(llm.MockResponse{Content: validLessonJSON()})
	lesson, err = svc.TopicContent(context.Background(), "JS2", "محمد علي")
	require.NoError(t, err)
	assert.True(t, lesson.Enhanced)
}

func TestService_TopicNotFound(t *testing.T) {
	svc := newTestService(t, llm.NewMockProvider())

	_, err := svc.TopicContent(context.Background(), "JS2", "unknown")
	assert.ErrorIs(t, err, ErrTopicNotFound)

	_, err = svc.TopicContent(context.Background(), "HSS1", "محمد علي")
	assert.ErrorIs(t, err, ErrTopicNotFound)

	_, err = svc.TopicByID("JS2", "9")
	assert.ErrorIs(t, err, ErrTopicNotFound)
}

func TestService_Topics(t *testing.T) {
	svc := newTestService(t, llm.NewMockProvider())

	topics := svc.Topics("JS2")
	require.Len(t, topics, 2)
	assert.Equal(t, corpus.Topic{ID: "1", Title: "الحملة الفرنسية"}, topics[0])

	topic, err := svc.TopicByID("JS2", "2")
	require.NoError(t, err)
	assert.Equal(t, "محمد علي", topic.Title)
}

func TestCleanMarkdown(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"strips preamble", "Sure! Here it is.\n## Summary\ntext", "## Summary\ntext"},
		{"demotes h1", "# Title\nbody\n# Other", "## Title\nbody\n## Other"},
		{"keeps h3", "## A\n### B", "## A\n### B"},
		{"drops closing remarks", "## A\nbody\n\nIn conclusion: that was history.", "## A\nbody"},
		{"collapses blank lines", "## A\n\n\n\nbody", "## A\n\nbody"},
		{"tightens bold", "## A\nthe ** date ** is here", "## A\nthe **date** is here"},
		{"keeps spaces around bold", "## A\nx **b** y", "## A\nx **b** y"},
		{"list spacing", "## A\n-one\n-   two", "## A\n- one\n- two"},
		{"blockquote spacing", "## A\n>quote", "## A\n> quote"},
		{"no heading leaves text", "plain text only", "plain text only"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanMarkdown(tt.raw))
		})
	}
}
