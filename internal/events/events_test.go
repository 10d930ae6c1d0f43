package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/dalil/internal/corpus"
	"github.com/abhisek/dalil/internal/embedding"
	"github.com/abhisek/dalil/internal/notify"
	"github.com/abhisek/dalil/internal/store"
	"github.com/abhisek/dalil/internal/store/storetest"
)

func TestValidateDate(t *testing.T) {
	tests := []struct {
		name      string
		submitted string
		answer    string
		want      bool
	}{
		{"interval start", "1954/11/01", "1954/11/01-1962/07/05", true},
		{"interval end", "1962/07/05", "1954/11/01-1962/07/05", true},
		{"inside interval", "1955/01/01", "1954/11/01-1962/07/05", false},
		{"year interval endpoint", "1962", "1954-1962", true},
		{"full date against year interval", "1962/01/01", "1954-1962", false},
		{"exact full date", "1798/07/01", "1798/07/01", true},
		{"full date unpadded", "1798/7/1", "1798/07/01", true},
		{"wrong day", "1798/07/02", "1798/07/01", false},
		{"year only", "1798", "1798", true},
		{"wrong year", "1799", "1798", false},
		{"full date against year", "1798/07/01", "1798", false},
		{"year month", "1952/07", "1952/07", true},
		{"year month wrong month", "1952/08", "1952/07", false},
		{"year month against year", "1952/07", "1952", true},
		{"year against full date", "1798", "1798/07/01", false},
		{"garbage submitted", "sometime", "1798", false},
		{"empty submitted", "", "1798", false},
		{"invalid day", "1798/02/30", "1798/02/30", false},
		{"malformed answer", "1798", "17x8", false},
		{"surrounding space", " 1798 ", "1798", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateDate(tt.submitted, tt.answer))
		})
	}
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("model offline")
}
func (failingEmbedder) Model() string { return "failing" }

func embeddedEvent(t *testing.T, e embedding.Embedder, content string) corpus.EventItem {
	t.Helper()
	v, err := e.Embed(context.Background(), content)
	require.NoError(t, err)
	return corpus.EventItem{ID: 1, Date: "1952/07/23", Content: content, Embedding: v}
}

func TestValidateEvent(t *testing.T) {
	emb := embedding.NewHashEmbedder(128)
	item := embeddedEvent(t, emb, "قيام ثورة يوليو في مصر")
	v := NewValidator(emb, 0, nil)
	ctx := context.Background()

	assert.True(t, v.ValidateEvent(ctx, "قيام ثورة يوليو في مصر", item))
	assert.False(t, v.ValidateEvent(ctx, "افتتاح قناة السويس للملاحة الدولية", item))
	assert.False(t, v.ValidateEvent(ctx, "   ", item))

	_, err := v.ValidateEventDetailed(ctx, "", item)
	assert.ErrorIs(t, err, ErrMalformedAnswer)

	_, err = v.ValidateEventDetailed(ctx, "anything", corpus.EventItem{ID: 2})
	assert.ErrorIs(t, err, ErrMissingEmbedding)

	ok, err := v.ValidateEventDetailed(ctx, "افتتاح قناة السويس", item)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestValidateEvent_EmbedderFailureIsWrong(t *testing.T) {
	item := embeddedEvent(t, embedding.NewHashEmbedder(16), "event")
	v := NewValidator(failingEmbedder{}, 0, nil)

	assert.False(t, v.ValidateEvent(context.Background(), "event", item))
	_, err := v.ValidateEventDetailed(context.Background(), "event", item)
	assert.ErrorIs(t, err, ErrMalformedAnswer)
}

func TestValidateEvent_DimensionMismatch(t *testing.T) {
	item := embeddedEvent(t, embedding.NewHashEmbedder(16), "event")
	v := NewValidator(embedding.NewHashEmbedder(32), 0, nil)

	_, err := v.ValidateEventDetailed(context.Background(), "event", item)
	assert.ErrorIs(t, err, ErrMalformedAnswer)
}

type fixture struct {
	svc      *Service
	tracker  *Tracker
	recorder *notify.Recorder
	answers  store.EventRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	emb := embedding.NewHashEmbedder(128)
	evs := corpus.NewEvents([]corpus.EventItem{
		{ID: 10, Date: "1952/07/23", Content: "قيام ثورة يوليو", EducationalStage: "JS3"},
		{ID: 11, Date: "1869", Content: "افتتاح قناة السويس", EducationalStage: "JS3"},
		{ID: 12, Date: "1954/11/01-1962/07/05", Content: "حرب تحرير الجزائر", EducationalStage: "JS3"},
		{ID: 13, Date: "1798/07", Content: "الحملة الفرنسية على مصر", EducationalStage: "JS3"},
		{ID: 14, Date: "1919", Content: "ثورة 1919", EducationalStage: "HSS1"},
	})
	_, err := evs.EnsureEmbeddings(context.Background(), emb)
	require.NoError(t, err)

	s := storetest.Open(t)
	tracker := NewTracker(s.EventsProgressRepo(), s.EventRepo(), nil)
	rec := &notify.Recorder{}
	return &fixture{
		svc:      NewService(evs, NewValidator(emb, 0, nil), tracker, rec, nil),
		tracker:  tracker,
		recorder: rec,
		answers:  s.EventRepo(),
	}
}

func TestGenerate_SortedAndTyped(t *testing.T) {
	f := newFixture(t)

	for range 20 {
		qs, err := f.svc.Generate(context.Background(), "u", "JS3", 4)
		require.NoError(t, err)
		require.Len(t, qs, 4)
		assert.Equal(t, []int{13, 11, 10, 12}, []int{qs[0].ID, qs[1].ID, qs[2].ID, qs[3].ID})
		assert.Equal(t, DateToEvent, qs[3].Type, "intervals always ask for the event")
	}
}

func TestGenerate_NotEnoughLeft(t *testing.T) {
	f := newFixture(t)
	qs, err := f.svc.Generate(context.Background(), "u", "HSS1", 2)
	require.NoError(t, err)
	assert.NotNil(t, qs)
	assert.Empty(t, qs)

	qs, err = f.svc.Generate(context.Background(), "u", "UNI1", 1)
	require.NoError(t, err)
	assert.Empty(t, qs)
}

func TestGenerate_ExcludesSolved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, "u", "JS3", []Answer{{QuestionID: 11, Answer: "1869", Type: EventToDate}})
	require.NoError(t, err)

	qs, err := f.svc.Generate(ctx, "u", "JS3", 3)
	require.NoError(t, err)
	require.Len(t, qs, 3)
	for _, q := range qs {
		assert.NotEqual(t, 11, q.ID)
	}

	qs, err = f.svc.Generate(ctx, "u", "JS3", 4)
	require.NoError(t, err)
	assert.Empty(t, qs)
}

func TestSubmit_GradesAndRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	results, err := f.svc.Submit(ctx, "u", "JS3", []Answer{
		{QuestionID: 12, Answer: "قيام ثورة يوليو", Type: DateToEvent},
		{QuestionID: 10, Answer: "قيام ثورة يوليو", Type: DateToEvent},
		{QuestionID: 12, Answer: "1954/11/01", Type: EventToDate},
		{QuestionID: 13, Answer: "1798/07/01", Type: EventToDate},
	})
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.False(t, results[0].Correct)
	assert.True(t, results[1].Correct)
	assert.True(t, results[2].Correct)
	assert.False(t, results[3].Correct, "a full date cannot answer a year-month event")

	last := results[3].Progress
	assert.Equal(t, 4, last.TotalAttempts)
	assert.Equal(t, 2, last.CorrectAnswers)
	assert.Equal(t, []Solved{
		{Date: "1952/07/23", Event: "قيام ثورة يوليو"},
		{Date: "1954/11/01-1962/07/05", Event: "حرب تحرير الجزائر"},
	}, last.SolvedQuestions)

	published := f.recorder.Snapshot()
	require.Len(t, published, 4)
	assert.Equal(t, notify.EventsProgressUpdated, published[3].Type)
	assert.InDelta(t, 50.0, published[3].Progress, 0.001)

	answers, err := f.answers.QueryAnswers(ctx, "u", store.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, answers, 4)
	assert.Equal(t, store.KindEventsProgress, answers[0].Category)
	assert.Equal(t, "1798/07/01", answers[0].Answer)
}

func TestSubmit_UnknownQuestion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, "u", "JS3", []Answer{
		{QuestionID: 10, Answer: "قيام ثورة يوليو", Type: DateToEvent},
		{QuestionID: 99, Answer: "x", Type: DateToEvent},
	})
	require.ErrorIs(t, err, ErrQuestionNotFound)

	p, err := f.tracker.Get(ctx, "u", "JS3")
	require.NoError(t, err)
	assert.Zero(t, p.TotalAttempts, "nothing is recorded when an id is unknown")
}

func TestSubmit_OtherStageRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, "u", "JS3", []Answer{{QuestionID: 14, Answer: "1919", Type: EventToDate}})
	require.ErrorIs(t, err, ErrQuestionNotFound)

	p, err := f.tracker.Get(ctx, "u", "JS3")
	require.NoError(t, err)
	assert.Zero(t, p.TotalAttempts)
}

func TestSubmit_RepeatCorrectSolvesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for range 5 {
		_, err := f.svc.Submit(ctx, "u", "JS3", []Answer{{QuestionID: 11, Answer: "1869", Type: EventToDate}})
		require.NoError(t, err)
	}

	p, err := f.tracker.Get(ctx, "u", "JS3")
	require.NoError(t, err)
	assert.Equal(t, 5, p.TotalAttempts)
	assert.Equal(t, 5, p.CorrectAnswers)
	assert.Equal(t, []Solved{{Date: "1869", Event: "افتتاح قناة السويس"}}, p.SolvedQuestions)

	view, err := f.svc.Progress(ctx, "u", "JS3")
	require.NoError(t, err)
	assert.InDelta(t, 25.0, view.MasteryPercentage, 0.001)
}

func TestProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.svc.Progress(ctx, "u", "JS3")
	require.NoError(t, err)
	assert.Equal(t, &ProgressView{SolvedQuestions: []Solved{}, TotalEvents: 4}, view)

	_, err = f.svc.Submit(ctx, "u", "JS3", []Answer{{QuestionID: 11, Answer: "1869", Type: EventToDate}})
	require.NoError(t, err)

	view, err = f.svc.Progress(ctx, "u", "JS3")
	require.NoError(t, err)
	assert.Len(t, view.SolvedQuestions, 1)
	assert.InDelta(t, 25.0, view.MasteryPercentage, 0.001)

	view, err = f.svc.Progress(ctx, "u", "EMPTY")
	require.NoError(t, err)
	assert.Zero(t, view.MasteryPercentage)
}
