package quizplay

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/dalil/internal/events"
	"github.com/abhisek/dalil/internal/quiz"
	"github.com/abhisek/dalil/internal/screen"
)

type fakeQuizGrader struct {
	got quiz.SubmitInput
	err error
}

func (f *fakeQuizGrader) Submit(_ context.Context, in quiz.SubmitInput) (*quiz.SubmitResult, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return &quiz.SubmitResult{Summary: quiz.Summary{TotalQuestions: len(in.Answers)}}, nil
}

type fakeEventsGrader struct {
	got []events.Answer
}

func (f *fakeEventsGrader) Submit(_ context.Context, _, _ string, answers []events.Answer) ([]events.Result, error) {
	f.got = answers
	out := make([]events.Result, len(answers))
	for i, a := range answers {
		out[i] = events.Result{QuestionID: a.QuestionID, Correct: i == 0}
	}
	return out, nil
}

func keyPress(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

func enter() tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: tea.KeyEnter}
}

func question(id int, correct int) quiz.Question {
	q := quiz.Question{ID: id, Text: "سؤال"}
	for i := range q.Answers {
		q.Answers[i] = quiz.Answer{Label: string(rune('a' + i)), Index: i, IsCorrect: i == correct}
	}
	return q
}

// run executes cmd and feeds its message back into s.
func run(t *testing.T, s screen.Screen, cmd tea.Cmd) screen.Screen {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	s, _ = s.Update(cmd())
	return s
}

func TestQuizScreen_AnswersAndGrades(t *testing.T) {
	grader := &fakeQuizGrader{}
	qs := []quiz.Question{question(1, 0), question(2, 2)}
	var s screen.Screen = NewQuizScreen("u", "JS1", 1, qs, grader)
	s.Init()

	s, _ = s.Update(keyPress('1'))
	qsc := s.(*QuizScreen)
	if !qsc.showFeedback || qsc.correct != 1 {
		t.Fatalf("after correct answer: feedback=%v correct=%d", qsc.showFeedback, qsc.correct)
	}
	if !strings.Contains(s.View(80, 24), "Correct!") {
		t.Error("expected positive feedback in view")
	}

	s, _ = s.Update(keyPress(' '))
	s, _ = s.Update(keyPress('2'))
	if !strings.Contains(s.View(80, 24), "Not quite") {
		t.Error("expected negative feedback in view")
	}

	s, cmd := s.Update(keyPress(' '))
	if !s.(*QuizScreen).grading {
		t.Fatal("expected grading after last question")
	}
	s = run(t, s, cmd)

	if s.(*QuizScreen).result == nil {
		t.Fatal("expected a result")
	}
	if grader.got.Answers[1] != 0 || grader.got.Answers[2] != 1 {
		t.Errorf("submitted answers = %v", grader.got.Answers)
	}
	if grader.got.Level != 1 || grader.got.Stage != "JS1" {
		t.Errorf("submitted stage/level = %s/%d", grader.got.Stage, grader.got.Level)
	}
	if !strings.Contains(s.View(80, 24), "Quiz complete") {
		t.Error("expected summary view")
	}
}

func TestQuizScreen_ArrowSelection(t *testing.T) {
	var s screen.Screen = NewQuizScreen("u", "JS1", 1, []quiz.Question{question(1, 1)}, &fakeQuizGrader{})
	s, _ = s.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	s, _ = s.Update(enter())

	qsc := s.(*QuizScreen)
	if qsc.answers[1] != 1 || qsc.correct != 1 {
		t.Errorf("answers=%v correct=%d", qsc.answers, qsc.correct)
	}
}

func TestQuizScreen_GradingError(t *testing.T) {
	grader := &fakeQuizGrader{err: errors.New("db down")}
	var s screen.Screen = NewQuizScreen("u", "JS1", 1, []quiz.Question{question(1, 0)}, grader)
	s, _ = s.Update(keyPress('1'))
	s, cmd := s.Update(keyPress(' '))
	s = run(t, s, cmd)

	if !strings.Contains(s.View(80, 24), "db down") {
		t.Error("expected error in view")
	}
	if _, cmd := s.Update(enter()); cmd == nil {
		t.Error("expected quit on enter")
	}
}

func TestQuizScreen_Empty(t *testing.T) {
	s := NewQuizScreen("u", "JS1", 1, nil, &fakeQuizGrader{})
	if s.errMsg == "" {
		t.Error("expected an error for an empty quiz")
	}
	if s.Status() != "" {
		t.Errorf("Status = %q, want empty", s.Status())
	}
}

func TestQuizScreen_KeyHints(t *testing.T) {
	s := NewQuizScreen("u", "JS1", 1, []quiz.Question{question(1, 0)}, &fakeQuizGrader{})
	if len(s.KeyHints()) == 0 {
		t.Error("expected key hints")
	}
	if s.Status() != "Q 1/1  ✓ 0  " {
		t.Errorf("Status = %q", s.Status())
	}
}

func TestEventsScreen_CollectsAnswers(t *testing.T) {
	grader := &fakeEventsGrader{}
	qs := []events.Question{
		{ID: 10, Date: "1952/07/23", Event: "ثورة يوليو", Type: events.DateToEvent},
		{ID: 11, Date: "1798", Event: "الحملة الفرنسية", Type: events.EventToDate},
	}
	var s screen.Screen = NewEventsScreen("u", "JS3", qs, grader)
	s.Init()

	if !strings.Contains(s.View(80, 24), "What happened on 1952/07/23?") {
		t.Error("expected date prompt")
	}

	// Empty answers are ignored.
	s, _ = s.Update(enter())
	if s.(*EventsScreen).current != 0 {
		t.Fatal("empty answer should not advance")
	}

	s.(*EventsScreen).input.Model.SetValue("ثورة")
	s, _ = s.Update(enter())
	if !strings.Contains(s.View(80, 24), "When did this happen?") {
		t.Error("expected event prompt")
	}

	// Letters are rejected by the date input.
	s, _ = s.Update(keyPress('x'))
	if v := s.(*EventsScreen).input.Value(); v != "" {
		t.Errorf("date input accepted %q", v)
	}

	s.(*EventsScreen).input.Model.SetValue("1798")
	s, cmd := s.Update(enter())
	s = run(t, s, cmd)

	if len(grader.got) != 2 {
		t.Fatalf("submitted %d answers, want 2", len(grader.got))
	}
	if grader.got[1] != (events.Answer{QuestionID: 11, Answer: "1798", Type: events.EventToDate}) {
		t.Errorf("second answer = %+v", grader.got[1])
	}
	if !strings.Contains(s.View(80, 24), "1 / 2 correct") {
		t.Error("expected summary")
	}
}

func TestEventsScreen_Empty(t *testing.T) {
	s := NewEventsScreen("u", "JS3", nil, &fakeEventsGrader{})
	if s.Init() != nil {
		t.Error("expected no init command")
	}
	if !strings.Contains(s.View(80, 24), "not enough unsolved events") {
		t.Error("expected error view")
	}
}
