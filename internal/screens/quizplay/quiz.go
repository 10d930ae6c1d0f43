// Package quizplay holds the screens for taking a multiple-choice quiz
// and an events quiz in the terminal.
package quizplay

import (
	"context"
	"fmt"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/dalil/internal/quiz"
	"github.com/abhisek/dalil/internal/screen"
	"github.com/abhisek/dalil/internal/ui/components"
	"github.com/abhisek/dalil/internal/ui/layout"
)

// QuizGrader grades a finished multiple-choice quiz.
type QuizGrader interface {
	Submit(ctx context.Context, in quiz.SubmitInput) (*quiz.SubmitResult, error)
}

// QuizScreen walks the learner through a quiz one question at a time,
// showing feedback after each answer and grading everything at the end.
type QuizScreen struct {
	userID string
	stage  string
	level  int

	questions []quiz.Question
	grader    QuizGrader

	current      int
	choice       components.MultiChoice
	answers      map[int]int
	correct      int
	showFeedback bool
	grading      bool
	result       *quiz.SubmitResult
	errMsg       string

	start time.Time
	now   func() time.Time
}

var _ screen.Screen = (*QuizScreen)(nil)
var _ screen.KeyHintProvider = (*QuizScreen)(nil)
var _ screen.StatusProvider = (*QuizScreen)(nil)

// NewQuizScreen creates the screen for questions at (stage, level).
func NewQuizScreen(userID, stage string, level int, questions []quiz.Question, grader QuizGrader) *QuizScreen {
	s := &QuizScreen{
		userID:    userID,
		stage:     stage,
		level:     level,
		questions: questions,
		grader:    grader,
		answers:   make(map[int]int, len(questions)),
		now:       time.Now,
	}
	if len(questions) == 0 {
		s.errMsg = "no questions available for this level"
		return s
	}
	s.choice = newChoice(questions[0])
	return s
}

func newChoice(q quiz.Question) components.MultiChoice {
	options := make([]string, len(q.Answers))
	for i, a := range q.Answers {
		options[i] = a.Label
	}
	return components.NewMultiChoice(q.Text, options, q.Correct())
}

func (s *QuizScreen) Init() tea.Cmd {
	s.start = s.now()
	return nil
}

func (s *QuizScreen) Title() string {
	return fmt.Sprintf("Quiz %s / level %d", s.stage, s.level)
}

// Status shows the question counter and running score.
func (s *QuizScreen) Status() string {
	if len(s.questions) == 0 {
		return ""
	}
	n := min(s.current+1, len(s.questions))
	return fmt.Sprintf("Q %d/%d  ✓ %d  ", n, len(s.questions), s.correct)
}

func (s *QuizScreen) KeyHints() []layout.KeyHint {
	switch {
	case s.errMsg != "" || s.result != nil:
		return []layout.KeyHint{{Key: "Enter", Description: "Exit"}}
	case s.grading:
		return nil
	case s.showFeedback:
		return []layout.KeyHint{{Key: "any key", Description: "Continue"}}
	}
	return []layout.KeyHint{
		{Key: "1-3", Description: "Answer"},
		{Key: "↑↓", Description: "Move"},
		{Key: "Enter", Description: "Select"},
		{Key: "Ctrl+C", Description: "Quit"},
	}
}

func (s *QuizScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case quizGradedMsg:
		s.grading = false
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		s.result = msg.Result
		return s, nil

	case tea.KeyMsg:
		return s.handleKey(msg)
	}
	return s, nil
}

func (s *QuizScreen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	switch {
	case s.errMsg != "" || s.result != nil:
		if msg.String() == "enter" || msg.String() == "q" {
			return s, tea.Quit
		}
		return s, nil
	case s.grading:
		return s, nil
	case s.showFeedback:
		return s.advance()
	}

	s.choice, _ = s.choice.Update(msg)
	if !s.choice.Submitted {
		return s, nil
	}

	q := s.questions[s.current]
	s.answers[q.ID] = s.choice.ChosenIndex
	if quiz.Grade(s.questions, q.ID, s.choice.ChosenIndex) {
		s.correct++
	}
	s.showFeedback = true
	return s, nil
}

// advance moves to the next question, or sends the answers for grading
// after the last one.
func (s *QuizScreen) advance() (screen.Screen, tea.Cmd) {
	s.showFeedback = false
	s.current++
	if s.current < len(s.questions) {
		s.choice = newChoice(s.questions[s.current])
		return s, nil
	}
	s.grading = true
	return s, s.grade()
}

func (s *QuizScreen) grade() tea.Cmd {
	in := quiz.SubmitInput{
		UserID:    s.userID,
		Stage:     s.stage,
		Level:     s.level,
		Answers:   s.answers,
		Quiz:      s.questions,
		StartTime: s.start,
		EndTime:   s.now(),
	}
	grader := s.grader
	return func() tea.Msg {
		res, err := grader.Submit(context.Background(), in)
		return quizGradedMsg{Result: res, Err: err}
	}
}

func (s *QuizScreen) View(width, height int) string {
	switch {
	case s.errMsg != "":
		return renderError(width, s.errMsg)
	case s.result != nil:
		return renderQuizSummary(width, s.result)
	case s.grading:
		return renderWaiting(width, "Grading your answers...")
	}
	return s.renderQuestion(width)
}
