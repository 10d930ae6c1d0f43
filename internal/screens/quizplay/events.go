package quizplay

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/dalil/internal/events"
	"github.com/abhisek/dalil/internal/screen"
	"github.com/abhisek/dalil/internal/ui/components"
	"github.com/abhisek/dalil/internal/ui/layout"
)

// EventsGrader grades events-quiz answers.
type EventsGrader interface {
	Submit(ctx context.Context, userID, stage string, answers []events.Answer) ([]events.Result, error)
}

// EventsScreen asks for an event given its date, or a date given its
// event, and grades all answers together at the end.
type EventsScreen struct {
	userID string
	stage  string

	questions []events.Question
	grader    EventsGrader

	current int
	input   components.TextInput
	answers []events.Answer
	grading bool
	results []events.Result
	errMsg  string
}

var _ screen.Screen = (*EventsScreen)(nil)
var _ screen.KeyHintProvider = (*EventsScreen)(nil)
var _ screen.StatusProvider = (*EventsScreen)(nil)

// NewEventsScreen creates the screen for questions of stage.
func NewEventsScreen(userID, stage string, questions []events.Question, grader EventsGrader) *EventsScreen {
	s := &EventsScreen{
		userID:    userID,
		stage:     stage,
		questions: questions,
		grader:    grader,
	}
	if len(questions) == 0 {
		s.errMsg = "not enough unsolved events left in this stage"
		return s
	}
	s.input = newEventsInput(questions[0])
	return s
}

func newEventsInput(q events.Question) components.TextInput {
	if q.Type == events.EventToDate {
		return components.NewTextInput("YYYY/MM/DD", true, 21)
	}
	return components.NewTextInput("Describe the event...", false, 200)
}

func (s *EventsScreen) Init() tea.Cmd {
	if s.errMsg != "" {
		return nil
	}
	return s.input.Init()
}

func (s *EventsScreen) Title() string {
	return "Events " + s.stage
}

func (s *EventsScreen) Status() string {
	if len(s.questions) == 0 {
		return ""
	}
	return fmt.Sprintf("Q %d/%d  ", min(s.current+1, len(s.questions)), len(s.questions))
}

func (s *EventsScreen) KeyHints() []layout.KeyHint {
	switch {
	case s.errMsg != "" || s.results != nil:
		return []layout.KeyHint{{Key: "Enter", Description: "Exit"}}
	case s.grading:
		return nil
	}
	return []layout.KeyHint{
		{Key: "Enter", Description: "Submit"},
		{Key: "Ctrl+C", Description: "Quit"},
	}
}

func (s *EventsScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case eventsGradedMsg:
		s.grading = false
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		s.results = msg.Results
		if s.results == nil {
			s.results = []events.Result{}
		}
		return s, nil

	case tea.KeyMsg:
		return s.handleKey(msg)
	}

	if s.errMsg == "" && s.results == nil && !s.grading {
		var cmd tea.Cmd
		s.input, cmd = s.input.Update(msg)
		return s, cmd
	}
	return s, nil
}

func (s *EventsScreen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	switch {
	case s.errMsg != "" || s.results != nil:
		if msg.String() == "enter" {
			return s, tea.Quit
		}
		return s, nil
	case s.grading:
		return s, nil
	}

	if msg.String() != "enter" {
		var cmd tea.Cmd
		s.input, cmd = s.input.Update(msg)
		return s, cmd
	}

	value := strings.TrimSpace(s.input.Value())
	if value == "" {
		return s, nil
	}
	q := s.questions[s.current]
	s.answers = append(s.answers, events.Answer{QuestionID: q.ID, Answer: value, Type: q.Type})

	s.current++
	if s.current < len(s.questions) {
		s.input = newEventsInput(s.questions[s.current])
		return s, s.input.Init()
	}
	s.grading = true
	return s, s.grade()
}

func (s *EventsScreen) grade() tea.Cmd {
	userID, stage, answers, grader := s.userID, s.stage, s.answers, s.grader
	return func() tea.Msg {
		res, err := grader.Submit(context.Background(), userID, stage, answers)
		return eventsGradedMsg{Results: res, Err: err}
	}
}

func (s *EventsScreen) View(width, height int) string {
	switch {
	case s.errMsg != "":
		return renderError(width, s.errMsg)
	case s.results != nil:
		return s.renderSummary(width)
	case s.grading:
		return renderWaiting(width, "Checking your answers...")
	}
	return s.renderQuestion(width)
}
