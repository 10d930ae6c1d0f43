package quizplay

import (
	"fmt"
	"strings"
	"time"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/dalil/internal/events"
	"github.com/abhisek/dalil/internal/quiz"
	"github.com/abhisek/dalil/internal/ui/components"
	"github.com/abhisek/dalil/internal/ui/theme"
)

func (s *QuizScreen) renderQuestion(width int) string {
	var b strings.Builder
	b.WriteString("\n")

	card := theme.Card.Width(min(width-4, 90)).Render(s.choice.View())
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, card))
	b.WriteString("\n\n")

	if s.showFeedback {
		if s.choice.IsCorrect() {
			b.WriteString(theme.Centered(theme.Correct, width, "Correct!"))
		} else {
			q := s.questions[s.current]
			b.WriteString(theme.Centered(theme.Incorrect, width, "Not quite"))
			b.WriteString("\n")
			b.WriteString(theme.Centered(theme.Hint, width,
				"Correct answer: "+q.Answers[q.Correct()].Label))
		}
		b.WriteString("\n\n")
		b.WriteString(theme.Centered(theme.Hint, width, "Press any key to continue..."))
	}
	return b.String()
}

func renderQuizSummary(width int, res *quiz.SubmitResult) string {
	sum := res.Summary
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(theme.Centered(theme.Title, width, "Quiz complete"))
	b.WriteString("\n\n")

	lines := []string{
		fmt.Sprintf("Correct      %d / %d", sum.CorrectAnswers, sum.TotalQuestions),
		fmt.Sprintf("Time         %s", sum.TimeTaken.Round(time.Second)),
		fmt.Sprintf("Mastery      %d", res.MasteryStats.MasteryScore),
		"",
		components.NewProgressBar("Accuracy", sum.Accuracy, 50).View(),
		components.NewProgressBar("Level   ", float64(sum.FinalProgress), 50).View(),
	}
	block := theme.Body.Render(strings.Join(lines, "\n"))
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, block))
	b.WriteString("\n\n")
	b.WriteString(theme.Centered(theme.Hint, width, "Press Enter to exit"))
	return b.String()
}

func (s *EventsScreen) renderQuestion(width int) string {
	q := s.questions[s.current]

	var prompt string
	if q.Type == events.EventToDate {
		prompt = fmt.Sprintf("When did this happen?\n\n%s", q.Event)
	} else {
		prompt = fmt.Sprintf("What happened on %s?", q.Date)
	}

	var b strings.Builder
	b.WriteString("\n")
	card := theme.Card.Width(min(width-4, 90)).Render(
		lipgloss.NewStyle().Foreground(theme.Text).Bold(true).Render(prompt) +
			"\n\n" + "Answer: " + s.input.View())
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, card))
	return b.String()
}

func (s *EventsScreen) renderSummary(width int) string {
	byID := make(map[int]events.Question, len(s.questions))
	for _, q := range s.questions {
		byID[q.ID] = q
	}

	correct := 0
	var rows []string
	for _, r := range s.results {
		q := byID[r.QuestionID]
		mark := theme.Incorrect.Render("✗")
		if r.Correct {
			correct++
			mark = theme.Correct.Render("✓")
		}
		rows = append(rows, fmt.Sprintf("%s  %-12s %s", mark, q.Date, q.Event))
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(theme.Centered(theme.Title, width, fmt.Sprintf("%d / %d correct", correct, len(s.results))))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, theme.Body.Render(strings.Join(rows, "\n"))))
	b.WriteString("\n\n")
	b.WriteString(theme.Centered(theme.Hint, width, "Press Enter to exit"))
	return b.String()
}

func renderWaiting(width int, msg string) string {
	return theme.Centered(theme.Hint, width, "\n\n\n"+msg)
}

func renderError(width int, msg string) string {
	return theme.Centered(lipgloss.NewStyle().Foreground(theme.Error), width,
		fmt.Sprintf("\n\n\nError: %s\n\nPress Enter to exit.", msg))
}
